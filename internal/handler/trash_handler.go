package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"fmdrive/internal/auth"
	"fmdrive/internal/domain"
	"fmdrive/internal/service"
)

type TrashHandler struct {
	verifier          *auth.Verifier
	trashService      *service.TrashService
	folderService     *service.FolderService
	fileService       *service.FileService
	permissionService *service.PermissionService
}

func NewTrashHandler(
	verifier *auth.Verifier,
	trashService *service.TrashService,
	folderService *service.FolderService,
	fileService *service.FileService,
	permissionService *service.PermissionService,
) *TrashHandler {
	return &TrashHandler{
		verifier:          verifier,
		trashService:      trashService,
		folderService:     folderService,
		fileService:       fileService,
		permissionService: permissionService,
	}
}

// GetTrashItems отдает уровень корзины: без parent_id — вершины
// удалённых поддеревьев, с parent_id — содержимое удалённой папки
func (h *TrashHandler) GetTrashItems(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var parentID *int64
	if v := r.URL.Query().Get("parent_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			http.Error(w, "Invalid parent ID", http.StatusBadRequest)
			return
		}
		parentID = &id
	}

	content, err := h.trashService.ListTrash(r.Context(), user.ID, parentID)
	if err != nil {
		writeError(w, err, "Failed to list trash")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

type trashItemRequest struct {
	Type domain.ResourceType `json:"type"`
	ID   string              `json:"id"`
}

func (h *TrashHandler) RestoreItem(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case domain.ResourceTypeFolder:
		folderID, err := strconv.ParseInt(req.ID, 10, 64)
		if err != nil {
			http.Error(w, "Invalid folder ID", http.StatusBadRequest)
			return
		}
		if !authorize(w, r, h.permissionService, user, req.ID, domain.ResourceTypeFolder, domain.ActionRead) {
			return
		}
		if err := h.folderService.RestoreFolder(r.Context(), folderID); err != nil {
			writeError(w, err, "Failed to restore folder")
			return
		}

	case domain.ResourceTypeFile:
		fileUUID, err := uuid.Parse(req.ID)
		if err != nil {
			http.Error(w, "Invalid file UUID", http.StatusBadRequest)
			return
		}
		if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
			return
		}
		if err := h.fileService.RestoreFile(r.Context(), fileUUID); err != nil {
			writeError(w, err, "Failed to restore file")
			return
		}

	default:
		http.Error(w, "Invalid item type", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "restored"})
}

func (h *TrashHandler) DeletePermanently(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req trashItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Type {
	case domain.ResourceTypeFolder:
		folderID, err := strconv.ParseInt(req.ID, 10, 64)
		if err != nil {
			http.Error(w, "Invalid folder ID", http.StatusBadRequest)
			return
		}
		if !authorize(w, r, h.permissionService, user, req.ID, domain.ResourceTypeFolder, domain.ActionRead) {
			return
		}
		if err := h.folderService.PermanentDeleteFolder(r.Context(), folderID); err != nil {
			writeError(w, err, "Failed to delete folder permanently")
			return
		}

	case domain.ResourceTypeFile:
		fileUUID, err := uuid.Parse(req.ID)
		if err != nil {
			http.Error(w, "Invalid file UUID", http.StatusBadRequest)
			return
		}
		if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
			return
		}
		if err := h.fileService.PermanentDeleteFile(r.Context(), fileUUID); err != nil {
			writeError(w, err, "Failed to delete file permanently")
			return
		}

	default:
		http.Error(w, "Invalid item type", http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *TrashHandler) EmptyTrash(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.trashService.EmptyTrash(r.Context(), user.ID); err != nil {
		writeError(w, err, "Failed to empty trash")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "emptied"})
}
