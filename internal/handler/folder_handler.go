package handler

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"fmdrive/internal/auth"
	"fmdrive/internal/domain"
	"fmdrive/internal/service"
)

type FolderHandler struct {
	verifier          *auth.Verifier
	folderService     *service.FolderService
	permissionService *service.PermissionService
}

func NewFolderHandler(verifier *auth.Verifier, folderService *service.FolderService, permissionService *service.PermissionService) *FolderHandler {
	return &FolderHandler{
		verifier:          verifier,
		folderService:     folderService,
		permissionService: permissionService,
	}
}

type createFolderRequest struct {
	Name     string `json:"name"`
	ParentID *int64 `json:"parent_id,omitempty"`
}

func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.folderService.CreateFolder(r.Context(), req.Name, req.ParentID, user.ID)
	if err != nil {
		writeError(w, err, "Failed to create folder")
		return
	}

	writeJSON(w, http.StatusCreated, folder)
}

// GetFolderContent отдает содержимое папки; без идентификатора —
// выдачу верхнего уровня
func (h *FolderHandler) GetFolderContent(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderIDStr := chi.URLParam(r, "id")
	if folderIDStr == "" {
		folders, err := h.folderService.ListFolders(r.Context(), user.ID, nil)
		if err != nil {
			writeError(w, err, "Failed to list folders")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"folders": folders})
		return
	}

	folderID, err := strconv.ParseInt(folderIDStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, folderIDStr, domain.ResourceTypeFolder, domain.ActionRead) {
		return
	}

	content, err := h.folderService.GetFolderContent(r.Context(), folderID, user.ID)
	if err != nil {
		writeError(w, err, "Failed to get folder content")
		return
	}

	writeJSON(w, http.StatusOK, content)
}

// GetFolderStructure отдает дерево папок пользователя
func (h *FolderHandler) GetFolderStructure(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	tree, err := h.folderService.GetFolderTree(r.Context(), user.ID)
	if err != nil {
		writeError(w, err, "Failed to get folder structure")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"folders": tree})
}

// DownloadFolder отдает поддерево папки одним zip-архивом. Заголовки
// уходят до начала записи, поэтому сбой посреди потока виден клиенту
// только как оборванный архив.
func (h *FolderHandler) DownloadFolder(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderIDStr := chi.URLParam(r, "id")
	folderID, err := strconv.ParseInt(folderIDStr, 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, folderIDStr, domain.ResourceTypeFolder, domain.ActionDownload) {
		return
	}

	folder, err := h.folderService.GetFolder(r.Context(), folderID)
	if err != nil {
		writeError(w, err, "Failed to get folder")
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", folder.Name+".zip"))

	if err := h.folderService.ArchiveFolder(r.Context(), folderID, w); err != nil {
		log.Printf("Error streaming folder archive %d: %v", folderID, err)
	}
}

type renameFolderRequest struct {
	Name string `json:"name"`
}

func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, chi.URLParam(r, "id"), domain.ResourceTypeFolder, domain.ActionRead) {
		return
	}

	var req renameFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	folder, err := h.folderService.RenameFolder(r.Context(), folderID, req.Name)
	if err != nil {
		writeError(w, err, "Failed to rename folder")
		return
	}

	writeJSON(w, http.StatusOK, folder)
}

type moveFolderRequest struct {
	NewParentID *int64 `json:"new_parent_id,omitempty"`
}

func (h *FolderHandler) MoveFolder(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, chi.URLParam(r, "id"), domain.ResourceTypeFolder, domain.ActionRead) {
		return
	}

	var req moveFolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.folderService.MoveFolder(r.Context(), folderID, req.NewParentID); err != nil {
		writeError(w, err, "Failed to move folder")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "moved"})
}

func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid folder ID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, chi.URLParam(r, "id"), domain.ResourceTypeFolder, domain.ActionRead) {
		return
	}

	if err := h.folderService.DeleteFolder(r.Context(), folderID); err != nil {
		writeError(w, err, "Failed to delete folder")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
