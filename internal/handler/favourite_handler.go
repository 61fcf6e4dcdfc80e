package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"fmdrive/internal/auth"
	"fmdrive/internal/domain"
	"fmdrive/internal/service"
)

type FavouriteHandler struct {
	verifier          *auth.Verifier
	favouriteService  *service.FavouriteService
	permissionService *service.PermissionService
}

func NewFavouriteHandler(verifier *auth.Verifier, favouriteService *service.FavouriteService, permissionService *service.PermissionService) *FavouriteHandler {
	return &FavouriteHandler{
		verifier:          verifier,
		favouriteService:  favouriteService,
		permissionService: permissionService,
	}
}

func (h *FavouriteHandler) ToggleFolder(w http.ResponseWriter, r *http.Request) {
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

	favourited, err := h.favouriteService.ToggleFolder(r.Context(), user.ID, folderID)
	if err != nil {
		writeError(w, err, "Failed to toggle favourite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"favourited": favourited})
}

func (h *FavouriteHandler) ToggleFile(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	fileUUID, err := uuid.Parse(chi.URLParam(r, "uuid"))
	if err != nil {
		http.Error(w, "Invalid file UUID", http.StatusBadRequest)
		return
	}

	if !authorize(w, r, h.permissionService, user, fileUUID.String(), domain.ResourceTypeFile, domain.ActionRead) {
		return
	}

	favourited, err := h.favouriteService.ToggleFile(r.Context(), user.ID, fileUUID)
	if err != nil {
		writeError(w, err, "Failed to toggle favourite")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"favourited": favourited})
}

// ListFavourites отдает активное избранное пользователя
func (h *FavouriteHandler) ListFavourites(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	folders, files, err := h.favouriteService.ListFavourites(r.Context(), user.ID)
	if err != nil {
		writeError(w, err, "Failed to list favourites")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"folders": folders,
		"files":   files,
	})
}
