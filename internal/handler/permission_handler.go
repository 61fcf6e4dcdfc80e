package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"fmdrive/internal/auth"
	"fmdrive/internal/domain"
	"fmdrive/internal/service"
)

type PermissionHandler struct {
	verifier          *auth.Verifier
	permissionService *service.PermissionService
	validate          *validator.Validate
}

func NewPermissionHandler(verifier *auth.Verifier, permissionService *service.PermissionService) *PermissionHandler {
	return &PermissionHandler{
		verifier:          verifier,
		permissionService: permissionService,
		validate:          validator.New(),
	}
}

// AssignPermission выдает или обновляет право на ресурс
func (h *PermissionHandler) AssignPermission(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req service.AssignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, "Invalid request: "+err.Error(), http.StatusBadRequest)
		return
	}

	perm, err := h.permissionService.Assign(r.Context(), user.ID, user.Role, req)
	if err != nil {
		writeError(w, err, "Failed to assign permission")
		return
	}

	writeJSON(w, http.StatusCreated, perm)
}

func (h *PermissionHandler) RemovePermission(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	permID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Invalid permission ID", http.StatusBadRequest)
		return
	}

	if err := h.permissionService.Remove(r.Context(), user.ID, user.Role, permID); err != nil {
		writeError(w, err, "Failed to remove permission")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// ListResourcePermissions отдает все права на ресурс
func (h *PermissionHandler) ListResourcePermissions(w http.ResponseWriter, r *http.Request) {
	if _, err := h.verifier.VerifyToken(r); err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	resourceType := domain.ResourceType(r.URL.Query().Get("resource_type"))
	if resourceType != domain.ResourceTypeFile && resourceType != domain.ResourceTypeFolder {
		http.Error(w, "Invalid resource type", http.StatusBadRequest)
		return
	}

	resourceID := chi.URLParam(r, "resourceId")
	if resourceID == "" {
		http.Error(w, "Resource ID is required", http.StatusBadRequest)
		return
	}

	perms, err := h.permissionService.ListByResource(r.Context(), resourceID, resourceType)
	if err != nil {
		writeError(w, err, "Failed to list permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}

// ListMyPermissions отдает права текущего пользователя
func (h *PermissionHandler) ListMyPermissions(w http.ResponseWriter, r *http.Request) {
	user, err := h.verifier.VerifyToken(r)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	perms, err := h.permissionService.ListByUser(r.Context(), user.ID)
	if err != nil {
		writeError(w, err, "Failed to list permissions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"permissions": perms})
}
