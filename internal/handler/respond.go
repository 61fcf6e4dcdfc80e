package handler

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"fmdrive/internal/auth"
	"fmdrive/internal/domain"
	"fmdrive/internal/service"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// writeError переводит сентинельные ошибки домена в HTTP статусы.
// Текст внутренних ошибок наружу не уходит.
func writeError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, msg, http.StatusNotFound)
	case errors.Is(err, domain.ErrForbidden):
		http.Error(w, msg, http.StatusForbidden)
	case errors.Is(err, domain.ErrConflict):
		http.Error(w, msg, http.StatusConflict)
	case errors.Is(err, domain.ErrValidation):
		http.Error(w, msg, http.StatusBadRequest)
	case errors.Is(err, domain.ErrStoreUnavailable):
		http.Error(w, msg, http.StatusServiceUnavailable)
	default:
		log.Printf("Internal error: %v", err)
		http.Error(w, msg, http.StatusInternalServerError)
	}
}

// authorize проверяет эффективный доступ к ресурсу (создатель,
// материализованное право или super_admin) и при отказе сам пишет
// ответ. Возвращает true, если запрос можно обрабатывать дальше.
func authorize(
	w http.ResponseWriter,
	r *http.Request,
	perms *service.PermissionService,
	user *auth.UserInfo,
	resourceID string,
	resourceType domain.ResourceType,
	action domain.Action,
) bool {
	allowed, err := perms.CheckAccess(r.Context(), user.ID, user.Role, resourceID, resourceType, action)
	if err != nil {
		writeError(w, err, "Failed to check access")
		return false
	}
	if !allowed {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return false
	}
	return true
}
