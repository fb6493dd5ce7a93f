package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/VSFLima/Byte-Capital/internal/models/modelstorage"
	workflow "github.com/VSFLima/Byte-Capital/internal/service/workflow/v1"
)

// AdminHandler sets object structure.
type AdminHandler struct {
	service workflow.Workflow
}

// NewAdminHandler initializes a new admin access handler.
func NewAdminHandler(service workflow.Workflow) (*AdminHandler, error) {
	if service == nil {
		return nil, errors.New("nil workflow object was found")
	}
	return &AdminHandler{service: service}, nil
}

// AdminHandle rejects requests whose bearer does not hold the admin role.
// The role is re-read from storage on every request.
func (c *AdminHandler) AdminHandle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
		defer cancel()
		tokenString := r.Header.Get("Authorization")
		if len(tokenString) == 0 {
			http.Error(w, "Token authorization required", http.StatusUnauthorized)
			return
		}
		tokenString = strings.Replace(tokenString, "Bearer ", "", 1)
		userID, err := c.service.GetUserID(tokenString)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		role, err := c.service.GetUserRole(ctx, userID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		if role != modelstorage.RoleAdmin {
			http.Error(w, "Admin access required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
