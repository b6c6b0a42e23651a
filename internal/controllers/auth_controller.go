package controllers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/approvalhq/approvalflow/internal/core"

	"golang.org/x/crypto/bcrypt"
)

// AuthController authenticates API calls. Keys are presented as
// "X-API-Key: <actorId>:<secret>"; the stored side is a bcrypt hash, so
// lookup goes by actor id and the secret is compared against the hash.
type AuthController struct {
	Directory core.RoleDirectory
}

func NewAuthController(directory core.RoleDirectory) *AuthController {
	return &AuthController{Directory: directory}
}

func (ac *AuthController) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		idStr, secret, ok := strings.Cut(apiKey, ":")
		if !ok {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		actor, err := ac.Directory.FindActorByID(id)
		if err != nil || actor == nil || !actor.ApiKey.Valid {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if actor.Enabled.Valid && !actor.Enabled.Bool {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if bcrypt.CompareHashAndPassword([]byte(actor.ApiKey.String), []byte(secret)) != nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), core.CtxKeyActorID, actor.ID)
		ctx = context.WithValue(ctx, core.CtxKeyActorName, actor.Name)
		next(w, r.WithContext(ctx))
	}
}

// ActorIDFromContext returns the authenticated actor id, zero when absent.
func ActorIDFromContext(ctx context.Context) int64 {
	if v := ctx.Value(core.CtxKeyActorID); v != nil {
		if id, ok := v.(int64); ok {
			return id
		}
	}
	return 0
}
