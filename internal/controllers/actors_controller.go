package controllers

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/repository"

	"golang.org/x/crypto/bcrypt"
)

// ActorsController manages the approver directory.
type ActorsController struct {
	AuthController
	Actors *repository.ActorRepository
}

func NewActorsController(actors *repository.ActorRepository) *ActorsController {
	return &ActorsController{
		Actors:         actors,
		AuthController: AuthController{Directory: actors},
	}
}

type createActorRequest struct {
	Name    string `json:"name"`
	Role    string `json:"role"`
	IsAdmin bool   `json:"isAdmin"`
}

type createActorResponse struct {
	Actor  domain.Actor `json:"actor"`
	ApiKey string       `json:"apiKey"`
}

func (c *ActorsController) handleGetActors(w http.ResponseWriter, r *http.Request) {
	actors, err := c.Actors.FindAll()
	if err != nil {
		slog.Error("Failed to get actors", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(actors)
}

func (c *ActorsController) handleGetActorById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "id is an integer", http.StatusBadRequest)
		return
	}
	actor, err := c.Actors.FindActorByID(id)
	if err != nil {
		slog.Error("Failed to get actor", "id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if actor == nil {
		http.Error(w, "actor not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(actor)
}

// handleCreateActor creates an actor and issues its API key. The plaintext
// key is returned once; only the bcrypt hash is stored.
func (c *ActorsController) handleCreateActor(w http.ResponseWriter, r *http.Request) {
	var req createActorRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	actor := &domain.Actor{
		Name:    req.Name,
		IsAdmin: req.IsAdmin,
		Enabled: sql.NullBool{Bool: true, Valid: true},
	}
	if req.Role != "" {
		actor.Role = sql.NullString{String: req.Role, Valid: true}
	}
	if _, err := c.Actors.Save(actor); err != nil {
		slog.Error("Failed to create actor", "name", req.Name, "error", err)
		http.Error(w, "failed to create actor", http.StatusInternalServerError)
		return
	}

	secret, err := generateSecret()
	if err != nil {
		slog.Error("Failed to generate API key", "error", err)
		http.Error(w, "failed to create actor", http.StatusInternalServerError)
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		slog.Error("Failed to hash API key", "error", err)
		http.Error(w, "failed to create actor", http.StatusInternalServerError)
		return
	}
	if err := c.Actors.UpdateApiKey(actor.ID, string(hash)); err != nil {
		slog.Error("Failed to store API key", "actor_id", actor.ID, "error", err)
		http.Error(w, "failed to create actor", http.StatusInternalServerError)
		return
	}
	actor.ApiKey = sql.NullString{String: string(hash), Valid: true}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(createActorResponse{
		Actor:  *actor,
		ApiKey: fmt.Sprintf("%d:%s", actor.ID, secret),
	})
}

func generateSecret() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
