package controllers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/approvalhq/approvalflow/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type MockDirectory struct {
	ResolveEligibleActorsFunc func(roleFilter string) ([]*domain.Actor, error)
	FindActorByIDFunc         func(id int64) (*domain.Actor, error)
	FindFirstAdminFunc        func() (*domain.Actor, error)
}

func (m *MockDirectory) ResolveEligibleActors(roleFilter string) ([]*domain.Actor, error) {
	if m.ResolveEligibleActorsFunc != nil {
		return m.ResolveEligibleActorsFunc(roleFilter)
	}
	return nil, nil
}
func (m *MockDirectory) FindActorByID(id int64) (*domain.Actor, error) {
	if m.FindActorByIDFunc != nil {
		return m.FindActorByIDFunc(id)
	}
	return nil, nil
}
func (m *MockDirectory) FindFirstAdmin() (*domain.Actor, error) {
	if m.FindFirstAdminFunc != nil {
		return m.FindFirstAdminFunc()
	}
	return nil, nil
}

func testActorWithKey(t *testing.T, id int64, secret string, enabled bool) *domain.Actor {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("Failed to hash secret: %v", err)
	}
	return &domain.Actor{
		ID:      id,
		Name:    "Alice",
		ApiKey:  sql.NullString{String: string(hash), Valid: true},
		Enabled: sql.NullBool{Bool: enabled, Valid: true},
	}
}

func runAuth(t *testing.T, directory *MockDirectory, apiKey string) (*httptest.ResponseRecorder, int64) {
	t.Helper()
	ac := &AuthController{Directory: directory}
	var gotActorID int64
	handler := ac.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		gotActorID = ActorIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	req := httptest.NewRequest(http.MethodGet, "/api/approvals/pending", nil)
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec, gotActorID
}

func TestRequireAuthAcceptsValidKey(t *testing.T) {
	actor := testActorWithKey(t, 7, "s3cret", true)
	directory := &MockDirectory{
		FindActorByIDFunc: func(id int64) (*domain.Actor, error) {
			if id != 7 {
				t.Errorf("Expected lookup of actor 7, got %d", id)
			}
			return actor, nil
		},
	}
	rec, actorID := runAuth(t, directory, "7:s3cret")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if actorID != 7 {
		t.Errorf("Expected actor id 7 in context, got %d", actorID)
	}
}

func TestRequireAuthRejectsBadSecret(t *testing.T) {
	actor := testActorWithKey(t, 7, "s3cret", true)
	directory := &MockDirectory{
		FindActorByIDFunc: func(id int64) (*domain.Actor, error) { return actor, nil },
	}
	rec, _ := runAuth(t, directory, "7:wrong")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsDisabledActor(t *testing.T) {
	actor := testActorWithKey(t, 7, "s3cret", false)
	directory := &MockDirectory{
		FindActorByIDFunc: func(id int64) (*domain.Actor, error) { return actor, nil },
	}
	rec, _ := runAuth(t, directory, "7:s3cret")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthRejectsMissingOrMalformedKey(t *testing.T) {
	directory := &MockDirectory{}
	for _, key := range []string{"", "no-separator", "notanumber:secret"} {
		rec, _ := runAuth(t, directory, key)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Key %q: expected 401, got %d", key, rec.Code)
		}
	}
}

func TestRequireAuthRejectsUnknownActor(t *testing.T) {
	directory := &MockDirectory{
		FindActorByIDFunc: func(id int64) (*domain.Actor, error) { return nil, nil },
	}
	rec, _ := runAuth(t, directory, "99:s3cret")
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}
