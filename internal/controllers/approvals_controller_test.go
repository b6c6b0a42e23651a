package controllers

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/approvalhq/approvalflow/internal/engine"
)

func TestWriteEngineErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{engine.ErrNoInstance, 404},
		{engine.ErrAlreadyInProgress, 409},
		{engine.ErrDuplicateDecision, 409},
		{engine.ErrNoTemplate, 400},
		{engine.ErrInvalidTemplate, 400},
		{engine.ErrUnknownSubject, 400},
		{engine.ErrInvalidAction, 400},
		{engine.ErrInvalidDelegation, 400},
		{engine.ErrNoActiveStage, 403},
		{engine.ErrNoAssignment, 403},
		{engine.ErrActionNotAllowed, 403},
		{fmt.Errorf("database on fire"), 500},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeEngineError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("Error %v: expected status %d, got %d", tc.err, tc.want, rec.Code)
		}
	}
	// wrapped sentinels map the same way
	rec := httptest.NewRecorder()
	writeEngineError(rec, fmt.Errorf("context: %w", engine.ErrDuplicateDecision))
	if rec.Code != 409 {
		t.Errorf("Wrapped sentinel: expected 409, got %d", rec.Code)
	}
}
