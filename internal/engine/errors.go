package engine

import "errors"

// Configuration errors: fatal to the call, never retried.
var (
	ErrNoTemplate       = errors.New("no active workflow template for subject type")
	ErrInvalidTemplate  = errors.New("invalid workflow template configuration")
	ErrUnknownSubject   = errors.New("subject type has no registered resolver")
)

// State errors: surfaced synchronously, the caller decides what to do.
var (
	ErrAlreadyInProgress = errors.New("workflow already in progress")
	ErrNoActiveStage     = errors.New("no active stage to act on")
	ErrNoAssignment      = errors.New("actor has no assignment in the active stage")
	ErrDuplicateDecision = errors.New("actor already decided on this stage")
	ErrActionNotAllowed  = errors.New("action not permitted by stage policy")
	ErrInvalidDelegation = errors.New("invalid delegation")
	ErrInvalidAction     = errors.New("invalid action")
)

// Not-found errors.
var ErrNoInstance = errors.New("no workflow instance found")
