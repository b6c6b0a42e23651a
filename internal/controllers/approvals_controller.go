package controllers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/engine"
	"github.com/approvalhq/approvalflow/internal/models"
	"github.com/approvalhq/approvalflow/internal/repository"
)

// ApprovalsController exposes the workflow lifecycle over HTTP: start, act,
// cancel, restart and the read endpoints.
type ApprovalsController struct {
	AuthController
	Orchestrator *engine.Orchestrator
	Registry     *core.SubjectRegistry
	Repos        *repository.Repositories
}

func NewApprovalsController(orchestrator *engine.Orchestrator, registry *core.SubjectRegistry,
	repos *repository.Repositories, directory core.RoleDirectory) *ApprovalsController {
	return &ApprovalsController{
		Orchestrator:   orchestrator,
		Registry:       registry,
		Repos:          repos,
		AuthController: AuthController{Directory: directory},
	}
}

func (c *ApprovalsController) resolveSubject(w http.ResponseWriter, subjectType string, subjectID int64) core.Approvable {
	if subjectType == "" || subjectID == 0 {
		http.Error(w, "subjectType and subjectId are required", http.StatusBadRequest)
		return nil
	}
	subject, err := c.Registry.Resolve(core.SubjectRef{Type: subjectType, ID: subjectID})
	if err != nil {
		http.Error(w, "unknown subject: "+err.Error(), http.StatusNotFound)
		return nil
	}
	return subject
}

// writeEngineError maps orchestrator sentinel errors onto HTTP statuses.
func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrNoInstance):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, engine.ErrAlreadyInProgress),
		errors.Is(err, engine.ErrDuplicateDecision):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, engine.ErrNoTemplate),
		errors.Is(err, engine.ErrInvalidTemplate),
		errors.Is(err, engine.ErrUnknownSubject),
		errors.Is(err, engine.ErrInvalidAction),
		errors.Is(err, engine.ErrInvalidDelegation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, engine.ErrNoActiveStage),
		errors.Is(err, engine.ErrNoAssignment),
		errors.Is(err, engine.ErrActionNotAllowed):
		http.Error(w, err.Error(), http.StatusForbidden)
	default:
		slog.Error("Workflow operation failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (c *ApprovalsController) handleStartWorkflow(w http.ResponseWriter, r *http.Request) {
	var req models.StartWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	subject := c.resolveSubject(w, req.SubjectType, req.SubjectID)
	if subject == nil {
		return
	}

	instance, err := c.Orchestrator.StartWorkflow(subject)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(instance)
}

func (c *ApprovalsController) handleAction(w http.ResponseWriter, r *http.Request) {
	var req models.ActionRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	subject := c.resolveSubject(w, req.SubjectType, req.SubjectID)
	if subject == nil {
		return
	}
	actorID := ActorIDFromContext(r.Context())
	if actorID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	instance, err := c.Orchestrator.ProcessAction(subject, actorID, req.Action, req.Comment, req.TargetActorID)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(instance)
}

func (c *ApprovalsController) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req models.CancelWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	subject := c.resolveSubject(w, req.SubjectType, req.SubjectID)
	if subject == nil {
		return
	}

	instance, err := c.Orchestrator.CancelWorkflow(subject, req.Reason)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(instance)
}

func (c *ApprovalsController) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req models.StartWorkflowRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	subject := c.resolveSubject(w, req.SubjectType, req.SubjectID)
	if subject == nil {
		return
	}

	instance, err := c.Orchestrator.RestartWorkflow(subject)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(instance)
}

func (c *ApprovalsController) handleGetByExternalId(w http.ResponseWriter, r *http.Request) {
	externalID := r.PathValue("externalId")
	if externalID == "" {
		http.Error(w, "externalId is required", http.StatusBadRequest)
		return
	}
	instance, err := c.Repos.Instances.FindByExternalID(externalID)
	if err != nil || instance == nil {
		http.Error(w, "workflow instance not found", http.StatusNotFound)
		return
	}
	detail, err := c.buildInstanceDetail(instance.ID)
	if err != nil {
		slog.Error("Failed to load instance detail", "instance_id", instance.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(detail)
}

func (c *ApprovalsController) handleGetBySubject(w http.ResponseWriter, r *http.Request) {
	subjectType := r.PathValue("type")
	subjectID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "subject id is an integer", http.StatusBadRequest)
		return
	}

	activeOnly := r.URL.Query().Get("active") == "true"
	var found *domain.WorkflowInstance
	if activeOnly {
		found, err = c.Repos.Instances.FindCurrentBySubject(subjectType, subjectID)
	} else {
		found, err = c.Repos.Instances.FindNewestBySubject(subjectType, subjectID)
	}
	if err != nil {
		slog.Error("Failed to look up instance", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if found == nil {
		http.Error(w, "workflow instance not found", http.StatusNotFound)
		return
	}
	detail, err := c.buildInstanceDetail(found.ID)
	if err != nil {
		slog.Error("Failed to load instance detail", "instance_id", found.ID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(detail)
}

func (c *ApprovalsController) handleFinished(w http.ResponseWriter, r *http.Request) {
	subjectType := r.PathValue("type")
	subjectID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "subject id is an integer", http.StatusBadRequest)
		return
	}
	instance, err := c.Repos.Instances.FindNewestBySubject(subjectType, subjectID)
	if err != nil {
		slog.Error("Failed to look up instance", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	resp := models.FinishedResponse{Finished: false, Status: "no_instance"}
	if instance != nil {
		resp = models.FinishedResponse{Finished: instance.IsTerminal(), Status: instance.Status}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

func (c *ApprovalsController) handlePendingApprovals(w http.ResponseWriter, r *http.Request) {
	actorID := ActorIDFromContext(r.Context())
	if actorID == 0 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	instances, err := c.Orchestrator.GetUserPendingApprovals(actorID)
	if err != nil {
		slog.Error("Failed to load pending approvals", "actor_id", actorID, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.PendingApprovalsResponse{Results: len(instances), Instances: instances})
}

func (c *ApprovalsController) buildInstanceDetail(instanceID int64) (*models.InstanceDetailResponse, error) {
	instance, err := c.Repos.Instances.FindByID(instanceID)
	if err != nil {
		return nil, err
	}
	stages, err := c.Repos.Stages.FindByInstanceID(instanceID)
	if err != nil {
		return nil, err
	}

	detail := &models.InstanceDetailResponse{Instance: *instance}
	for _, si := range stages {
		assignments, err := c.Repos.Assignments.FindByStageInstanceID(si.ID)
		if err != nil {
			return nil, err
		}
		actions, err := c.Repos.Actions.FindByStageInstanceID(si.ID)
		if err != nil {
			return nil, err
		}
		sd := models.StageDetail{Stage: *si}
		for _, a := range assignments {
			sd.Assignments = append(sd.Assignments, *a)
		}
		for _, a := range actions {
			sd.Actions = append(sd.Actions, *a)
		}
		detail.Stages = append(detail.Stages, sd)
	}
	return detail, nil
}
