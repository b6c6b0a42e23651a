package controllers

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/approvalhq/approvalflow/internal/core"
	"github.com/approvalhq/approvalflow/internal/domain"
	"github.com/approvalhq/approvalflow/internal/models"
	"github.com/approvalhq/approvalflow/internal/repository"
)

// TemplatesController manages the workflow template catalog.
type TemplatesController struct {
	AuthController
	Templates *repository.TemplateRepository
}

func NewTemplatesController(templates *repository.TemplateRepository, directory core.RoleDirectory) *TemplatesController {
	return &TemplatesController{
		Templates:      templates,
		AuthController: AuthController{Directory: directory},
	}
}

func (c *TemplatesController) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := c.Templates.FindAll()
	if err != nil {
		slog.Error("Failed to list templates", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(templates)
}

func (c *TemplatesController) handleGetTemplateById(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "id is an integer", http.StatusBadRequest)
		return
	}
	template, err := c.Templates.FindByID(id)
	if err != nil {
		http.Error(w, "template not found", http.StatusNotFound)
		return
	}
	stages, err := c.Templates.FindStagesByTemplateID(id)
	if err != nil {
		slog.Error("Failed to load stage templates", "template_id", id, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(models.TemplateDetailResponse{Template: *template, Stages: stages})
}

func (c *TemplatesController) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req models.CreateTemplateRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	if req.Code == "" || req.Name == "" || req.SubjectType == "" {
		http.Error(w, "code, name and subjectType are required", http.StatusBadRequest)
		return
	}
	if len(req.Stages) == 0 {
		http.Error(w, "at least one stage is required", http.StatusBadRequest)
		return
	}
	for _, s := range req.Stages {
		switch s.DecisionPolicy {
		case domain.PolicyAll, domain.PolicyAny:
		case domain.PolicyQuorum:
			if s.QuorumCount < 1 {
				http.Error(w, "quorumCount must be >= 1 for QUORUM stages", http.StatusBadRequest)
				return
			}
		default:
			http.Error(w, "decisionPolicy must be one of ALL, ANY, QUORUM", http.StatusBadRequest)
			return
		}
	}

	version := req.Version
	if version < 1 {
		version = 1
	}
	template := &domain.WorkflowTemplate{
		Code:        req.Code,
		Name:        req.Name,
		SubjectType: req.SubjectType,
		IsActive:    req.IsActive == nil || *req.IsActive,
		Version:     version,
	}
	if req.Description != "" {
		template.Description = sql.NullString{String: req.Description, Valid: true}
	}
	if _, err := c.Templates.Save(template); err != nil {
		slog.Error("Failed to save template", "code", req.Code, "error", err)
		http.Error(w, "failed to create template", http.StatusInternalServerError)
		return
	}

	var stages []*domain.StageTemplate
	for _, s := range req.Stages {
		stage := &domain.StageTemplate{
			TemplateID:     template.ID,
			OrderIndex:     s.OrderIndex,
			Name:           s.Name,
			DecisionPolicy: s.DecisionPolicy,
			AllowReject:    s.AllowReject == nil || *s.AllowReject,
			AllowDelegate:  s.AllowDelegate == nil || *s.AllowDelegate,
		}
		if s.QuorumCount > 0 {
			stage.QuorumCount = sql.NullInt32{Int32: s.QuorumCount, Valid: true}
		}
		if s.RequiredRole != "" {
			stage.RequiredRole = sql.NullString{String: s.RequiredRole, Valid: true}
		}
		if s.SLAHours > 0 {
			stage.SLAHours = sql.NullInt32{Int32: s.SLAHours, Valid: true}
		}
		if _, err := c.Templates.SaveStage(stage); err != nil {
			slog.Error("Failed to save stage template", "template_id", template.ID, "stage", s.Name, "error", err)
			http.Error(w, "failed to create template", http.StatusInternalServerError)
			return
		}
		stages = append(stages, stage)
	}
	slog.Info("Created workflow template", "code", template.Code, "version", template.Version, "stages", len(stages))

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(models.TemplateDetailResponse{Template: *template, Stages: stages})
}
