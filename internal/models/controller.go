package models

import "github.com/approvalhq/approvalflow/internal/domain"

type StartWorkflowRequest struct {
	SubjectType string `json:"subjectType"`
	SubjectID   int64  `json:"subjectId"`
}

type ActionRequest struct {
	SubjectType   string `json:"subjectType"`
	SubjectID     int64  `json:"subjectId"`
	Action        string `json:"action"`
	Comment       string `json:"comment"`
	TargetActorID int64  `json:"targetActorId"`
}

type CancelWorkflowRequest struct {
	SubjectType string `json:"subjectType"`
	SubjectID   int64  `json:"subjectId"`
	Reason      string `json:"reason"`
}

type StageDetail struct {
	Stage       domain.StageInstance `json:"stage"`
	Assignments []domain.Assignment  `json:"assignments"`
	Actions     []domain.Action      `json:"actions"`
}

type InstanceDetailResponse struct {
	Instance domain.WorkflowInstance `json:"instance"`
	Stages   []StageDetail           `json:"stages"`
}

type PendingApprovalsResponse struct {
	Results   int                        `json:"results"`
	Instances []*domain.WorkflowInstance `json:"instances"`
}

type FinishedResponse struct {
	Finished bool   `json:"finished"`
	Status   string `json:"status"`
}

type TemplateDetailResponse struct {
	Template domain.WorkflowTemplate `json:"template"`
	Stages   []*domain.StageTemplate `json:"stages"`
}

type CreateStageTemplateRequest struct {
	OrderIndex     int    `json:"orderIndex"`
	Name           string `json:"name"`
	DecisionPolicy string `json:"decisionPolicy"`
	QuorumCount    int32  `json:"quorumCount"`
	RequiredRole   string `json:"requiredRole"`
	AllowReject    *bool  `json:"allowReject"`
	AllowDelegate  *bool  `json:"allowDelegate"`
	SLAHours       int32  `json:"slaHours"`
}

type CreateTemplateRequest struct {
	Code        string                       `json:"code"`
	Name        string                       `json:"name"`
	Description string                       `json:"description"`
	SubjectType string                       `json:"subjectType"`
	IsActive    *bool                        `json:"isActive"`
	Version     int                          `json:"version"`
	Stages      []CreateStageTemplateRequest `json:"stages"`
}
