package controllers

import "net/http"

// RegisterRoutes wires the HTTP routes for this controller.
func (c *ApprovalsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/approvals", c.RequireAuth(c.handleStartWorkflow))
	mux.HandleFunc("POST /api/approvals/action", c.RequireAuth(c.handleAction))
	mux.HandleFunc("POST /api/approvals/cancel", c.RequireAuth(c.handleCancel))
	mux.HandleFunc("POST /api/approvals/restart", c.RequireAuth(c.handleRestart))
	mux.HandleFunc("GET /api/approvals/pending", c.RequireAuth(c.handlePendingApprovals))
	mux.HandleFunc("GET /api/approvals/{externalId}", c.RequireAuth(c.handleGetByExternalId))
	mux.HandleFunc("GET /api/approvals/subject/{type}/{id}", c.RequireAuth(c.handleGetBySubject))
	mux.HandleFunc("GET /api/approvals/subject/{type}/{id}/finished", c.RequireAuth(c.handleFinished))
}

func (c *TemplatesController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/templates", c.RequireAuth(c.handleListTemplates))
	mux.HandleFunc("POST /api/templates", c.RequireAuth(c.handleCreateTemplate))
	mux.HandleFunc("GET /api/templates/{id}", c.RequireAuth(c.handleGetTemplateById))
}

func (c *ActorsController) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/actors", c.RequireAuth(c.handleGetActors))
	mux.HandleFunc("POST /api/actors", c.RequireAuth(c.handleCreateActor))
	mux.HandleFunc("GET /api/actors/{id}", c.RequireAuth(c.handleGetActorById))
}
