package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"couponflow/internal/dispatch"
	"couponflow/internal/domain"
	"couponflow/internal/store"
)

type Server struct {
	repo    store.Repository
	runtime *dispatch.Runtime
}

func NewServer(repo store.Repository, runtime *dispatch.Runtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	s := &Server{repo: repo, runtime: runtime}

	r.Get("/health", s.health)
	r.Get("/metrics", s.metrics)
	r.Post("/api/tenants", s.registerTenant)
	r.Get("/api/tenants/{id}", s.getTenant)
	r.Put("/api/tenants/{id}/auto", s.setAuto)
	r.Put("/api/tenants/{id}/report", s.setReport)
	r.Delete("/api/tenants/{id}", s.deleteTenant)
	r.Get("/api/summary", s.summary)
	r.Post("/api/runs", s.triggerRun)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) metrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("content-type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("couponflow_up 1\n"))
}

type registerReq struct {
	Name          string `json:"name"`
	Token         string `json:"token"`
	AutoEnabled   *bool  `json:"auto_enabled"`
	ReportEnabled *bool  `json:"report_enabled"`
}

type registerResp struct {
	ID string `json:"id"`
}

func (s *Server) registerTenant(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", 400)
		return
	}
	if req.Token == "" {
		http.Error(w, "token is required", 400)
		return
	}
	t := domain.Tenant{
		Name:          req.Name,
		Token:         req.Token,
		AutoEnabled:   true,
		ReportEnabled: true,
	}
	if req.AutoEnabled != nil {
		t.AutoEnabled = *req.AutoEnabled
	}
	if req.ReportEnabled != nil {
		t.ReportEnabled = *req.ReportEnabled
	}
	id, err := s.repo.Upsert(r.Context(), t)
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, http.StatusCreated, registerResp{ID: id})
}

func (s *Server) getTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := s.repo.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	resp := map[string]any{
		"id":             t.ID,
		"name":           t.Name,
		"auto_enabled":   t.AutoEnabled,
		"report_enabled": t.ReportEnabled,
		"total_success":  t.TotalSuccess,
		"total_failed":   t.TotalFailed,
		"created_at":     t.CreatedAt.Format(time.RFC3339),
	}
	if t.LastRunDate != nil {
		resp["last_run_date"] = t.LastRunDate.Format(time.RFC3339)
	}
	if t.LastRunSuccess != nil {
		resp["last_run_success"] = *t.LastRunSuccess
	}
	writeJSON(w, 200, resp)
}

type enabledReq struct {
	Enabled bool `json:"enabled"`
}

func (s *Server) setAuto(w http.ResponseWriter, r *http.Request) {
	s.setFlag(w, r, s.repo.SetAutoEnabled)
}

func (s *Server) setReport(w http.ResponseWriter, r *http.Request) {
	s.setFlag(w, r, s.repo.SetReportEnabled)
}

func (s *Server) setFlag(w http.ResponseWriter, r *http.Request, set func(ctx context.Context, id string, enabled bool) error) {
	id := chi.URLParam(r, "id")
	var req enabledReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	if _, err := s.repo.Get(r.Context(), id); errors.Is(err, store.ErrNotFound) {
		http.Error(w, "not found", 404)
		return
	}
	if err := set(r.Context(), id, req.Enabled); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]bool{"enabled": req.Enabled})
}

func (s *Server) deleteTenant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.repo.Delete(r.Context(), id); err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) summary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.repo.Summarize(r.Context())
	if err != nil {
		http.Error(w, err.Error(), 500)
		return
	}
	writeJSON(w, 200, map[string]int{
		"tenants":       sum.Tenants,
		"auto_enabled":  sum.AutoEnabled,
		"total_success": sum.TotalSuccess,
		"total_failed":  sum.TotalFailed,
	})
}

type runReq struct {
	Kind string `json:"kind"`
	Meal string `json:"meal"`
}

func (s *Server) triggerRun(w http.ResponseWriter, r *http.Request) {
	var req runReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), 400)
		return
	}
	job := domain.Job{Kind: domain.JobKind(req.Kind), Meal: domain.Meal(req.Meal)}
	switch job.Kind {
	case domain.JobClaim, domain.JobTodayDigest, domain.JobExpiryCheck, domain.JobMealReminder:
	default:
		http.Error(w, "unknown job kind", 400)
		return
	}
	if !s.runtime.Submit(job) {
		http.Error(w, "job queue full", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"kind": string(job.Kind)})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
