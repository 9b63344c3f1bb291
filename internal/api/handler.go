package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/perch/internal/domain"
	"github.com/opensource-finance/perch/internal/policy"
	"github.com/opensource-finance/perch/internal/report"
	"github.com/opensource-finance/perch/internal/scoring"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	Deps
	reporter *report.Reporter
	version  string
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps, version string) *Handler {
	if deps.Evaluator == nil {
		deps.Evaluator = policy.Default
	}
	return &Handler{
		Deps:     deps,
		reporter: report.NewReporter(deps.Evaluator),
		version:  version,
	}
}

// EvaluateRequest is the request body for POST /deposits/evaluate.
// When Record is omitted the client's stored snapshot is used.
type EvaluateRequest struct {
	Appointment *domain.AppointmentContext     `json:"appointment"`
	Record      *domain.ClientReliabilityRecord `json:"record,omitempty"`
}

// EvaluateResponse is the response for POST /deposits/evaluate.
type EvaluateResponse struct {
	Decision      domain.DepositDecision `json:"decision"`
	DepositAmount string                 `json:"depositAmount"`
	Score         int                    `json:"score"`
	Trace         []domain.RuleTrace     `json:"trace,omitempty"`
	Metadata      struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Validate checks the appointment and ties an inline record to its client.
// A record without a clientId takes the appointment's.
func (req *EvaluateRequest) Validate() error {
	if err := req.Appointment.Validate(); err != nil {
		return err
	}
	if req.Record == nil {
		return nil
	}
	if req.Record.ClientID == "" {
		req.Record.ClientID = req.Appointment.ClientID
	}
	if req.Record.ClientID != req.Appointment.ClientID {
		return &domain.ValidationError{Field: "record.clientId", Reason: "does not match appointment clientId"}
	}
	return nil
}

// EvaluateDeposit handles POST /deposits/evaluate.
func (h *Handler) EvaluateDeposit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Appointment.TenantID = tenantID

	rec := req.Record
	if rec == nil && h.History != nil {
		rec = h.History.LookupOrNew(ctx, tenantID, req.Appointment.ClientID)
	}

	res, err := h.Evaluator.Explain(req.Appointment, rec)
	if err != nil {
		writeDomainError(w, err, "deposit evaluation failed")
		return
	}

	resp := EvaluateResponse{
		Decision:      res.Decision,
		DepositAmount: report.DepositAmount(req.Appointment.ServicePrice, res.Decision.Percentage).StringFixed(2),
		Score:         res.Score,
		Trace:         res.Trace,
	}
	resp.Metadata.TraceID = GetTraceID(ctx)
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version

	slog.Debug("deposit evaluated",
		"tenant_id", tenantID,
		"client_id", req.Appointment.ClientID,
		"percentage", res.Decision.Percentage,
		"reason", res.Decision.ReasonCode,
	)

	writeJSON(w, http.StatusOK, resp)
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.Repo != nil {
		if err := h.Repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.Cache != nil {
		if err := h.Cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.Bus != nil {
		if err := h.Bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// PutClient stores a client's reliability snapshot.
func (h *Handler) PutClient(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	clientID := chi.URLParam(r, "id")

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	var rec domain.ClientReliabilityRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if rec.ClientID == "" {
		rec.ClientID = clientID
	}
	if rec.ClientID != clientID {
		writeError(w, http.StatusBadRequest, "clientId does not match path")
		return
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.Repo.SaveRecord(ctx, tenantID, &rec); err != nil {
		slog.Error("failed to save record", "tenant_id", tenantID, "client_id", clientID, "error", err)
		writeDomainError(w, err, "failed to save record")
		return
	}

	if h.History != nil {
		if err := h.History.Invalidate(ctx, tenantID, clientID); err != nil {
			slog.Warn("failed to invalidate cached record", "tenant_id", tenantID, "client_id", clientID, "error", err)
		}
	}

	writeJSON(w, http.StatusOK, &rec)
}

// GetClient returns a client's stored snapshot.
func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "client not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ScoreResponse is the response for GET /clients/{id}/score.
type ScoreResponse struct {
	ClientID         string          `json:"clientId"`
	Score            int             `json:"score"`
	Tier             domain.RiskTier `json:"tier"`
	CancellationRate float64         `json:"cancellationRate"`
	NoShowRate       float64         `json:"noShowRate"`
	HasRecord        bool            `json:"hasRecord"`
}

// GetClientScore returns the recomputed reliability score.
// A client without a snapshot scores as new.
func (h *Handler) GetClientScore(w http.ResponseWriter, r *http.Request) {
	rec, ok := h.lookup(w, r)
	if !ok {
		return
	}

	resp := ScoreResponse{
		ClientID: chi.URLParam(r, "id"),
		Score:    scoring.MaxScore,
	}
	if rec != nil {
		score, err := scoring.ComputeScore(rec)
		if err != nil {
			writeDomainError(w, err, "failed to compute score")
			return
		}
		resp.Score = score
		resp.CancellationRate = scoring.CancellationRate(rec)
		resp.NoShowRate = scoring.NoShowRate(rec)
		resp.HasRecord = true
	}
	resp.Tier = report.TierFor(resp.Score)

	writeJSON(w, http.StatusOK, resp)
}

// lookup reads the path client's snapshot. It writes the error response
// itself and reports false when the request cannot proceed.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*domain.ClientReliabilityRecord, bool) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	clientID := chi.URLParam(r, "id")

	if h.History == nil {
		writeError(w, http.StatusServiceUnavailable, "record lookup not available")
		return nil, false
	}

	rec, err := h.History.Lookup(ctx, tenantID, clientID)
	if err != nil {
		slog.Error("failed to look up record", "tenant_id", tenantID, "client_id", clientID, "error", err)
		writeDomainError(w, err, "failed to look up record")
		return nil, false
	}
	return rec, true
}

// CreateAppointment stores an appointment. A missing appointmentId is generated.
func (h *Handler) CreateAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	var appt domain.AppointmentContext
	if err := json.NewDecoder(r.Body).Decode(&appt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}
	if err := appt.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if appt.AppointmentID == "" {
		appt.AppointmentID = uuid.New().String()
	}
	appt.TenantID = tenantID

	if err := h.Repo.SaveAppointment(ctx, tenantID, &appt); err != nil {
		slog.Error("failed to save appointment", "tenant_id", tenantID, "id", appt.AppointmentID, "error", err)
		writeDomainError(w, err, "failed to save appointment")
		return
	}

	writeJSON(w, http.StatusCreated, &appt)
}

// GetAppointment retrieves an appointment by ID.
func (h *Handler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	apptID := chi.URLParam(r, "id")

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	appt, err := h.Repo.GetAppointment(ctx, tenantID, apptID)
	if err != nil {
		writeDomainError(w, err, "failed to get appointment")
		return
	}

	writeJSON(w, http.StatusOK, appt)
}

// RiskReport partitions every stored client of the tenant into risk tiers.
func (h *Handler) RiskReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	records, err := h.Repo.ListRecords(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list records", "tenant_id", tenantID, "error", err)
		writeDomainError(w, err, "failed to list records")
		return
	}

	rep, err := report.Categorize(records)
	if err != nil {
		writeDomainError(w, err, "failed to categorize records")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"highRisk":   rep.HighRisk,
		"mediumRisk": rep.MediumRisk,
		"lowRisk":    rep.LowRisk,
		"total":      rep.Total(),
	})
}

// AttentionItem is one entry of GET /reports/attention.
type AttentionItem struct {
	Appointment   *domain.AppointmentContext `json:"appointment"`
	Decision      domain.DepositDecision     `json:"decision"`
	DepositAmount string                     `json:"depositAmount"`
	Score         int                        `json:"score"`
}

// AttentionReport lists booked appointments whose deposit exceeds the
// attention threshold.
func (h *Handler) AttentionReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	if h.Repo == nil {
		writeError(w, http.StatusServiceUnavailable, "repository not available")
		return
	}

	appts, err := h.Repo.ListAppointments(ctx, tenantID, domain.AppointmentBooked)
	if err != nil {
		slog.Error("failed to list appointments", "tenant_id", tenantID, "error", err)
		writeDomainError(w, err, "failed to list appointments")
		return
	}

	records, err := h.Repo.ListRecords(ctx, tenantID)
	if err != nil {
		slog.Error("failed to list records", "tenant_id", tenantID, "error", err)
		writeDomainError(w, err, "failed to list records")
		return
	}
	byClient := make(map[string]*domain.ClientReliabilityRecord, len(records))
	for _, rec := range records {
		byClient[rec.ClientID] = rec
	}

	found, err := h.reporter.NeedsAttention(appts, byClient)
	if err != nil {
		writeDomainError(w, err, "failed to evaluate appointments")
		return
	}

	items := make([]AttentionItem, len(found))
	for i, it := range found {
		items[i] = AttentionItem{
			Appointment:   it.Appointment,
			Decision:      it.Decision,
			DepositAmount: it.DepositAmount.StringFixed(2),
			Score:         it.Score,
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": items,
		"count": len(items),
	})
}

// ListRules returns the custom rules currently loaded in the engine.
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil {
		writeError(w, http.StatusServiceUnavailable, "rule engine not available")
		return
	}

	loaded := h.Engine.GetLoadedRules()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rules": loaded,
		"count": len(loaded),
	})
}

// GetRule returns a loaded rule, falling back to the stored config.
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	ruleID := chi.URLParam(r, "id")

	if h.Engine != nil {
		for _, rule := range h.Engine.GetLoadedRules() {
			if rule.ID == ruleID {
				writeJSON(w, http.StatusOK, rule)
				return
			}
		}
	}

	if h.Repo != nil {
		rule, err := h.Repo.GetRuleConfig(r.Context(), domain.GlobalTenantID, ruleID)
		if err == nil {
			writeJSON(w, http.StatusOK, rule)
			return
		}
		if !errors.Is(err, domain.ErrNotFound) {
			writeDomainError(w, err, "failed to get rule")
			return
		}
	}

	writeError(w, http.StatusNotFound, "rule not found")
}

// CreateRuleRequest is the request body for creating a rule.
type CreateRuleRequest struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Expression  string            `json:"expression"`
	Floor       int               `json:"floor"`
	Reason      domain.ReasonCode `json:"reason"`
	Priority    int               `json:"priority"`
	Enabled     bool              `json:"enabled"`
}

// CreateRule validates, stores and applies a global rule.
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if h.Engine == nil {
		writeError(w, http.StatusServiceUnavailable, "rule engine not available")
		return
	}

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	cfg := &domain.RuleConfig{
		ID:          req.ID,
		TenantID:    domain.GlobalTenantID,
		Name:        req.Name,
		Description: req.Description,
		Version:     "1.0.0",
		Expression:  req.Expression,
		Floor:       req.Floor,
		Reason:      req.Reason,
		Priority:    req.Priority,
		Enabled:     req.Enabled,
	}
	if err := h.Engine.ValidateRule(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}

	if h.Repo != nil {
		if err := h.Repo.SaveRuleConfig(ctx, domain.GlobalTenantID, cfg); err != nil {
			slog.Error("failed to save rule config", "id", cfg.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save rule")
			return
		}
	}

	if h.Loader != nil {
		if _, err := h.Engine.Reload(ctx, h.Loader); err != nil {
			slog.Error("failed to reload rules after create", "id", cfg.ID, "error", err)
			writeError(w, http.StatusInternalServerError, "rule saved but reload failed: "+err.Error())
			return
		}
	} else if err := h.Engine.LoadRule(cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rule: "+err.Error())
		return
	}

	slog.Info("rule created", "id", cfg.ID, "enabled", cfg.Enabled)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"rule":      cfg,
		"loaded":    h.Engine.RulesCount(),
		"persisted": h.Repo != nil,
	})
}

// ReloadRules reloads stored and seeded rules into the engine.
func (h *Handler) ReloadRules(w http.ResponseWriter, r *http.Request) {
	if h.Engine == nil || h.Loader == nil {
		writeError(w, http.StatusServiceUnavailable, "rule reload not available")
		return
	}

	count, err := h.Engine.Reload(r.Context(), h.Loader)
	if err != nil {
		slog.Error("failed to reload rules", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to reload rules: "+err.Error())
		return
	}

	slog.Info("rules reloaded", "count", count)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "rules reloaded successfully",
		"count":   count,
	})
}

// writeDomainError maps domain errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case domain.IsValidation(err), errors.Is(err, domain.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
