package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"surfscale-engine/internal/analysis"
	"surfscale-engine/internal/campaign"
	"surfscale-engine/internal/engine"
	"surfscale-engine/internal/providers"
	"surfscale-engine/internal/scheduler"
	"surfscale-engine/internal/storage"
	"surfscale-engine/internal/surf"
)

// Service is the surf.Service surface the HTTP layer needs.
type Service interface {
	Account(ctx context.Context, id string) (campaign.Account, error)
	Campaigns(ctx context.Context, accountID string, period campaign.Period) (providers.Result, error)
	SetSurfScaling(ctx context.Context, accountID, key string, on bool) error
	RunCycle(ctx context.Context, accountID string) (engine.CycleResult, error)
	Logs(ctx context.Context, limit int) ([]engine.SurfLog, error)
	Rules() []engine.Rule
	SaveRules(ctx context.Context, rules []engine.Rule) error
	Refresh(ctx context.Context, accountID string, period campaign.Period) (providers.Result, error)
	Accounts(ctx context.Context) ([]campaign.Account, error)
	ImportMetaAccounts(ctx context.Context, token string) ([]campaign.Account, error)
	SaveSetting(ctx context.Context, key, value string) error
}

type SurfHandler struct {
	Svc Service
	// Schedule reports the surf scheduler; nil when scheduling is disabled.
	Schedule func() scheduler.Status
}

func NewSurfHandler(svc Service) *SurfHandler {
	return &SurfHandler{Svc: svc}
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, surf.ErrInvalidKey), errors.Is(err, surf.ErrInvalidRules),
		errors.Is(err, surf.ErrUnknownSetting), errors.Is(err, surf.ErrNoMetaToken):
		status = http.StatusBadRequest
	case errors.Is(err, surf.ErrUpstream):
		status = http.StatusBadGateway
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream failure")
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func (h *SurfHandler) Campaigns(w http.ResponseWriter, r *http.Request) {
	accountID := chi.URLParam(r, "accountID")
	period := campaign.ParsePeriod(r.URL.Query().Get("period"))

	res, err := h.Svc.Campaigns(r.Context(), accountID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SurfHandler) Analysis(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	accountID := chi.URLParam(r, "accountID")
	period := campaign.ParsePeriod(r.URL.Query().Get("period"))

	a, err := h.Svc.Account(ctx, accountID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Svc.Campaigns(ctx, accountID, period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.Failed() && len(res.Data) == 0 {
		writeJSON(w, http.StatusBadGateway, errorBody{Error: res.Error})
		return
	}
	writeJSON(w, http.StatusOK, analysis.Analyze(a, res.Data))
}

type surfToggle struct {
	IsSurfScaling *bool `json:"isSurfScaling"`
}

func (h *SurfHandler) SetSurf(w http.ResponseWriter, r *http.Request) {
	var body surfToggle
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.IsSurfScaling == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be {\"isSurfScaling\": bool}"})
		return
	}
	err := h.Svc.SetSurfScaling(r.Context(), chi.URLParam(r, "accountID"), chi.URLParam(r, "key"), *body.IsSurfScaling)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SurfHandler) RunCycle(w http.ResponseWriter, r *http.Request) {
	out, err := h.Svc.RunCycle(r.Context(), chi.URLParam(r, "accountID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SurfHandler) Rules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Svc.Rules())
}

func (h *SurfHandler) Logs(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	logs, err := h.Svc.Logs(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *SurfHandler) SaveRules(w http.ResponseWriter, r *http.Request) {
	var rules []engine.Rule
	if err := json.NewDecoder(r.Body).Decode(&rules); err != nil || rules == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be a JSON array of rules"})
		return
	}
	if err := h.Svc.SaveRules(r.Context(), rules); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.Svc.Rules())
}

func (h *SurfHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	period := campaign.ParsePeriod(r.URL.Query().Get("period"))
	res, err := h.Svc.Refresh(r.Context(), chi.URLParam(r, "accountID"), period)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *SurfHandler) Accounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Svc.Accounts(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

type importRequest struct {
	AccessToken string `json:"accessToken"`
}

// ImportAccounts accepts an empty body to reuse the stored Meta token.
func (h *SurfHandler) ImportAccounts(w http.ResponseWriter, r *http.Request) {
	var body importRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be {\"accessToken\": string}"})
		return
	}
	imported, err := h.Svc.ImportMetaAccounts(r.Context(), body.AccessToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	for i := range imported {
		imported[i] = imported[i].Redacted()
	}
	writeJSON(w, http.StatusOK, imported)
}

type settingValue struct {
	Value *string `json:"value"`
}

func (h *SurfHandler) SaveSetting(w http.ResponseWriter, r *http.Request) {
	var body settingValue
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Value == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "body must be {\"value\": string}"})
		return
	}
	if err := h.Svc.SaveSetting(r.Context(), chi.URLParam(r, "key"), *body.Value); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SurfHandler) ScheduleStatus(w http.ResponseWriter, _ *http.Request) {
	if h.Schedule == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "scheduler disabled"})
		return
	}
	writeJSON(w, http.StatusOK, h.Schedule())
}
