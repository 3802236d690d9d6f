// Package consolhttp exposes the consolidation run API over HTTP.
package consolhttp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/meridianfin/meridian/internal/consol"
	"github.com/meridianfin/meridian/internal/platform/cache"
	"github.com/meridianfin/meridian/internal/platform/httpx"
)

// Orchestrator is the slice of the run orchestrator the handler needs.
type Orchestrator interface {
	StartRun(ctx context.Context, groupID string, period consol.Period, opts consol.RunOptions, initiatedBy string) (consol.ConsolidationRun, error)
	CancelRun(ctx context.Context, runID string) (consol.ConsolidationRun, error)
	GetRun(ctx context.Context, runID string) (consol.ConsolidationRun, error)
	ListRuns(ctx context.Context, groupID string) ([]consol.ConsolidationRun, error)
}

// Handler serves consolidation endpoints.
type Handler struct {
	orch     Orchestrator
	tbCache  *cache.TrialBalanceCache
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler constructs the consolidation HTTP handler.
func NewHandler(orch Orchestrator, tbCache *cache.TrialBalanceCache, logger *slog.Logger) *Handler {
	return &Handler{
		orch:     orch,
		tbCache:  tbCache,
		validate: validator.New(),
		logger:   logger,
	}
}

// MountRoutes attaches consolidation routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/consolidation", func(r chi.Router) {
		r.Post("/runs", h.startRun)
		r.Get("/runs/{runID}", h.getRun)
		r.Post("/runs/{runID}/cancel", h.cancelRun)
		r.Get("/runs/{runID}/trial-balance", h.getTrialBalance)
		r.Get("/groups/{groupID}/runs", h.listRuns)
	})
}

type startRunRequest struct {
	GroupID                  string `json:"group_id" validate:"required"`
	Year                     int    `json:"year" validate:"required,gte=1900,lte=9999"`
	Period                   int    `json:"period" validate:"required,gte=1,lte=13"`
	SkipValidation           bool   `json:"skip_validation"`
	ContinueOnWarnings       bool   `json:"continue_on_warnings"`
	IncludeEquityInvestments bool   `json:"include_equity_method_investments"`
	ForceRegeneration        bool   `json:"force_regeneration"`
}

func (h *Handler) startRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}

	opts := consol.RunOptions{
		SkipValidation:           req.SkipValidation,
		ContinueOnWarnings:       req.ContinueOnWarnings,
		IncludeEquityInvestments: req.IncludeEquityInvestments,
		ForceRegeneration:        req.ForceRegeneration,
	}
	period := consol.Period{Year: req.Year, Period: req.Period}
	run, err := h.orch.StartRun(r.Context(), req.GroupID, period, opts, initiator(r))
	if err != nil {
		h.logger.Warn("start run refused",
			slog.String("group_id", req.GroupID),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, run)
}

func (h *Handler) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.orch.GetRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, run)
}

func (h *Handler) cancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.orch.CancelRun(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, run)
}

func (h *Handler) getTrialBalance(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if h.tbCache != nil {
		if tb, err := h.tbCache.Get(r.Context(), runID); err == nil {
			httpx.JSON(w, http.StatusOK, tb)
			return
		} else if !errors.Is(err, cache.ErrMiss) {
			h.logger.Warn("cache read", slog.Any("error", err))
		}
	}

	run, err := h.orch.GetRun(r.Context(), runID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if run.TrialBalance == nil {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "run has no generated trial balance")
		return
	}
	if h.tbCache != nil {
		if err := h.tbCache.Put(r.Context(), run.TrialBalance); err != nil {
			h.logger.Warn("cache write", slog.Any("error", err))
		}
	}
	httpx.JSON(w, http.StatusOK, run.TrialBalance)
}

func (h *Handler) listRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.orch.ListRuns(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func initiator(r *http.Request) string {
	if v := r.Header.Get("X-Initiated-By"); v != "" {
		return v
	}
	return "api"
}
