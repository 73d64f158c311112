// internal/api/handler/api/simulations.go
package api

import (
	"context"
	"math"
	"net/http"
	"strings"

	"github.com/newthinker/papertrader/internal/api/response"
	"github.com/newthinker/papertrader/internal/app"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/simulation"
	"github.com/newthinker/papertrader/internal/storage/session"
)

// SimulationApp defines the interface needed from app.App.
type SimulationApp interface {
	CreateSession(ctx context.Context, in app.CreateInput) (*simulation.Session, error)
	ListSessions(ctx context.Context, f session.Filter) ([]*simulation.Session, error)
	GetSession(ctx context.Context, id string) (*simulation.Session, error)
	DeleteSession(ctx context.Context, id string) error
	Bars(ctx context.Context, id string) (*app.BarsView, error)
	ExecuteTrade(ctx context.Context, id string, in app.TradeInput) (*app.TradeOutcome, error)
	PauseSession(ctx context.Context, id string) (*simulation.Session, error)
	ResumeSession(ctx context.Context, id string) (*simulation.Session, error)
	AbandonSession(ctx context.Context, id string) (*simulation.Session, error)
	CompleteSession(ctx context.Context, id string) (*simulation.Session, error)
	Result(ctx context.Context, id string) (*app.ResultView, error)
	Review(ctx context.Context, id string) (*app.ReviewView, error)
}

// SimulationsHandler handles simulation session API requests.
type SimulationsHandler struct {
	app SimulationApp
}

// NewSimulationsHandler creates a new simulations handler.
func NewSimulationsHandler(app SimulationApp) *SimulationsHandler {
	return &SimulationsHandler{app: app}
}

// CreateRequest is the request body for starting a session.
type CreateRequest struct {
	InstrumentCode string  `json:"instrument_code"`
	InstrumentName string  `json:"instrument_name,omitempty"`
	TotalDays      int     `json:"total_days"`
	InitialCapital float64 `json:"initial_capital,omitempty"`
}

// TradeRequest is the request body for one day's decision.
type TradeRequest struct {
	Kind     simulation.TradeKind `json:"kind"`
	Price    float64              `json:"price"`
	Quantity int64                `json:"quantity"`
	Reason   string               `json:"reason"`
	Date     string               `json:"date,omitempty"`
}

func (req TradeRequest) validate() error {
	switch req.Kind {
	case simulation.TradeBuy, simulation.TradeSell:
		if req.Price <= 0 || math.IsNaN(req.Price) || math.IsInf(req.Price, 0) {
			return core.Errorf(core.ErrInvalidParameter, "price must be a positive number")
		}
		if req.Quantity <= 0 {
			return core.Errorf(core.ErrInvalidParameter, "quantity must be positive, got %d", req.Quantity)
		}
	case simulation.TradeSkip:
	case simulation.TradeAutoSell:
		return core.Errorf(core.ErrInvalidParameter, "auto_sell is reserved for settlement")
	default:
		return core.Errorf(core.ErrInvalidParameter, "unknown trade kind %q", req.Kind)
	}
	if req.Date != "" {
		if _, err := core.ParseDate(req.Date); err != nil {
			return core.Errorf(core.ErrInvalidParameter, "date must be YYYY-MM-DD, got %q", req.Date)
		}
	}
	return nil
}

// Create starts a session.
func (h *SimulationsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	if req.InstrumentCode == "" {
		response.Fail(w, core.Errorf(core.ErrInvalidParameter, "instrument_code required"))
		return
	}
	if req.InitialCapital < 0 || math.IsNaN(req.InitialCapital) || math.IsInf(req.InitialCapital, 0) {
		response.Fail(w, core.Errorf(core.ErrInvalidParameter, "initial_capital must be positive"))
		return
	}

	s, err := h.app.CreateSession(r.Context(), app.CreateInput{
		InstrumentCode: req.InstrumentCode,
		InstrumentName: req.InstrumentName,
		TotalDays:      req.TotalDays,
		InitialCapital: req.InitialCapital,
	})
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, s)
}

// List returns sessions matching the instrument, status and limit query
// parameters.
func (h *SimulationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.Fail(w, err)
		return
	}

	sessions, err := h.app.ListSessions(r.Context(), session.Filter{
		Instrument: q.Get("instrument"),
		Status:     simulation.Status(q.Get("status")),
		Limit:      limit,
	})
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.List(w, sessions, len(sessions))
}

// Get returns one session.
func (h *SimulationsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, s)
}

// Delete removes a session.
func (h *SimulationsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.app.DeleteSession(r.Context(), id); err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"deleted": true,
	})
}

// Bars returns the visible bars of the current simulated day.
func (h *SimulationsHandler) Bars(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Bars(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

// Trade executes one day's decision.
func (h *SimulationsHandler) Trade(w http.ResponseWriter, r *http.Request) {
	var req TradeRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}
	req.Kind = simulation.TradeKind(strings.ToLower(string(req.Kind)))
	if err := req.validate(); err != nil {
		response.Fail(w, err)
		return
	}

	out, err := h.app.ExecuteTrade(r.Context(), r.PathValue("id"), app.TradeInput{
		Kind:     req.Kind,
		Price:    req.Price,
		Quantity: req.Quantity,
		Reason:   req.Reason,
		Date:     req.Date,
	})
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, out)
}

// Pause suspends a running session.
func (h *SimulationsHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.app.PauseSession)
}

// Resume continues a paused session.
func (h *SimulationsHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.app.ResumeSession)
}

// Abandon ends a session without settlement.
func (h *SimulationsHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.app.AbandonSession)
}

// Complete settles a session whose days are exhausted.
func (h *SimulationsHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.app.CompleteSession)
}

func (h *SimulationsHandler) transition(w http.ResponseWriter, r *http.Request,
	op func(context.Context, string) (*simulation.Session, error)) {
	s, err := op(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, s)
}

// Result returns the analysis of a session.
func (h *SimulationsHandler) Result(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Result(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}

// Review grades a session with the configured LLM.
func (h *SimulationsHandler) Review(w http.ResponseWriter, r *http.Request) {
	view, err := h.app.Review(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, view)
}
