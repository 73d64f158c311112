// internal/api/handler/api/journal.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/newthinker/papertrader/internal/api/response"
	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/journal"
	"github.com/newthinker/papertrader/internal/position"
)

// JournalStore defines the interface needed from journal.Journal.
type JournalStore interface {
	Add(ctx context.Context, in journal.NewRecord) (*journal.Record, error)
	Update(ctx context.Context, id string, p journal.Patch) (*journal.Record, error)
	Delete(ctx context.Context, id string) (*journal.Record, error)
	List(ctx context.Context, symbol string, limit int) ([]journal.Record, error)
	Position(ctx context.Context, symbol string) (*journal.Position, error)
	Style(ctx context.Context, symbol string) (*journal.Style, error)
	ExportMarkdown(ctx context.Context, symbol string) (string, error)
}

// JournalHandler handles trade journal API requests.
type JournalHandler struct {
	journal JournalStore
}

// NewJournalHandler creates a new journal handler.
func NewJournalHandler(j JournalStore) *JournalHandler {
	return &JournalHandler{journal: j}
}

// RecordRequest is the request body for adding a record. Quantities are
// in lots.
type RecordRequest struct {
	Symbol    string              `json:"symbol"`
	Name      string              `json:"name,omitempty"`
	Type      journal.TradeType   `json:"type"`
	Price     float64             `json:"price"`
	Lots      int64               `json:"lots"`
	RoundTrip *position.RoundTrip `json:"round_trip,omitempty"`
	Reason    string              `json:"reason"`
	Mood      journal.Mood        `json:"mood,omitempty"`
	Level     int                 `json:"level,omitempty"`
	TradeTime *time.Time          `json:"trade_time,omitempty"`
}

// PatchRequest is the request body for updating a record; absent fields
// are kept.
type PatchRequest struct {
	Name      *string             `json:"name,omitempty"`
	Type      *journal.TradeType  `json:"type,omitempty"`
	Price     *float64            `json:"price,omitempty"`
	Lots      *int64              `json:"lots,omitempty"`
	RoundTrip *position.RoundTrip `json:"round_trip,omitempty"`
	Reason    *string             `json:"reason,omitempty"`
	Mood      *journal.Mood       `json:"mood,omitempty"`
	Level     *int                `json:"level,omitempty"`
	TradeTime *time.Time          `json:"trade_time,omitempty"`
}

// Create adds a record.
func (h *JournalHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req RecordRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}

	in := journal.NewRecord{
		Symbol:    req.Symbol,
		Name:      req.Name,
		Type:      req.Type,
		Price:     req.Price,
		Lots:      req.Lots,
		RoundTrip: req.RoundTrip,
		Reason:    req.Reason,
		Mood:      req.Mood,
		Level:     req.Level,
	}
	if req.TradeTime != nil {
		in.TradeTime = *req.TradeTime
	}

	rec, err := h.journal.Add(r.Context(), in)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, rec)
}

// List returns records, newest trade first, optionally for one symbol.
func (h *JournalHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		response.Fail(w, err)
		return
	}
	records, err := h.journal.List(r.Context(), r.URL.Query().Get("symbol"), limit)
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.List(w, records, len(records))
}

// Update patches a record.
func (h *JournalHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req PatchRequest
	if err := decode(w, r, &req); err != nil {
		response.Fail(w, err)
		return
	}

	rec, err := h.journal.Update(r.Context(), r.PathValue("id"), journal.Patch{
		Name:      req.Name,
		Type:      req.Type,
		Price:     req.Price,
		Lots:      req.Lots,
		RoundTrip: req.RoundTrip,
		Reason:    req.Reason,
		Mood:      req.Mood,
		Level:     req.Level,
		TradeTime: req.TradeTime,
	})
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// Delete removes a record.
func (h *JournalHandler) Delete(w http.ResponseWriter, r *http.Request) {
	rec, err := h.journal.Delete(r.Context(), r.PathValue("id"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, rec)
}

// Position returns the holding derived from a symbol's records.
func (h *JournalHandler) Position(w http.ResponseWriter, r *http.Request) {
	pos, err := h.journal.Position(r.Context(), r.PathValue("symbol"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, pos)
}

// Style summarises trading habits, optionally for one symbol.
func (h *JournalHandler) Style(w http.ResponseWriter, r *http.Request) {
	style, err := h.journal.Style(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	response.JSON(w, http.StatusOK, style)
}

// Export returns the records as a markdown document.
func (h *JournalHandler) Export(w http.ResponseWriter, r *http.Request) {
	md, err := h.journal.ExportMarkdown(r.Context(), r.URL.Query().Get("symbol"))
	if err != nil {
		response.Fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(md))
}

// RequireJournal guards handlers when no journal is configured.
func RequireJournal(j JournalStore, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if j == nil {
			response.Fail(w, core.Errorf(core.ErrConfigMissing, "journal disabled"))
			return
		}
		next(w, r)
	}
}
