// Package session persists simulation sessions.
package session

import (
	"context"
	"sort"

	"github.com/newthinker/papertrader/internal/core"
	"github.com/newthinker/papertrader/internal/simulation"
)

// DefaultListLimit caps List when the filter sets no limit.
const DefaultListLimit = 50

// Filter selects sessions for List
type Filter struct {
	// Instrument matches codes suffix-tolerantly: "600519" finds "sh600519".
	Instrument string
	Status     simulation.Status
	Limit      int
}

// Store persists one record per session keyed by id, trades embedded.
//
// Get returns an error wrapping storage.ErrNotFound for an unknown id.
// Stores hand out copies: mutating a returned session never changes
// the stored one.
type Store interface {
	Save(ctx context.Context, s *simulation.Session) error
	Get(ctx context.Context, id string) (*simulation.Session, error)
	List(ctx context.Context, f Filter) ([]*simulation.Session, error)
	Delete(ctx context.Context, id string) error
}

// Match reports whether s passes the filter.
func (f Filter) Match(s *simulation.Session) bool {
	if f.Status != "" && s.Status != f.Status {
		return false
	}
	if f.Instrument != "" && !core.SameInstrument(s.InstrumentCode, f.Instrument) {
		return false
	}
	return true
}

// EffectiveLimit returns the limit List applies.
func (f Filter) EffectiveLimit() int {
	if f.Limit <= 0 {
		return DefaultListLimit
	}
	return f.Limit
}

// Select filters sessions, orders them by last update (newest first)
// and applies the limit.
func Select(all []*simulation.Session, f Filter) []*simulation.Session {
	out := make([]*simulation.Session, 0, len(all))
	for _, s := range all {
		if f.Match(s) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if limit := f.EffectiveLimit(); len(out) > limit {
		out = out[:limit]
	}
	return out
}
