package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/newthinker/papertrader/internal/core"
)

const maxBodyBytes = 1 << 20

// decode reads a JSON request body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return core.WrapError(core.ErrInvalidParameter, err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, key string) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, core.Errorf(core.ErrInvalidParameter, "%s must be a non-negative integer, got %q", key, raw)
	}
	return n, nil
}
