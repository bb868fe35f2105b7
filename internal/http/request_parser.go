package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"escola/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads a single JSON object into dst. An empty body leaves dst
// untouched when allowEmpty is set.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) && allowEmpty {
			return nil
		}
		return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
	}
	if dec.More() {
		return fmt.Errorf("decode body: trailing data: %w", errBadRequest)
	}
	return nil
}

// queryDate parses a required YYYY-MM-DD query parameter.
func queryDate(r *http.Request, name string) (core.Date, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return core.Date{}, fmt.Errorf("missing %q parameter: %w", name, errBadRequest)
	}
	d, err := core.ParseISODate(v)
	if err != nil {
		return core.Date{}, fmt.Errorf("%s: %w", name, err)
	}
	return d, nil
}

// queryInt parses a required integer query parameter. A leading sign is
// allowed.
func queryInt(r *http.Request, name string) (int, error) {
	v := strings.TrimSpace(r.URL.Query().Get(name))
	if v == "" {
		return 0, fmt.Errorf("missing %q parameter: %w", name, errBadRequest)
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not an integer: %w", name, v, errBadRequest)
	}
	return n, nil
}

func pathID(r *http.Request) (core.InstallmentID, error) {
	return core.ParseInstallmentID(chi.URLParam(r, "id"))
}

func pathRecord(r *http.Request) (string, error) {
	rec := strings.TrimSpace(chi.URLParam(r, "record"))
	if rec == "" {
		return "", core.ErrEmptyRecord
	}
	return rec, nil
}
