package http

import (
	"net/http"
	"strings"

	"escola/internal/core"
)

// Stateless calculator endpoints over the date helpers.

func (s *Server) handleAddMonths(w http.ResponseWriter, r *http.Request) {
	d, err := queryDate(r, "date")
	if err != nil {
		s.fail(w, r, "add_months", err)
		return
	}
	n, err := queryInt(r, "months")
	if err != nil {
		s.fail(w, r, "add_months", err)
		return
	}
	result, err := core.AddMonthsChecked(d, n)
	if err != nil {
		s.fail(w, r, "add_months", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":   d,
		"months": n,
		"result": result,
	})
}

func (s *Server) handleMonthsBetween(w http.ResponseWriter, r *http.Request) {
	from, err := queryDate(r, "from")
	if err != nil {
		s.fail(w, r, "months_between", err)
		return
	}
	to, err := queryDate(r, "to")
	if err != nil {
		s.fail(w, r, "months_between", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"from":   from,
		"to":     to,
		"months": core.MonthsBetween(from, to),
	})
}

// handleValidateDate never fails: a bad date is a "valid": false answer.
func (s *Server) handleValidateDate(w http.ResponseWriter, r *http.Request) {
	v := strings.TrimSpace(r.URL.Query().Get("date"))
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  v,
		"valid": core.IsValidDate(v),
	})
}

func (s *Server) handleNextDue(w http.ResponseWriter, r *http.Request) {
	anchor, err := queryDate(r, "anchor")
	if err != nil {
		s.fail(w, r, "next_due", err)
		return
	}
	lastPaid, err := queryDate(r, "last_paid")
	if err != nil {
		s.fail(w, r, "next_due", err)
		return
	}
	next, err := core.NextDueDateChecked(anchor, lastPaid)
	if err != nil {
		s.fail(w, r, "next_due", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"anchor":    anchor,
		"last_paid": lastPaid,
		"next_due":  next,
	})
}
