package http

import (
	"net/http"
	"time"

	"escola/internal/core"
	"escola/internal/log"
	"escola/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) handleRecordSchedule(w http.ResponseWriter, r *http.Request) {
	record, err := pathRecord(r)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	view, err := s.svc.RecordSchedule(r.Context(), record)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	if view.Rows == nil {
		view.Rows = []services.ScheduleRow{}
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePlanSchedule(w http.ResponseWriter, r *http.Request) {
	record, err := pathRecord(r)
	if err != nil {
		s.fail(w, r, log.OpPlan, err)
		return
	}
	var req services.PlanRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		s.fail(w, r, log.OpPlan, err)
		return
	}
	req.RecordID = record

	created, err := s.svc.PlanSchedule(r.Context(), req)
	if err != nil {
		s.fail(w, r, log.OpPlan, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"record_id":    record,
		"installments": created,
	})
}

func (s *Server) handleCreateInstallment(w http.ResponseWriter, r *http.Request) {
	var inst core.Installment
	if err := decodeJSON(w, r, &inst, false); err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	created, err := s.svc.Create(r.Context(), inst)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Installment created",
		log.NewFields().
			WithOperation(log.OpCreate).
			WithInstallment(int64(created.ID), created.RecordID, string(created.ItemType), created.DueDate.String()).
			ToSlice()...)

	w.Header().Set("Location", "/api/installments/"+created.ID.String())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleGetInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, "get", err)
		return
	}
	inst, err := s.svc.Get(r.Context(), id)
	if err != nil {
		s.fail(w, r, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, inst)
}

type payRequest struct {
	PaidOn core.Date `json:"paid_on"`
}

func (s *Server) handlePayInstallment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		s.fail(w, r, log.OpPay, err)
		return
	}
	var req payRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		s.fail(w, r, log.OpPay, err)
		return
	}

	paid, err := s.svc.Pay(r.Context(), id, req.PaidOn)
	if err != nil {
		s.fail(w, r, log.OpPay, err)
		return
	}
	writeJSON(w, http.StatusOK, paid)
}
