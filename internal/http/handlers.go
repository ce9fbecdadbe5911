package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/services"
)

// maxDocumentBytes bounds PUT bodies.
const maxDocumentBytes = 4 << 20

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	items, err := s.months.MonthsList(r.Context())
	if err != nil {
		s.fail(w, r, applog.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRefFromPath(w, r)
	if !ok {
		return
	}

	view, err := s.months.MonthsGet(r.Context(), ref)
	if err != nil {
		s.fail(w, r, applog.OpGet, err)
		return
	}
	if view == nil {
		writeJSON(w, http.StatusNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleUpsertMonth(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRefFromPath(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		writeError(w, http.StatusBadRequest, "cannot read body")
		return
	}

	var doc core.Document
	if len(body) > 0 && string(body) != "null" {
		if doc, err = core.DecodeDocument(body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid month document: "+err.Error())
			return
		}
	}

	res, err := s.months.MonthsUpsert(r.Context(), services.UpsertRequest{Year: ref.Year, Month: ref.Month, Data: doc})
	if err != nil {
		s.fail(w, r, applog.OpUpsert, err)
		return
	}
	applog.LogMonthWrite(r.Context(), applog.OpUpsert, ref.Year, ref.Month, res.Key, res.ID)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleCopyFromPrevious(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRefFromPath(w, r)
	if !ok {
		return
	}

	res, err := s.months.MonthsCopyFromPrevious(r.Context(), ref)
	if err != nil {
		s.fail(w, r, applog.OpCopy, err)
		return
	}

	status := http.StatusOK
	if res.Created() {
		status = http.StatusCreated
		applog.LogMonthWrite(r.Context(), applog.OpCopy, ref.Year, ref.Month, res.Key, res.ID)
	}
	writeJSON(w, status, res)
}

func (s *Server) handleDeleteMonth(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRefFromPath(w, r)
	if !ok {
		return
	}

	res, err := s.months.MonthsDelete(r.Context(), ref)
	if err != nil {
		s.fail(w, r, applog.OpDelete, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	ref, ok := monthRefFromPath(w, r)
	if !ok {
		return
	}

	b, err := s.months.MonthsSummary(r.Context(), ref)
	if err != nil {
		s.fail(w, r, applog.OpSummary, err)
		return
	}
	if b == nil {
		writeJSON(w, http.StatusNotFound, nil)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// fail maps service errors to status codes and logs server-side failures.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	status, msg := statusForError(err)
	if status >= http.StatusInternalServerError {
		fields := applog.NewFields()
		fields[applog.FieldPath] = r.URL.Path
		applog.LogError(r.Context(), "Month operation failed", err, applog.ComponentMonths, op, fields)
	}
	writeError(w, status, msg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
