package web

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/formbridge/internal/core"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, formID+".csv"))
	s.stream(w, r, core.ExportRequest{FormID: formID, Format: core.FormatCSV})
}

func (s *Server) handleExportZip(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, formID+".csv.zip"))
	s.stream(w, r, core.ExportRequest{FormID: formID, Format: core.FormatZip})
}

// stream runs an export straight into the response. Headers are set by the
// caller but nothing is sent until the exporter writes, so an error raised
// before the first byte still becomes a normal error response.
func (s *Server) stream(w http.ResponseWriter, r *http.Request, req core.ExportRequest) {
	res, err := s.service.Export(r.Context(), req, w)
	if err == nil {
		return
	}
	if r.Context().Err() != nil {
		// Client went away; nothing left to tell it.
		return
	}
	if res.Started {
		abortStream(r, err, res)
	}
	if errors.Is(err, core.ErrTooManyExports) {
		w.Header().Set("Retry-After", "10")
	}
	respondError(w, r, err, exportStatus(err))
}
