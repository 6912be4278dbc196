package web

import (
	"net/http"

	"github.com/JonMunkholm/formbridge/internal/core"
	"github.com/JonMunkholm/formbridge/internal/odata"
	"github.com/go-chi/chi/v5"
)

// createdResponse is the body of a successful POST.
type createdResponse struct {
	ID  int64  `json:"id"`
	UID string `json:"uid"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"status":  "ok",
		"exports": s.service.ExportLimiterStatus(),
	})
}

// readBody reads a posted XML document within the configured size limit.
func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	limit := s.service.MaxDocumentSize()
	body := r.Body
	if limit > 0 {
		// One byte of slack so ReadDocument, not MaxBytesReader, reports
		// the overflow with its own error.
		body = http.MaxBytesReader(w, r.Body, limit+1)
	}
	defer body.Close()
	return core.ReadDocument(body, limit)
}

func (s *Server) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readBody(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	form, err := s.service.SaveForm(WithRequestMetadata(r.Context(), r), doc)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, createdResponse{ID: form.ID, UID: form.UID})
}

func (s *Server) handleCreateSubmission(w http.ResponseWriter, r *http.Request) {
	doc, err := s.readBody(w, r)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	sub, err := s.service.SaveSubmission(WithRequestMetadata(r.Context(), r), doc)
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, createdResponse{ID: sub.ID, UID: sub.InstanceID})
}

func (s *Server) handleListForms(w http.ResponseWriter, r *http.Request) {
	forms, err := s.service.ListForms(r.Context())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, forms)
}

func (s *Server) handleGetForm(w http.ResponseWriter, r *http.Request) {
	form, err := s.service.GetForm(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, form)
}

// handleListSubmissions returns a page of submissions, newest first. Paging
// uses the same $top and $skip options as the OData feed.
func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	q, err := odata.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	subs, err := s.service.ListSubmissions(r.Context(), chi.URLParam(r, "formId"), core.Page{Top: q.Top, Skip: q.Skip})
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, subs)
}

func (s *Server) handleGetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.service.GetSubmission(r.Context(), chi.URLParam(r, "formId"), chi.URLParam(r, "instanceId"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	writeJSON(w, r, http.StatusOK, sub)
}
