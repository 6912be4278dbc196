package web

import (
	"fmt"
	"net/http"

	"github.com/JonMunkholm/formbridge/internal/core"
	"github.com/JonMunkholm/formbridge/internal/odata"
	"github.com/go-chi/chi/v5"
)

const odataJSON = "application/json; odata.metadata=minimal"

func (s *Server) metadataURL(r *http.Request, formID string) string {
	return s.baseURL(r) + "/forms/" + formID + ".svc/$metadata"
}

func (s *Server) handleServiceDocument(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	doc, err := s.service.ServiceDocument(r.Context(), formID, s.metadataURL(r, formID))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	body, err := json.Marshal(doc)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", odataJSON)
	w.Write(body)
}

func (s *Server) handleMetadata(w http.ResponseWriter, r *http.Request) {
	edmx, err := s.service.Metadata(r.Context(), chi.URLParam(r, "formId"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.Write(edmx)
}

// handleEntitySet streams the Records collection. Only Records is
// published; repeats are nested inside each record.
func (s *Server) handleEntitySet(w http.ResponseWriter, r *http.Request) {
	formID := chi.URLParam(r, "formId")
	table := chi.URLParam(r, "subtable")
	if table != odata.RecordsSet {
		respondError(w, r, fmt.Errorf("%w: %s", errUnknownTable, table), http.StatusNotFound)
		return
	}

	q, err := odata.ParseQuery(r.URL.Query())
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	w.Header().Set("Content-Type", odataJSON)
	s.stream(w, r, core.ExportRequest{
		FormID:     formID,
		Format:     core.FormatJSON,
		Page:       core.Page{Top: q.Top, Skip: q.Skip},
		Count:      q.Count,
		ContextURL: odata.ContextURL(s.baseURL(r), formID, table),
	})
}
