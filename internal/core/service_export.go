package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/JonMunkholm/formbridge/internal/database"
	"github.com/JonMunkholm/formbridge/internal/export"
	"github.com/JonMunkholm/formbridge/internal/logging"
	"github.com/JonMunkholm/formbridge/internal/odata"
	"github.com/JonMunkholm/formbridge/internal/xform"
	"github.com/jackc/pgx/v5/pgtype"
)

// Format selects the exporter.
type Format int

const (
	FormatCSV Format = iota
	FormatZip
	FormatJSON
)

func (f Format) String() string {
	switch f {
	case FormatZip:
		return "zip"
	case FormatJSON:
		return "json"
	default:
		return "csv"
	}
}

// Page restricts a submission cursor. A nil Top reads to the end.
type Page struct {
	Top  *int64
	Skip int64
}

func (p Page) params(formID string) database.StreamSubmissionsParams {
	params := database.StreamSubmissionsParams{FormID: formID, Offset: p.Skip}
	if p.Top != nil {
		params.Limit = pgtype.Int8{Int64: *p.Top, Valid: true}
	}
	return params
}

// ExportRequest describes one export run.
type ExportRequest struct {
	FormID string
	Format Format
	Page   Page

	// Count adds @odata.count to JSON output.
	Count bool

	// ContextURL is the @odata.context of JSON output.
	ContextURL string
}

// ExportResult summarizes a finished or failed export.
type ExportResult struct {
	Rows     int
	Bytes    int64
	Duration time.Duration

	// Started reports whether any output reached the writer, after which
	// an error can no longer be sent as a normal response.
	Started bool
}

// countingWriter records how much output reached the sink.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// Export streams every selected submission of a form to w in the requested
// format. On failure the exporter is aborted, so output that already
// started is left visibly truncated.
func (s *Service) Export(ctx context.Context, req ExportRequest, w io.Writer) (ExportResult, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return ExportResult{}, err
	}
	defer s.limiter.Release()

	if s.exportTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.exportTimeout)
		defer cancel()
	}

	start := time.Now()
	logger := logging.ForExport(ctx, req.FormID, req.Format.String())
	sink := &countingWriter{w: w}
	result := func(rows int) ExportResult {
		return ExportResult{Rows: rows, Bytes: sink.n, Duration: time.Since(start), Started: sink.n > 0}
	}

	schema, err := s.FormSchema(ctx, req.FormID)
	if err != nil {
		return result(0), err
	}

	exp, err := s.newExporter(ctx, req, schema, sink)
	if err != nil {
		return result(0), err
	}

	logger.Debug("export started")
	rows := 0
	err = s.store.StreamSubmissions(ctx, req.Page.params(req.FormID), func(sub database.Submission) error {
		if err := exp.WriteRow(toRow(sub)); err != nil {
			return err
		}
		rows++
		return nil
	})
	if err != nil {
		exp.Abort()
		logger.Warn("export aborted", "rows", rows, "error", err)
		return result(rows), fmt.Errorf("export %s: %w", req.FormID, err)
	}
	if err := exp.Close(); err != nil {
		return result(rows), fmt.Errorf("finish export %s: %w", req.FormID, err)
	}

	res := result(rows)
	logger.Info("export completed",
		"rows", res.Rows,
		"bytes", res.Bytes,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

func (s *Service) newExporter(ctx context.Context, req ExportRequest, schema *xform.Schema, w io.Writer) (export.Exporter, error) {
	switch req.Format {
	case FormatZip:
		return export.NewMultiTable(w, req.FormID, export.Definition(schema), export.WithSpoolDir(s.spoolDir))
	case FormatJSON:
		opts := []export.ODataJSONOption{export.WithLogger(logging.WithFields(ctx, "form_id", req.FormID))}
		if req.Count {
			n, err := s.store.CountSubmissions(ctx, req.FormID)
			if err != nil {
				return nil, fmt.Errorf("count submissions: %w", err)
			}
			opts = append(opts, export.WithCount(n))
		}
		return export.NewODataJSON(w, schema, req.ContextURL, opts...), nil
	default:
		return export.NewFlatCSV(w, export.Definition(schema))
	}
}

func toRow(sub database.Submission) xform.Row {
	return xform.Row{
		FormID:     sub.FormID,
		InstanceID: sub.InstanceID,
		XML:        []byte(sub.XML),
		CreatedAt:  sub.CreatedAt.Time,
	}
}

// Metadata renders the EDMX document of a stored form.
func (s *Service) Metadata(ctx context.Context, formID string) ([]byte, error) {
	schema, err := s.FormSchema(ctx, formID)
	if err != nil {
		return nil, err
	}
	return odata.Metadata(formID, schema)
}

// ServiceDocument returns the OData service document of a stored form.
func (s *Service) ServiceDocument(ctx context.Context, formID, metadataURL string) (odata.ServiceDocument, error) {
	if _, err := s.GetForm(ctx, formID); err != nil {
		return odata.ServiceDocument{}, err
	}
	return odata.NewServiceDocument(metadataURL), nil
}
