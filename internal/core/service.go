package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/JonMunkholm/formbridge/internal/config"
	"github.com/JonMunkholm/formbridge/internal/database"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrFormNotFound       = errors.New("form not found")
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrDuplicate          = errors.New("duplicate record")
)

// pgUniqueViolation is the SQLSTATE for a unique constraint violation.
const pgUniqueViolation = "23505"

// Store is the persistence the service needs. *database.Queries satisfies it.
type Store interface {
	CreateForm(ctx context.Context, arg database.CreateFormParams) (database.Form, error)
	GetFormByUID(ctx context.Context, uid string) (database.Form, error)
	ListForms(ctx context.Context) ([]database.Form, error)
	CreateSubmission(ctx context.Context, arg database.CreateSubmissionParams) (database.Submission, error)
	GetSubmission(ctx context.Context, arg database.GetSubmissionParams) (database.Submission, error)
	CountSubmissions(ctx context.Context, formID string) (int64, error)
	StreamSubmissions(ctx context.Context, arg database.StreamSubmissionsParams, fn func(database.Submission) error) error
}

// Service provides the form ingest and export operations.
type Service struct {
	store         Store
	limiter       *ExportLimiter
	exportTimeout time.Duration
	spoolDir      string
	maxDocument   int64
}

// NewService creates a Service over store using the export and submission
// settings from cfg.
func NewService(store Store, cfg *config.Config) *Service {
	return &Service{
		store:         store,
		limiter:       NewExportLimiter(cfg.Export.MaxConcurrent, cfg.Export.MaxWaitTime),
		exportTimeout: cfg.Export.Timeout,
		spoolDir:      cfg.Export.SpoolDir,
		maxDocument:   int64(cfg.Submission.MaxBodySize.Bytes()),
	}
}

// MaxDocumentSize is the largest form or submission document accepted.
func (s *Service) MaxDocumentSize() int64 {
	return s.maxDocument
}

// ExportLimiterStatus returns the export limiter's current occupancy.
func (s *Service) ExportLimiterStatus() ExportLimiterStatus {
	return s.limiter.Status()
}

// WaitForExports blocks until running exports finish or ctx is done.
func (s *Service) WaitForExports(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// storeError translates driver errors into the service's sentinels.
func storeError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
