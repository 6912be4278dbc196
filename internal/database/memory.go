package database

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// Memory is an in-process stand-in for Queries with the same method set and
// the same error values: pgx.ErrNoRows for a missing row and a
// *pgconn.PgError with SQLSTATE 23505 for a unique violation. The offline
// exporter loads files into it; tests use it in place of Postgres.
type Memory struct {
	mu          sync.RWMutex
	now         func() time.Time
	nextForm    int64
	nextSub     int64
	forms       []Form
	submissions []Submission
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{now: time.Now}
}

func (m *Memory) stamp() pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: m.now(), Valid: true}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{
		Code:           "23505",
		Message:        "duplicate key value violates unique constraint \"" + constraint + "\"",
		ConstraintName: constraint,
	}
}

func (m *Memory) CreateForm(_ context.Context, arg CreateFormParams) (Form, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, f := range m.forms {
		if f.UID == arg.UID {
			return Form{}, uniqueViolation("forms_uid_unique")
		}
	}
	m.nextForm++
	ts := m.stamp()
	f := Form{ID: m.nextForm, CreatedAt: ts, UpdatedAt: ts, UID: arg.UID, XML: arg.XML}
	m.forms = append(m.forms, f)
	return f, nil
}

func (m *Memory) GetFormByUID(_ context.Context, uid string) (Form, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, f := range m.forms {
		if f.UID == uid {
			return f, nil
		}
	}
	return Form{}, pgx.ErrNoRows
}

func (m *Memory) ListForms(_ context.Context) ([]Form, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]Form, len(m.forms))
	for i, f := range m.forms {
		items[len(m.forms)-1-i] = f
	}
	return items, nil
}

func (m *Memory) CreateSubmission(_ context.Context, arg CreateSubmissionParams) (Submission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, s := range m.submissions {
		if s.InstanceID == arg.InstanceID {
			return Submission{}, uniqueViolation("submissions_instance_id_unique")
		}
	}
	m.nextSub++
	ts := m.stamp()
	s := Submission{
		ID:         m.nextSub,
		CreatedAt:  ts,
		UpdatedAt:  ts,
		FormID:     arg.FormID,
		InstanceID: arg.InstanceID,
		XML:        arg.XML,
	}
	m.submissions = append(m.submissions, s)
	return s, nil
}

func (m *Memory) GetSubmission(_ context.Context, arg GetSubmissionParams) (Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, s := range m.submissions {
		if s.FormID == arg.FormID && s.InstanceID == arg.InstanceID {
			return s, nil
		}
	}
	return Submission{}, pgx.ErrNoRows
}

func (m *Memory) CountSubmissions(_ context.Context, formID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, s := range m.submissions {
		if s.FormID == formID {
			n++
		}
	}
	return n, nil
}

// StreamSubmissions matches the Postgres query: newest first, then offset,
// then limit. The matching rows are snapshotted before fn runs so fn may
// call back into the store.
func (m *Memory) StreamSubmissions(ctx context.Context, arg StreamSubmissionsParams, fn func(Submission) error) error {
	m.mu.RLock()
	var matched []Submission
	for _, s := range m.submissions {
		if s.FormID == arg.FormID {
			matched = append(matched, s)
		}
	}
	m.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	if arg.Offset >= int64(len(matched)) {
		matched = nil
	} else {
		matched = matched[arg.Offset:]
	}
	if arg.Limit.Valid && arg.Limit.Int64 < int64(len(matched)) {
		matched = matched[:arg.Limit.Int64]
	}

	for _, s := range matched {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return nil
}
