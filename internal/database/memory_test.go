package database

import (
	"context"
	"errors"
	"io/fs"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, m *Memory, formID string, instanceIDs ...string) {
	t.Helper()
	for _, id := range instanceIDs {
		_, err := m.CreateSubmission(context.Background(), CreateSubmissionParams{FormID: formID, InstanceID: id, XML: "<data/>"})
		require.NoError(t, err)
	}
}

func instanceIDs(t *testing.T, m *Memory, arg StreamSubmissionsParams) []string {
	t.Helper()
	var ids []string
	err := m.StreamSubmissions(context.Background(), arg, func(s Submission) error {
		ids = append(ids, s.InstanceID)
		return nil
	})
	require.NoError(t, err)
	return ids
}

func TestMemory_Forms(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	stamp := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return stamp }

	f, err := m.CreateForm(ctx, CreateFormParams{UID: "a", XML: "<x/>"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), f.ID)
	assert.True(t, f.CreatedAt.Valid)
	assert.Equal(t, stamp, f.CreatedAt.Time)

	_, err = m.CreateForm(ctx, CreateFormParams{UID: "b"})
	require.NoError(t, err)

	_, err = m.CreateForm(ctx, CreateFormParams{UID: "a"})
	var pgErr *pgconn.PgError
	require.True(t, errors.As(err, &pgErr))
	assert.Equal(t, "23505", pgErr.Code)

	got, err := m.GetFormByUID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "<x/>", got.XML)

	_, err = m.GetFormByUID(ctx, "missing")
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	list, err := m.ListForms(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].UID, "newest first")
}

func TestMemory_Submissions(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	seed(t, m, "f", "1", "2")
	seed(t, m, "g", "3")

	_, err := m.CreateSubmission(ctx, CreateSubmissionParams{FormID: "g", InstanceID: "1"})
	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	assert.Equal(t, "submissions_instance_id_unique", pgErr.ConstraintName)

	s, err := m.GetSubmission(ctx, GetSubmissionParams{FormID: "f", InstanceID: "2"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), s.ID)

	_, err = m.GetSubmission(ctx, GetSubmissionParams{FormID: "g", InstanceID: "2"})
	assert.ErrorIs(t, err, pgx.ErrNoRows)

	n, err := m.CountSubmissions(ctx, "f")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestMemory_StreamSubmissions(t *testing.T) {
	m := NewMemory()
	seed(t, m, "f", "1", "2", "3", "4")
	seed(t, m, "g", "5")

	tests := []struct {
		name string
		arg  StreamSubmissionsParams
		want []string
	}{
		{"all newest first", StreamSubmissionsParams{FormID: "f"}, []string{"4", "3", "2", "1"}},
		{"offset", StreamSubmissionsParams{FormID: "f", Offset: 1}, []string{"3", "2", "1"}},
		{"limit", StreamSubmissionsParams{FormID: "f", Limit: pgtype.Int8{Int64: 2, Valid: true}}, []string{"4", "3"}},
		{"offset and limit", StreamSubmissionsParams{FormID: "f", Offset: 1, Limit: pgtype.Int8{Int64: 2, Valid: true}}, []string{"3", "2"}},
		{"zero limit", StreamSubmissionsParams{FormID: "f", Limit: pgtype.Int8{Int64: 0, Valid: true}}, nil},
		{"offset past end", StreamSubmissionsParams{FormID: "f", Offset: 10}, nil},
		{"unknown form", StreamSubmissionsParams{FormID: "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, instanceIDs(t, m, tt.arg))
		})
	}
}

func TestMemory_StreamStopsOnError(t *testing.T) {
	m := NewMemory()
	seed(t, m, "f", "1", "2", "3")
	stop := errors.New("stop")

	var seen int
	err := m.StreamSubmissions(context.Background(), StreamSubmissionsParams{FormID: "f"}, func(Submission) error {
		seen++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, seen)
}

func TestMemory_StreamHonorsContext(t *testing.T) {
	m := NewMemory()
	seed(t, m, "f", "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := m.StreamSubmissions(ctx, StreamSubmissionsParams{FormID: "f"}, func(Submission) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMigrationsEmbedded(t *testing.T) {
	names, err := fs.Glob(migrations, "migrations/*.sql")
	require.NoError(t, err)
	assert.Equal(t, []string{"migrations/0001_forms.sql", "migrations/0002_submissions.sql"}, names)
}
