package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
)

const createSubmission = `
INSERT INTO submissions (form_id, instance_id, xml)
VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at, form_id, instance_id, xml
`

type CreateSubmissionParams struct {
	FormID     string
	InstanceID string
	XML        string
}

func (q *Queries) CreateSubmission(ctx context.Context, arg CreateSubmissionParams) (Submission, error) {
	row := q.db.QueryRow(ctx, createSubmission, arg.FormID, arg.InstanceID, arg.XML)
	var i Submission
	err := row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.FormID, &i.InstanceID, &i.XML)
	return i, err
}

const getSubmission = `
SELECT id, created_at, updated_at, form_id, instance_id, xml
FROM submissions
WHERE form_id = $1 AND instance_id = $2
`

type GetSubmissionParams struct {
	FormID     string
	InstanceID string
}

func (q *Queries) GetSubmission(ctx context.Context, arg GetSubmissionParams) (Submission, error) {
	row := q.db.QueryRow(ctx, getSubmission, arg.FormID, arg.InstanceID)
	var i Submission
	err := row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.FormID, &i.InstanceID, &i.XML)
	return i, err
}

const countSubmissions = `
SELECT count(*) FROM submissions WHERE form_id = $1
`

func (q *Queries) CountSubmissions(ctx context.Context, formID string) (int64, error) {
	row := q.db.QueryRow(ctx, countSubmissions, formID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

// A NULL limit means no limit.
const streamSubmissions = `
SELECT id, created_at, updated_at, form_id, instance_id, xml
FROM submissions
WHERE form_id = $1
ORDER BY id DESC
LIMIT $2 OFFSET $3
`

type StreamSubmissionsParams struct {
	FormID string
	Limit  pgtype.Int8
	Offset int64
}

// StreamSubmissions reads a form's submissions newest first and hands each
// one to fn as it comes off the cursor. Nothing is buffered beyond the
// current row; a non-nil error from fn stops the scan and is returned.
func (q *Queries) StreamSubmissions(ctx context.Context, arg StreamSubmissionsParams, fn func(Submission) error) error {
	rows, err := q.db.Query(ctx, streamSubmissions, arg.FormID, arg.Limit, arg.Offset)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		// Client went away
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var i Submission
		if err := rows.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.FormID, &i.InstanceID, &i.XML); err != nil {
			return err
		}
		if err := fn(i); err != nil {
			return err
		}
	}
	return rows.Err()
}
