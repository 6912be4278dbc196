package database

import "context"

const createForm = `
INSERT INTO forms (uid, xml)
VALUES ($1, $2)
RETURNING id, created_at, updated_at, uid, xml
`

type CreateFormParams struct {
	UID string
	XML string
}

func (q *Queries) CreateForm(ctx context.Context, arg CreateFormParams) (Form, error) {
	row := q.db.QueryRow(ctx, createForm, arg.UID, arg.XML)
	var i Form
	err := row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.UID, &i.XML)
	return i, err
}

const getFormByUID = `
SELECT id, created_at, updated_at, uid, xml
FROM forms
WHERE uid = $1
`

func (q *Queries) GetFormByUID(ctx context.Context, uid string) (Form, error) {
	row := q.db.QueryRow(ctx, getFormByUID, uid)
	var i Form
	err := row.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.UID, &i.XML)
	return i, err
}

const listForms = `
SELECT id, created_at, updated_at, uid, xml
FROM forms
ORDER BY id DESC
`

func (q *Queries) ListForms(ctx context.Context) ([]Form, error) {
	rows, err := q.db.Query(ctx, listForms)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []Form
	for rows.Next() {
		var i Form
		if err := rows.Scan(&i.ID, &i.CreatedAt, &i.UpdatedAt, &i.UID, &i.XML); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}
