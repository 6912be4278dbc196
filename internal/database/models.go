package database

import "github.com/jackc/pgx/v5/pgtype"

type Form struct {
	ID        int64              `json:"id"`
	CreatedAt pgtype.Timestamptz `json:"createdAt"`
	UpdatedAt pgtype.Timestamptz `json:"updatedAt"`
	UID       string             `json:"uid"`
	XML       string             `json:"xml"`
}

type Submission struct {
	ID         int64              `json:"id"`
	CreatedAt  pgtype.Timestamptz `json:"createdAt"`
	UpdatedAt  pgtype.Timestamptz `json:"updatedAt"`
	FormID     string             `json:"formId"`
	InstanceID string             `json:"instanceId"`
	XML        string             `json:"xml"`
}
