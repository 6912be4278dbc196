package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/formbridge/internal/database"
	"github.com/JonMunkholm/formbridge/internal/logging"
	"github.com/JonMunkholm/formbridge/internal/xform"
)

// SaveForm stores a form definition under the uid declared in its model
// instance.
func (s *Service) SaveForm(ctx context.Context, definition []byte) (database.Form, error) {
	header, err := xform.ParseFormHeader(definition)
	if err != nil {
		return database.Form{}, fmt.Errorf("%w: %w", xform.ErrMalformedDefinition, err)
	}
	if _, err := xform.ExtractSchema(definition); err != nil {
		return database.Form{}, err
	}

	form, err := s.store.CreateForm(ctx, database.CreateFormParams{
		UID: header.UID,
		XML: string(definition),
	})
	if err != nil {
		return database.Form{}, fmt.Errorf("save form %s: %w", header.UID, storeError(err, ErrFormNotFound))
	}

	logging.FromContext(ctx).Info("form saved", "form_id", form.UID, "id", form.ID)
	return form, nil
}

// GetForm returns the stored form with the given uid.
func (s *Service) GetForm(ctx context.Context, formID string) (database.Form, error) {
	form, err := s.store.GetFormByUID(ctx, formID)
	if err != nil {
		return database.Form{}, storeError(err, ErrFormNotFound)
	}
	return form, nil
}

// ListForms returns every stored form, newest first.
func (s *Service) ListForms(ctx context.Context) ([]database.Form, error) {
	forms, err := s.store.ListForms(ctx)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// FormSchema extracts the field schema from a stored form definition.
func (s *Service) FormSchema(ctx context.Context, formID string) (*xform.Schema, error) {
	form, err := s.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	return xform.ExtractSchema([]byte(form.XML))
}

// SaveSubmission stores a submission instance under its form id and
// normalized instance id.
func (s *Service) SaveSubmission(ctx context.Context, instance []byte) (database.Submission, error) {
	header, err := xform.ParseSubmissionHeader(instance)
	if err != nil {
		return database.Submission{}, fmt.Errorf("%w: %w", xform.ErrMalformedSubmission, err)
	}

	sub, err := s.store.CreateSubmission(ctx, database.CreateSubmissionParams{
		FormID:     header.FormID,
		InstanceID: header.InstanceID,
		XML:        string(instance),
	})
	if err != nil {
		return database.Submission{}, fmt.Errorf("save submission %s: %w", header.InstanceID, storeError(err, ErrSubmissionNotFound))
	}

	ip, ua := ClientFromContext(ctx)
	logging.FromContext(ctx).Info("submission saved",
		"form_id", sub.FormID,
		"instance_id", sub.InstanceID,
		"ip", ip,
		"user_agent", ua,
	)
	return sub, nil
}

// GetSubmission returns one submission of a form.
func (s *Service) GetSubmission(ctx context.Context, formID, instanceID string) (database.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, database.GetSubmissionParams{
		FormID:     formID,
		InstanceID: instanceID,
	})
	if err != nil {
		return database.Submission{}, storeError(err, ErrSubmissionNotFound)
	}
	return sub, nil
}

// ListSubmissions returns a page of a form's submissions, newest first.
func (s *Service) ListSubmissions(ctx context.Context, formID string, page Page) ([]database.Submission, error) {
	if _, err := s.GetForm(ctx, formID); err != nil {
		return nil, err
	}

	subs := []database.Submission{}
	err := s.store.StreamSubmissions(ctx, page.params(formID), func(sub database.Submission) error {
		subs = append(subs, sub)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}
