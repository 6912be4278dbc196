package xform

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrCannotParseXML    = errors.New("cannot parse XML")
	ErrMissingFormID     = errors.New("cannot find formId")
	ErrMissingInstanceID = errors.New("cannot find formId or instanceId")
	ErrInstanceIDFormat  = errors.New("unrecognized instanceId format")
)

const (
	instanceIDPrefix      = "uuid:"
	instanceIDMetaElement = "instanceID"
)

// Row is one stored submission as seen by the exporters.
type Row struct {
	FormID     string
	InstanceID string
	XML        []byte
	CreatedAt  time.Time
}

// FormHeader holds the identifying fields of a form definition.
type FormHeader struct {
	UID string
}

// SubmissionHeader holds the identifying fields of a submission instance.
type SubmissionHeader struct {
	FormID     string
	InstanceID string
}

// ParseFormHeader extracts the form id from model/instance/<root>@id.
func ParseFormHeader(definition []byte) (FormHeader, error) {
	doc, err := parseDocument(definition)
	if err != nil {
		return FormHeader{}, ErrCannotParseXML
	}

	model := descendant(doc.Root(), "model")
	if model == nil {
		return FormHeader{}, ErrMissingFormID
	}
	instance := child(model, "instance")
	if instance == nil || len(instance.ChildElements()) == 0 {
		return FormHeader{}, ErrMissingFormID
	}

	uid, ok := attr(instance.ChildElements()[0], "id")
	if !ok || uid == "" {
		return FormHeader{}, ErrMissingFormID
	}
	return FormHeader{UID: uid}, nil
}

// ParseSubmissionHeader extracts the form id and instance id of a submission.
//
// The instance id is read from the root's instanceID attribute, falling back
// to meta/instanceID, and must carry the "uuid:" prefix. Well-formed UUIDs
// are returned in canonical form; anything else after the prefix is kept
// verbatim.
func ParseSubmissionHeader(instance []byte) (SubmissionHeader, error) {
	root, err := ParseInstance(instance)
	if err != nil {
		return SubmissionHeader{}, ErrCannotParseXML
	}

	formID, _ := attr(root, "id")
	raw, ok := attr(root, instanceIDMetaElement)
	if !ok {
		raw, ok = Accessor{"meta", instanceIDMetaElement}.Text(root)
	}
	if formID == "" || !ok || strings.TrimSpace(raw) == "" {
		return SubmissionHeader{}, ErrMissingInstanceID
	}

	instanceID, err := normalizeInstanceID(raw)
	if err != nil {
		return SubmissionHeader{}, err
	}
	return SubmissionHeader{FormID: formID, InstanceID: instanceID}, nil
}

func normalizeInstanceID(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) <= len(instanceIDPrefix) || !strings.EqualFold(raw[:len(instanceIDPrefix)], instanceIDPrefix) {
		return "", ErrInstanceIDFormat
	}
	id := raw[len(instanceIDPrefix):]
	if parsed, err := uuid.Parse(id); err == nil {
		return parsed.String(), nil
	}
	return id, nil
}
