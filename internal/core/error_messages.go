package core

// error_messages.go maps technical errors to user-facing messages with
// codes support staff can look up.
//
// # Document Errors (XML001-XML099)
//
//	XML001 - Malformed form definition: the form XML cannot be used
//	         Patterns: "malformed form definition"
//	XML002 - Missing identifiers: submission lacks a form id or instance id
//	         Patterns: "cannot find formid or instanceid"
//	XML003 - Missing form id: form definition lacks model/instance/*@id
//	         Patterns: "cannot find formid"
//	XML004 - Bad instance id: instance id does not carry the uuid: prefix
//	         Patterns: "unrecognized instanceid format"
//	XML005 - Malformed submission: the submission XML cannot be parsed
//	         Patterns: "malformed submission"
//	XML006 - Type mismatch: a value does not match its declared type
//	         Patterns: "type coercion failed"
//
// # Upload Errors (DOC001-DOC099)
//
//	DOC001 - Too large: document exceeds the configured size
//	         Patterns: "document too large", "request body too large"
//	DOC002 - Empty: nothing was posted
//	         Patterns: "empty document"
//
// # Lookup Errors (FRM001-FRM099)
//
//	FRM001 - Form not found
//	FRM002 - Submission not found
//	FRM003 - Unknown table: only the Records entity set is published
//
// # OData Errors (ODT001-ODT099)
//
//	ODT001 - Not acceptable: only JSON is served
//	ODT002 - Unsupported query option
//	ODT003 - Unsupported protocol version
//	ODT004 - Invalid query option value
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Duplicate: the form or submission was already stored
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//
// # Export Errors (EXP001-EXP099)
//
//	EXP001 - System busy: every export slot is taken
//	EXP002 - Request cancelled
//	EXP003 - Request timed out
//
// # Default Error (ERR000)
//
// Patterns are matched case-insensitively using strings.Contains and the
// first match wins, so the more specific pattern of two overlapping ones
// (XML002 before XML003) must come first.

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// =========================================================================
	// Document Errors (XML001-XML006)
	// =========================================================================
	{
		pattern: "malformed form definition",
		msg: UserMessage{
			Message: "The form definition could not be read",
			Action:  "Check that the XForm is well-formed and has a model instance",
			Code:    "XML001",
		},
	},
	{
		pattern: "cannot find formid or instanceid",
		msg: UserMessage{
			Message: "The submission has no form id or instance id",
			Action:  "Make sure the instance root carries id and meta/instanceID",
			Code:    "XML002",
		},
	},
	{
		pattern: "cannot find formid",
		msg: UserMessage{
			Message: "The form definition has no form id",
			Action:  "Add an id attribute to the model instance root element",
			Code:    "XML003",
		},
	},
	{
		pattern: "unrecognized instanceid format",
		msg: UserMessage{
			Message: "The instance id is not in a recognized format",
			Action:  "Instance ids must start with uuid:",
			Code:    "XML004",
		},
	},
	{
		pattern: "malformed submission",
		msg: UserMessage{
			Message: "A submission could not be read",
			Action:  "Check that the submission XML is well-formed",
			Code:    "XML005",
		},
	},
	{
		pattern: "type coercion failed",
		msg: UserMessage{
			Message: "A value does not match its declared type",
			Action:  "Review the submission values against the form's bind types",
			Code:    "XML006",
		},
	},

	// =========================================================================
	// Upload Errors (DOC001-DOC002)
	// =========================================================================
	{
		pattern: "document too large",
		msg: UserMessage{
			Message: "The document exceeds the maximum size",
			Action:  "Reduce attachments or raise SUBMISSION_MAX_BODY_SIZE",
			Code:    "DOC001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "The document exceeds the maximum size",
			Action:  "Reduce attachments or raise SUBMISSION_MAX_BODY_SIZE",
			Code:    "DOC001",
		},
	},
	{
		pattern: "empty document",
		msg: UserMessage{
			Message: "No document was sent",
			Action:  "Post the XML document as the request body",
			Code:    "DOC002",
		},
	},

	// =========================================================================
	// Lookup Errors (FRM001-FRM003)
	// =========================================================================
	{
		pattern: "form not found",
		msg: UserMessage{
			Message: "Form not found",
			Action:  "Verify the form id is correct and the form was uploaded",
			Code:    "FRM001",
		},
	},
	{
		pattern: "submission not found",
		msg: UserMessage{
			Message: "Submission not found",
			Action:  "Verify the instance id is correct",
			Code:    "FRM002",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "Request the Records entity set",
			Code:    "FRM003",
		},
	},

	// =========================================================================
	// OData Errors (ODT001-ODT004)
	// =========================================================================
	{
		pattern: "only json",
		msg: UserMessage{
			Message: "This resource is only available as JSON",
			Action:  "Request $format=json or send Accept: application/json",
			Code:    "ODT001",
		},
	},
	{
		pattern: "query option not supported",
		msg: UserMessage{
			Message: "The query option is not supported",
			Action:  "Use only $format, $count, $skip and $top",
			Code:    "ODT002",
		},
	},
	{
		pattern: "odata version",
		msg: UserMessage{
			Message: "The requested OData version is not supported",
			Action:  "Use a client that speaks OData 4.0",
			Code:    "ODT003",
		},
	},
	{
		pattern: "invalid query option",
		msg: UserMessage{
			Message: "A query option has an invalid value",
			Action:  "$top and $skip must be non-negative integers",
			Code:    "ODT004",
		},
	},

	// =========================================================================
	// Database Errors (DB001-DB006)
	// =========================================================================
	{
		pattern: "duplicate record",
		msg: UserMessage{
			Message: "This record was already stored",
			Action:  "No action needed if this is a resubmission",
			Code:    "DB001",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// =========================================================================
	// Export Errors (EXP001-EXP003)
	// =========================================================================
	{
		pattern: "too many concurrent exports",
		msg: UserMessage{
			Message: "System is busy running other exports",
			Action:  "Please wait a moment and try again",
			Code:    "EXP001",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "EXP002",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Export a smaller page with $top and $skip",
			Code:    "EXP003",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Please try again later",
			Code:    "DB006",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message, falling
// back to ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())

	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display:
// "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
