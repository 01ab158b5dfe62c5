package core

// Error codes quoted to support staff. Patterns are matched case-insensitively
// with strings.Contains and the first match wins, so specific patterns sit
// above general ones.
//
//	DB001-DB007   datastore constraints and connectivity
//	IMP001-IMP008 import requests (empty input, limits, cancellation)
//	FILE001-004   uploaded files
//	TEN001-002    organization (tenant) scoping
//	AUTH001-002   API keys
//	WH001-002     payment webhooks
//	RATE001       request throttling
//	ERR000        fallback; check the logs for the technical error

import (
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string
	Action  string
	Code    string
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// Datastore
	{"duplicate key", UserMessage{"A record with this key already exists", "Check for duplicate rows in your file", "DB001"}},
	{"violates unique", UserMessage{"A duplicate value was found", "Check for duplicate rows in your file", "DB002"}},
	{"unique constraint", UserMessage{"This value must be unique but already exists", "Check for duplicate rows in your file", "DB002"}},
	{"foreign key", UserMessage{"Referenced client does not exist", "Import the client before their pets", "DB003"}},
	{"connection refused", UserMessage{"Unable to connect to database", "Please try again in a few moments", "DB004"}},
	{"connection reset", UserMessage{"Database connection was interrupted", "Please try again", "DB005"}},
	{"deadlock", UserMessage{"Database was busy with conflicting operations", "Please try again", "DB007"}},

	// Import requests
	{"empty input", UserMessage{"The file is empty", "Upload a file with a header row and at least one data row", "IMP001"}},
	{"no data provided", UserMessage{"No data provided", "Send at least one row to import", "IMP002"}},
	{"too many rows", UserMessage{"The import has too many rows", "Split the file into smaller imports", "IMP003"}},
	{"too many imports", UserMessage{"Too many imports in progress", "Please wait a moment and try again", "IMP004"}},
	{"import run not found", UserMessage{"Import run not found", "Check the run ID in your import history", "IMP005"}},
	{"context canceled", UserMessage{"The import was cancelled", "Start the import again; rows already written are skipped as duplicates", "IMP006"}},
	{"invalid json", UserMessage{"The request body is not valid JSON", `Send {"data": [...]} with one object per row`, "IMP008"}},
	{"deadline exceeded", UserMessage{"The import timed out", "Split the file into smaller imports or try again later", "IMP007"}},
	{"timeout", UserMessage{"Operation timed out", "Try a smaller file or try again later", "DB006"}},

	// Files
	{"file too large", UserMessage{"File exceeds the maximum upload size", "Split the file into smaller chunks", "FILE001"}},
	{"unsupported file type", UserMessage{"Unsupported file type", "Upload a .csv or .xlsx file", "FILE002"}},
	{"invalid spreadsheet", UserMessage{"The spreadsheet could not be read", "Re-save the workbook as .xlsx or export it as CSV", "FILE003"}},
	{"no file provided", UserMessage{"No file was selected", "Please select a file to upload", "FILE004"}},

	// Tenancy
	{"missing organization", UserMessage{"No organization was specified", "Send the X-Organization-ID header", "TEN001"}},
	{"invalid organization", UserMessage{"The organization ID is not valid", "Use letters, digits, '-' or '_' (up to 64 characters)", "TEN002"}},

	// Access
	{"missing api key", UserMessage{"An API key is required", "Send your key in the X-API-Key header", "AUTH001"}},
	{"invalid api key", UserMessage{"The API key was not recognised", "Check the key or ask an administrator for a new one", "AUTH002"}},

	// Webhooks
	{"signature", UserMessage{"Webhook signature verification failed", "Check the webhook signing secret", "WH001"}},
	{"configuration incomplete", UserMessage{"Stripe configuration incomplete", "Set STRIPE_WEBHOOK_SECRET", "WH002"}},

	{"rate limit", UserMessage{"Too many requests", "Please wait a moment before trying again", "RATE001"}},
}

var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. The root
// cause is matched first, then the full error text. Unmatched errors map to
// ERR000.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}
	if msg, ok := lookupPattern(RootCause(err)); ok {
		return msg
	}
	if msg, ok := lookupPattern(err); ok {
		return msg
	}
	return defaultMessage
}

// MapCause maps only the root cause of err. Wrapping text, which may quote
// row data such as emails or pet names, is never matched.
func MapCause(err error) (UserMessage, bool) {
	if err == nil {
		return UserMessage{}, false
	}
	return lookupPattern(RootCause(err))
}

// RootCause follows single-error Unwrap chains to the innermost error.
// Joined errors stop the walk.
func RootCause(err error) error {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err
		}
		err = next
	}
}

func lookupPattern(err error) (UserMessage, bool) {
	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a catalogued pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error (for logs) with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
