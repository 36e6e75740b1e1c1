package service

import (
	"errors"
	"io"

	"github.com/garyjia/claim-approval/internal/domain/entity"
	"github.com/shopspring/decimal"
)

// ErrorKind classifies a failed Outcome
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindValidation    ErrorKind = "validation"
	KindNotFound      ErrorKind = "not_found"
	KindStateConflict ErrorKind = "state_conflict"
	KindStorage       ErrorKind = "storage"
)

// Outcome is the success/failure envelope every façade call returns
type Outcome struct {
	OK          bool              `json:"ok"`
	Kind        ErrorKind         `json:"kind,omitempty"`
	Message     string            `json:"message"`
	FieldErrors map[string]string `json:"field_errors,omitempty"`
}

func success(message string) Outcome {
	return Outcome{OK: true, Message: message}
}

func failure(kind ErrorKind, message string) Outcome {
	return Outcome{Kind: kind, Message: message}
}

// outcomeOf converts an error into a failed Outcome. Errors without a
// user-facing message report fallback as a storage failure.
func outcomeOf(err error, fallback string) Outcome {
	var typed *entity.Error
	if !errors.As(err, &typed) {
		return failure(KindStorage, fallback)
	}

	out := failure(kindOf(err), typed.Message)
	if typed.Field != "" {
		out.FieldErrors = map[string]string{typed.Field: typed.Message}
	}
	return out
}

func kindOf(err error) ErrorKind {
	switch entity.KindOf(err) {
	case entity.ErrValidation:
		return KindValidation
	case entity.ErrNotFound:
		return KindNotFound
	case entity.ErrStateConflict:
		return KindStateConflict
	}
	return KindStorage
}

// FileUpload is one attachment of a claim submission
type FileUpload struct {
	Name    string
	Size    int64
	Content io.Reader
}

// SubmitClaimRequest carries a lecturer's claim and its attachments
type SubmitClaimRequest struct {
	LecturerID  int64
	HoursWorked int
	HourlyRate  decimal.Decimal
	Notes       string
	Files       []FileUpload
}

// SubmitClaimResult reports the created claim. Partial is set when the claim
// was saved but an attachment failed validation; Attached counts the
// documents that were kept.
type SubmitClaimResult struct {
	Outcome
	ClaimID  int64 `json:"claim_id,omitempty"`
	Attached int   `json:"attached"`
	Partial  bool  `json:"partial,omitempty"`
}

// ReviewResult carries the claim after a review action
type ReviewResult struct {
	Outcome
	Claim *entity.Claim `json:"claim,omitempty"`
}

// ClaimsResult carries a claim listing. Actions holds, per claim id, the
// review actions the claim accepts next.
type ClaimsResult struct {
	Outcome
	Claims  []*entity.Claim    `json:"claims"`
	Actions map[int64][]string `json:"actions"`
}

// LecturerResult carries a created lecturer
type LecturerResult struct {
	Outcome
	Lecturer *entity.Lecturer `json:"lecturer,omitempty"`
}

// LecturersResult carries the lecturer listing
type LecturersResult struct {
	Outcome
	Lecturers []*entity.Lecturer `json:"lecturers"`
}

// FileResult carries downloadable content
type FileResult struct {
	Outcome
	File *entity.DocumentFile `json:"-"`
}
