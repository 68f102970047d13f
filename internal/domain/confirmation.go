package domain

import (
	"errors"
	"time"
)

type Status string

const (
	StatusUnconfirmed Status = "unconfirmed"
	StatusConfirmed   Status = "confirmed"
	StatusCancelled   Status = "cancelled"
)

// ParseTargetStatus accepts only the two states a patient can move a
// record into. Anything else is rejected before storage is touched.
func ParseTargetStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusConfirmed, StatusCancelled:
		return Status(s), true
	default:
		return "", false
	}
}

// Finalized reports whether a stored status blocks further transitions.
// Unknown values found in storage count as finalized.
func (s Status) Finalized() bool {
	return s != StatusUnconfirmed
}

// ConfirmationRecord is one tokenized appointment confirmation. Name and
// phone fields hold decrypted values that live only for the request.
type ConfirmationRecord struct {
	Token           string
	GivenName       string
	FamilyName      string
	Phone           string
	AppointmentDate time.Time
	StartTime       string
	Status          Status
}

type LinkOutcome string

const (
	LinkInvalid      LinkOutcome = "invalid"
	LinkExpired      LinkOutcome = "expired"
	LinkActive       LinkOutcome = "active"
	LinkAlreadyActed LinkOutcome = "already_acted"
)

// LinkView is the displayable form of an active confirmation link.
type LinkView struct {
	TenantID    string `json:"tenant_id"`
	TenantName  string `json:"tenant_name"`
	TenantLogo  string `json:"tenant_logo"`
	Token       string `json:"token"`
	PatientName string `json:"patient_name"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type LinkResolution struct {
	Outcome LinkOutcome
	// Status is set for LinkAlreadyActed.
	Status Status
	// View is set for LinkActive.
	View *LinkView
}

type TransitionResult string

const (
	TransitionCommitted    TransitionResult = "committed"
	TransitionAlreadyActed TransitionResult = "already_acted"
	TransitionNotFound     TransitionResult = "not_found"
)

var (
	// ErrUnknownTenant is a configuration failure, never reported to a
	// patient as a missing link.
	ErrUnknownTenant = errors.New("unknown tenant")

	// ErrDecryptFailed means the tenant key could not decrypt a stored
	// record. A configuration defect, distinct from a bad link.
	ErrDecryptFailed = errors.New("record decryption failed")

	// ErrStorageUnavailable covers connection and timeout failures.
	// Retryable; a retried transition is safe under the conditional write.
	ErrStorageUnavailable = errors.New("storage unavailable")

	ErrInvalidStatus = errors.New("invalid target status")
)
