package models

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidID     = errors.New("invalid id")
	ErrValidation    = errors.New("validation error")
	ErrInvalidState  = errors.New("operation not allowed in current status")
	ErrAdvisorBusy   = errors.New("advisor unavailable")
	ErrConflict      = errors.New("transaction conflict")
	ErrForbidden     = errors.New("actor is not a session participant")
	ErrSessionClosed = errors.New("session is closed")
	ErrAlreadyExists = errors.New("already exists")
)
