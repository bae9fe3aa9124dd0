package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrConfigNotFound  = errors.New("standup config not found")
	ErrProjectNotFound = errors.New("project not found")
	ErrSessionNotFound = errors.New("standup session not found")
	ErrSummaryNotFound = errors.New("standup summary not found")
	ErrTicketNotFound  = errors.New("ticket not found")

	// ErrSessionNotActive rejects responses to a window that is closed.
	ErrSessionNotActive = errors.New("standup session is not active")

	ErrAmbiguousTicket = errors.New("ticket reference matches more than one ticket")

	ErrInvalidTimezone       = errors.New("invalid timezone")
	ErrInvalidTime           = errors.New("invalid time of day, expected HH:MM")
	ErrInvalidWorkingDay     = errors.New("invalid working day")
	ErrInvalidResponseWindow = errors.New("response window must be at least one hour")
)

// ValidationError collects field errors from a config write. errors.Is
// matches any of the wrapped sentinels.
type ValidationError struct {
	FieldErrors map[string]error
}

func (v *ValidationError) Error() string {
	if v == nil || len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	fields := make([]string, 0, len(v.FieldErrors))
	for f := range v.FieldErrors {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v.FieldErrors[f].Error())
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v *ValidationError) Unwrap() []error {
	if v == nil {
		return nil
	}
	errs := make([]error, 0, len(v.FieldErrors))
	for _, err := range v.FieldErrors {
		errs = append(errs, err)
	}
	return errs
}

func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field string, err error) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]error)
	}
	v.FieldErrors[field] = err
}
