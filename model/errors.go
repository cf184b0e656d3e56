package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrDuplicateName         = errors.New("duplicate intent name")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
	ErrCatalogUnavailable    = fmt.Errorf("%w: intent catalog", ErrDependencyUnavailable)
	ErrForbidden             = errors.New("forbidden")
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

const (
	MaxMessageLen     = 1000
	MaxIntentNameLen  = 100
	MaxPhraseLen      = 200
	MaxResponseLen    = 1000
	MinIntentPriority = 1
	MaxIntentPriority = 10
)

func (r ChatRequest) Validate() error {
	n := utf8.RuneCountInString(strings.TrimSpace(r.Message))
	if n == 0 {
		return invalid("message", "is required")
	}
	if utf8.RuneCountInString(r.Message) > MaxMessageLen {
		return invalid("message", "must be at most %d characters", MaxMessageLen)
	}
	return nil
}

func (in IntentInput) Validate() error {
	name := strings.TrimSpace(in.Name)
	switch {
	case name == "":
		return invalid("name", "is required")
	case utf8.RuneCountInString(name) > MaxIntentNameLen:
		return invalid("name", "must be at most %d characters", MaxIntentNameLen)
	case IsSentinelIntent(name):
		return invalid("name", "%q is reserved", name)
	}

	if len(in.Phrases) == 0 {
		return invalid("phrases", "at least one phrase is required")
	}
	for i, p := range in.Phrases {
		n := utf8.RuneCountInString(strings.TrimSpace(p))
		if n == 0 || n > MaxPhraseLen {
			return invalid(fmt.Sprintf("phrases[%d]", i), "must be 1-%d characters", MaxPhraseLen)
		}
	}

	if len(in.Responses) == 0 {
		return invalid("responses", "at least one response is required")
	}
	for i, r := range in.Responses {
		n := utf8.RuneCountInString(strings.TrimSpace(r))
		if n == 0 || n > MaxResponseLen {
			return invalid(fmt.Sprintf("responses[%d]", i), "must be 1-%d characters", MaxResponseLen)
		}
	}

	if in.Priority < MinIntentPriority || in.Priority > MaxIntentPriority {
		return invalid("priority", "must be between %d and %d", MinIntentPriority, MaxIntentPriority)
	}
	return nil
}

func IsSentinelIntent(name string) bool {
	switch strings.ToLower(name) {
	case IntentUnknown, IntentFallback, IntentError:
		return true
	}
	return false
}
