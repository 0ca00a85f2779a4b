package filterengine

import "github.com/AdguardTeam/golibs/errors"

// Parser errors are local: callers count them and skip the offending
// line, they are never propagated as a panic or a programming error.
const (
	// ErrEmptyLine is returned for blank or whitespace-only input lines.
	ErrEmptyLine errors.Error = "empty line"

	// ErrMalformedRule is returned when a line cannot be classified or
	// compiled into a filter, including when parsing would read out of
	// bounds.
	ErrMalformedRule errors.Error = "malformed rule"

	// ErrEmptySelector is returned for an element-hide rule whose CSS
	// selector payload is empty. Only checked when StrictSelectors is on.
	ErrEmptySelector errors.Error = "empty css selector"
)
