package wallet

import "errors"

var (
	// ErrUnavailable means the wallet cannot take transfers right now (not synced,
	// gateway down). Callers may retry later.
	ErrUnavailable = errors.New("wallet unavailable")
	// ErrSubmission means a transfer was attempted and failed or its outcome is unknown.
	ErrSubmission = errors.New("transfer submission failed")
)
