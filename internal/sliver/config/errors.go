package config

import "errors"

// ErrInvalid is the sentinel for ConfigInvalid failures.
// It is fatal only at startup: Load returns it wrapped with detail, and
// callers in cmd/sliverd treat any error from Load as exit code 1.
var ErrInvalid = errors.New("invalid configuration")
