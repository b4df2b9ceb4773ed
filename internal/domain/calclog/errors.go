package calclog

import "errors"

var (
	ErrRunLogNotFound = errors.New("calculation run log not found")
)
