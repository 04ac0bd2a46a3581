package secrets

import "errors"

var (
	ErrEmptyValue = errors.New("secrets: empty value")
	ErrInvalidKey = errors.New("secrets: invalid key")
	ErrMissingKey = errors.New("secrets: sealing key not configured")
	ErrMalformed  = errors.New("secrets: malformed sealed value")
)
