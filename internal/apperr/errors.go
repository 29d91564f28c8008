// Package apperr defines the error taxonomy shared by every layer.
package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrValidation  = errors.New("validation failed")
	ErrIO          = errors.New("io error")
	ErrQuerySyntax = errors.New("query syntax error")
	ErrStorage     = errors.New("storage engine error")
)
