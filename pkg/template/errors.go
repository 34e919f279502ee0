package template

import "errors"

var (
	// ErrParse indicates the template source has malformed region nesting.
	ErrParse = errors.New("template: parse failed")

	// ErrRegionNotFound indicates the named region does not exist.
	ErrRegionNotFound = errors.New("template: region not found")

	// ErrTagNotFound indicates the template never references the variable.
	ErrTagNotFound = errors.New("template: tag not found")
)
