package config

import "errors"

var (
	// ErrConfiguration is returned when a configuration fails to parse or validate.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrConfigNotFound is returned when the configuration file does not exist.
	ErrConfigNotFound = errors.New("configuration file not found")

	// ErrUnknownStandard is returned when a photo standard name is not configured.
	ErrUnknownStandard = errors.New("unknown photo standard")

	// ErrUnknownPrint is returned when a print definition name is not configured.
	ErrUnknownPrint = errors.New("unknown print definition")
)
