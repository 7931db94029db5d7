package settings

import "errors"

var (
	// ErrEmptyIP is returned when the PLC address is blank.
	ErrEmptyIP = errors.New("settings: empty ip")
	// ErrInvalidInterval is returned when the interval text is not a positive number.
	ErrInvalidInterval = errors.New("settings: interval must be a positive number")
	// ErrInvalidArity is returned when an array length is not a positive integer.
	ErrInvalidArity = errors.New("settings: array length must be a positive integer")
	// ErrEmptyTagName is returned when a tag spec has no name.
	ErrEmptyTagName = errors.New("settings: empty tag name")
	// ErrInvalidStorage is returned when a storage target is incomplete.
	ErrInvalidStorage = errors.New("settings: invalid storage target")
	// ErrNotConfigured is returned when logging cannot start with the current settings.
	ErrNotConfigured = errors.New("settings: missing ip, tags, or interval")
)
