package engine

import "errors"

var (
	// ErrCharacterNotFound is returned when a character id does not resolve
	ErrCharacterNotFound = errors.New("character not found")
	// ErrEventNotFound is returned when no active story event has the requested name
	ErrEventNotFound = errors.New("story event not found")
	// ErrEventNotEligible is returned when a named event already completed or is cooling down
	ErrEventNotEligible = errors.New("story event not eligible")
	// ErrCycleInProgress is returned when an automation cycle is already running
	ErrCycleInProgress = errors.New("story cycle already in progress")
	// ErrScanInProgress is returned when a character's scan lock could not be taken in time
	ErrScanInProgress = errors.New("story scan already in progress for character")
	// ErrInvalidEvent wraps validation failures of a story event definition
	ErrInvalidEvent = errors.New("invalid story event")
)
