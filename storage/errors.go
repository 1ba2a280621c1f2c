package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when a task is not found.
	ErrNotFound = errors.New("task not found")

	// ErrAlreadyDetected is returned when a detected workflow would be
	// overwritten. Detection is write-once per task.
	ErrAlreadyDetected = errors.New("detected workflow already set")

	// ErrOutputExists is returned when a terminal output would be
	// overwritten. Output is written exactly once per task.
	ErrOutputExists = errors.New("task output already set")
)
