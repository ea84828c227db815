package tasks

import "errors"

// ErrPanicked wraps a panic recovered from a task.
var ErrPanicked = errors.New("task panicked")
