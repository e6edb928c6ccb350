package learner

import (
	"errors"
	"fmt"
	"strconv"
)

// taskInProgressError signals that a task is already open (409 mapping).
type taskInProgressError struct{ task int }

func (e taskInProgressError) Error() string { return "task in progress: " + strconv.Itoa(e.task) }

func ErrTaskInProgress(task int) error { return taskInProgressError{task: task} }

// IsTaskInProgress reports whether err indicates an open task blocks the call.
func IsTaskInProgress(err error) bool {
	var e taskInProgressError
	return errors.As(err, &e)
}

// noOpenTaskError signals a call that needs an open task when none is.
type noOpenTaskError struct{ op string }

func (e noOpenTaskError) Error() string { return e.op + ": no open task" }

func ErrNoOpenTask(op string) error { return noOpenTaskError{op: op} }

// IsNoOpenTask reports whether err indicates that no task is open.
func IsNoOpenTask(err error) bool {
	var e noOpenTaskError
	return errors.As(err, &e)
}

// invalidInputError covers caller mistakes: bad class counts, labels or
// feature widths (400 mapping).
type invalidInputError struct{ msg string }

func (e invalidInputError) Error() string { return e.msg }

func ErrInvalidInput(format string, args ...any) error {
	return invalidInputError{msg: fmt.Sprintf(format, args...)}
}

// IsInvalidInput reports whether err was caused by bad caller input.
func IsInvalidInput(err error) bool {
	var e invalidInputError
	return errors.As(err, &e)
}
