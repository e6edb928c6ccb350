package backbone

import (
	"errors"
	"fmt"
)

// unimplementedError signals a backbone type outside the supported set.
type unimplementedError struct{ name string }

func (e unimplementedError) Error() string { return "unknown backbone type: " + e.name }

// ErrUnimplemented returns the error reported for an unsupported backbone name.
func ErrUnimplemented(name string) error { return unimplementedError{name: name} }

// IsUnimplemented reports whether err names an unsupported backbone or option.
func IsUnimplemented(err error) bool {
	var e unimplementedError
	return errors.As(err, &e)
}

// inconsistentModelError is returned when an adapter backbone is requested
// by a model other than the one it was built for.
type inconsistentModelError struct{ modelName, backboneType string }

func (e inconsistentModelError) Error() string {
	return fmt.Sprintf("inconsistent model name and model type: model_name=%q backbone_type=%q", e.modelName, e.backboneType)
}

func ErrInconsistentModel(modelName, backboneType string) error {
	return inconsistentModelError{modelName: modelName, backboneType: backboneType}
}

// IsInconsistentModel reports whether err is an inconsistent model name/type error.
func IsInconsistentModel(err error) bool {
	var e inconsistentModelError
	return errors.As(err, &e)
}

// weightsNotFoundError signals that a catalog has no entry for a model.
type weightsNotFoundError struct{ name string }

func (e weightsNotFoundError) Error() string { return "pretrained weights not found: " + e.name }

func ErrWeightsNotFound(name string) error { return weightsNotFoundError{name: name} }

// IsWeightsNotFound reports whether err indicates a missing catalog entry.
func IsWeightsNotFound(err error) bool {
	var e weightsNotFoundError
	return errors.As(err, &e)
}
