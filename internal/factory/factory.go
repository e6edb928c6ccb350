// Package factory maps a model name to its learner.
package factory

import (
	"errors"
	"strings"

	"incnet/internal/config"
	"incnet/internal/learner"
)

// unknownModelError reports a model name no learner is registered for.
type unknownModelError struct{ name string }

func (e unknownModelError) Error() string { return "unknown model: " + e.name }

func ErrUnknownModel(name string) error { return unknownModelError{name: name} }

// IsUnknownModel reports whether err names an unregistered model.
func IsUnknownModel(err error) bool {
	var e unknownModelError
	return errors.As(err, &e)
}

// Models lists the accepted model names.
func Models() []string { return []string{"ease"} }

// GetModel returns the learner for name, matched case-insensitively.
// cfg.ModelName is set to the lowercased name so the backbone selector's
// consistency check sees the same model.
func GetModel(name string, cfg config.Config, opts ...learner.Option) (*learner.Learner, error) {
	switch n := strings.ToLower(name); n {
	case "ease":
		cfg.ModelName = n
		return learner.New(cfg, opts...)
	default:
		return nil, ErrUnknownModel(name)
	}
}
