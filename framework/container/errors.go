package container

import (
	"fmt"

	"github.com/juju/errors"
)

// NameNotFoundError reports a name with neither a record nor an instance
// in its category. It matches errors.NotFound.
type NameNotFoundError struct {
	Category Category
	Name     string
}

func (e *NameNotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Category, e.Name)
}

func (e *NameNotFoundError) Is(target error) bool { return target == errors.NotFound }

// ConstructionError reports a failed build. Err is the cause; an unknown
// adapter identifier makes it match errors.NotValid. Since the cause is
// unwrapped it may also match errors.NotFound, so tell a missing name apart
// with errors.As on *NameNotFoundError rather than by kind.
type ConstructionError struct {
	Category Category
	Name     string
	Err      error
}

func (e *ConstructionError) Error() string {
	return fmt.Sprintf("building %s %q: %v", e.Category, e.Name, e.Err)
}

func (e *ConstructionError) Unwrap() error { return e.Err }

// ConfigurationError reports malformed input to the normalizer. It matches
// errors.NotValid.
type ConfigurationError struct {
	Section string
	Err     error
}

func (e *ConfigurationError) Error() string {
	if e.Section == "" {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid %s configuration: %v", e.Section, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func (e *ConfigurationError) Is(target error) bool { return target == errors.NotValid }

func configErrorf(section, format string, args ...any) error {
	return &ConfigurationError{Section: section, Err: fmt.Errorf(format, args...)}
}

// asBuildError passes a nested NameNotFoundError or ConstructionError
// through unchanged so the failing category is the one reported, and wraps
// anything else.
func asBuildError(cat Category, name string, err error) error {
	var nf *NameNotFoundError
	if errors.As(err, &nf) {
		return nf
	}
	var ce *ConstructionError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConstructionError{Category: cat, Name: name, Err: err}
}
