// Package options provides shared utilities for option validation across packages.
package options

import "github.com/alexstrat/executable-openapi/oaserrors"

// ValidateSingleInputSource ensures exactly one input source is specified.
// sources is a variadic list of booleans indicating whether each source is set.
// Returns a *oaserrors.ConfigError naming option when zero or more than one
// input source is specified.
func ValidateSingleInputSource(option string, sources ...bool) error {
	sourceCount := 0
	for _, hasSource := range sources {
		if hasSource {
			sourceCount++
		}
	}

	switch {
	case sourceCount == 0:
		return &oaserrors.ConfigError{Option: option, Message: "no input source specified"}
	case sourceCount > 1:
		return &oaserrors.ConfigError{Option: option, Message: "must specify exactly one input source"}
	}
	return nil
}
