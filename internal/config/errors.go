package config

import "errors"

// Load and Validate wrap one of these; match them with errors.Is.
var (
	ErrInvalidConfig = errors.New("rankd config: invalid setting")
	ErrLoadConfig    = errors.New("rankd config: cannot read " + EnvPrefix + "CONFIG file or environment")
)
