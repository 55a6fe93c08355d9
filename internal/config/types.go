// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// ColorSchemeAuto detects the terminal color scheme automatically.
	ColorSchemeAuto ColorScheme = "auto"
	// ColorSchemeDark forces dark color scheme.
	ColorSchemeDark ColorScheme = "dark"
	// ColorSchemeLight forces light color scheme.
	ColorSchemeLight ColorScheme = "light"
)

var (
	// ErrInvalidColorScheme is returned when a ColorScheme value is not recognized.
	ErrInvalidColorScheme = errors.New("invalid color scheme")
	// ErrInvalidDistDirPath is returned when a DistDirPath value is whitespace-only.
	ErrInvalidDistDirPath = errors.New("invalid dist dir path")
	// ErrInvalidLoaderConfig is the sentinel error wrapped by InvalidLoaderConfigError.
	ErrInvalidLoaderConfig = errors.New("invalid loader config")
	// ErrInvalidServeConfig is the sentinel error wrapped by InvalidServeConfigError.
	ErrInvalidServeConfig = errors.New("invalid serve config")
	// ErrInvalidUIConfig is the sentinel error wrapped by InvalidUIConfigError.
	ErrInvalidUIConfig = errors.New("invalid UI config")
	// ErrInvalidConfig is the sentinel error wrapped by InvalidConfigError.
	ErrInvalidConfig = errors.New("invalid config")
)

type (
	// ColorScheme specifies the terminal color scheme preference.
	ColorScheme string

	// InvalidColorSchemeError is returned when a ColorScheme value is not
	// recognized. It wraps ErrInvalidColorScheme for errors.Is() compatibility.
	InvalidColorSchemeError struct {
		Value ColorScheme
	}

	// DistDirPath represents a build output directory path. The zero value
	// ("") is valid and means "use the built-in default".
	DistDirPath string

	// InvalidDistDirPathError is returned when a DistDirPath value is
	// non-empty but whitespace-only.
	InvalidDistDirPathError struct {
		Value DistDirPath
	}

	// Config holds the global fedkit configuration.
	Config struct {
		// Serve configures dev server defaults.
		Serve ServeDefaults `json:"serve" mapstructure:"serve"`
		// Loader configures the module loading retry policy.
		Loader LoaderConfig `json:"loader" mapstructure:"loader"`
		// UI configures terminal output.
		UI UIConfig `json:"ui" mapstructure:"ui"`
	}

	// ServeDefaults holds dev server settings applied when a fedfile does
	// not override them.
	ServeDefaults struct {
		// Port is the default serve port.
		Port int `json:"port" mapstructure:"port"`
		// DistDir is the default build output directory.
		DistDir DistDirPath `json:"dist_dir" mapstructure:"dist_dir"`
	}

	// LoaderConfig holds the module loading retry policy.
	LoaderConfig struct {
		// MaxRetries is the retry count after the initial attempt.
		// -1 disables retries entirely.
		MaxRetries int `json:"max_retries" mapstructure:"max_retries"`
		// BaseDelayMS is the backoff base in milliseconds.
		BaseDelayMS int `json:"base_delay_ms" mapstructure:"base_delay_ms"`
		// SlowThresholdMS is the slow-load notification threshold in
		// milliseconds. -1 disables the notification.
		SlowThresholdMS int `json:"slow_threshold_ms" mapstructure:"slow_threshold_ms"`
	}

	// UIConfig configures terminal output.
	UIConfig struct {
		// ColorScheme sets the color scheme.
		ColorScheme ColorScheme `json:"color_scheme" mapstructure:"color_scheme"`
		// Verbose enables debug-level logging.
		Verbose bool `json:"verbose" mapstructure:"verbose"`
	}

	// InvalidLoaderConfigError is returned when a LoaderConfig has invalid
	// fields. It wraps ErrInvalidLoaderConfig for errors.Is() compatibility.
	InvalidLoaderConfigError struct {
		FieldErrors []error
	}

	// InvalidServeConfigError is returned when a ServeDefaults has invalid
	// fields. It wraps ErrInvalidServeConfig for errors.Is() compatibility.
	InvalidServeConfigError struct {
		FieldErrors []error
	}

	// InvalidUIConfigError is returned when a UIConfig has invalid fields.
	// It wraps ErrInvalidUIConfig for errors.Is() compatibility.
	InvalidUIConfigError struct {
		FieldErrors []error
	}

	// InvalidConfigError is returned when a Config has invalid fields.
	// It wraps ErrInvalidConfig for errors.Is() compatibility and collects
	// field-level validation errors from all sub-components.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// String returns the string representation of the ColorScheme.
func (cs ColorScheme) String() string { return string(cs) }

// IsValid returns whether the ColorScheme is one of the defined color
// schemes, and a list of validation errors if it is not.
func (cs ColorScheme) IsValid() (bool, []error) {
	switch cs {
	case ColorSchemeAuto, ColorSchemeDark, ColorSchemeLight:
		return true, nil
	default:
		return false, []error{&InvalidColorSchemeError{Value: cs}}
	}
}

// Error implements the error interface for InvalidColorSchemeError.
func (e *InvalidColorSchemeError) Error() string {
	return fmt.Sprintf("invalid color scheme %q (valid: auto, dark, light)", e.Value)
}

// Unwrap returns ErrInvalidColorScheme for errors.Is() compatibility.
func (e *InvalidColorSchemeError) Unwrap() error { return ErrInvalidColorScheme }

// String returns the string representation of the DistDirPath.
func (p DistDirPath) String() string { return string(p) }

// IsValid returns whether the DistDirPath is valid. The zero value is
// valid; non-zero values must not be whitespace-only.
func (p DistDirPath) IsValid() (bool, []error) {
	if p == "" {
		return true, nil
	}
	if strings.TrimSpace(string(p)) == "" {
		return false, []error{&InvalidDistDirPathError{Value: p}}
	}
	return true, nil
}

// Error implements the error interface for InvalidDistDirPathError.
func (e *InvalidDistDirPathError) Error() string {
	return fmt.Sprintf("invalid dist dir path %q: non-empty value must not be whitespace-only", e.Value)
}

// Unwrap returns ErrInvalidDistDirPath for errors.Is() compatibility.
func (e *InvalidDistDirPathError) Unwrap() error { return ErrInvalidDistDirPath }

// IsValid returns whether the ServeDefaults has valid fields.
func (s ServeDefaults) IsValid() (bool, []error) {
	var errs []error
	if s.Port < 0 || s.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range [0, 65535]", s.Port))
	}
	if valid, fieldErrs := s.DistDir.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidServeConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidServeConfigError.
func (e *InvalidServeConfigError) Error() string {
	return fmt.Sprintf("invalid serve config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidServeConfig for errors.Is() compatibility.
func (e *InvalidServeConfigError) Unwrap() error { return ErrInvalidServeConfig }

// IsValid returns whether the LoaderConfig has valid fields. MaxRetries
// and SlowThresholdMS may be -1 (disabled); delays must be non-negative.
func (l LoaderConfig) IsValid() (bool, []error) {
	var errs []error
	if l.MaxRetries < -1 {
		errs = append(errs, fmt.Errorf("max_retries %d: must be -1 (disabled) or non-negative", l.MaxRetries))
	}
	if l.BaseDelayMS < 0 {
		errs = append(errs, fmt.Errorf("base_delay_ms %d: must be non-negative", l.BaseDelayMS))
	}
	if l.SlowThresholdMS < -1 {
		errs = append(errs, fmt.Errorf("slow_threshold_ms %d: must be -1 (disabled) or non-negative", l.SlowThresholdMS))
	}
	if len(errs) > 0 {
		return false, []error{&InvalidLoaderConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidLoaderConfigError.
func (e *InvalidLoaderConfigError) Error() string {
	return fmt.Sprintf("invalid loader config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidLoaderConfig for errors.Is() compatibility.
func (e *InvalidLoaderConfigError) Unwrap() error { return ErrInvalidLoaderConfig }

// Retries translates the configured retry count for loader.Options, where
// zero means "use the default". A configured 0 (or -1) means no retries,
// so both map to the loader's explicit-disable form.
func (l LoaderConfig) Retries() int {
	if l.MaxRetries <= 0 {
		return -1
	}
	return l.MaxRetries
}

// BaseDelay returns the backoff base as a duration.
func (l LoaderConfig) BaseDelay() time.Duration {
	return time.Duration(l.BaseDelayMS) * time.Millisecond
}

// SlowThreshold returns the slow-load threshold as a duration. A negative
// configured value disables the notification.
func (l LoaderConfig) SlowThreshold() time.Duration {
	if l.SlowThresholdMS < 0 {
		return -1
	}
	return time.Duration(l.SlowThresholdMS) * time.Millisecond
}

// IsValid returns whether the UIConfig has valid fields. It delegates to
// ColorScheme.IsValid(); bool fields need no validation.
func (c UIConfig) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.ColorScheme.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidUIConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidUIConfigError.
func (e *InvalidUIConfigError) Error() string {
	return fmt.Sprintf("invalid UI config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidUIConfig for errors.Is() compatibility.
func (e *InvalidUIConfigError) Unwrap() error { return ErrInvalidUIConfig }

// IsValid returns whether the Config has valid fields. It delegates to
// Serve.IsValid(), Loader.IsValid(), and UI.IsValid().
func (c Config) IsValid() (bool, []error) {
	var errs []error
	if valid, fieldErrs := c.Serve.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.Loader.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if valid, fieldErrs := c.UI.IsValid(); !valid {
		errs = append(errs, fieldErrs...)
	}
	if len(errs) > 0 {
		return false, []error{&InvalidConfigError{FieldErrors: errs}}
	}
	return true, nil
}

// Error implements the error interface for InvalidConfigError.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid config: %d field error(s)", len(e.FieldErrors))
}

// Unwrap returns ErrInvalidConfig for errors.Is() compatibility.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Serve: ServeDefaults{
			Port:    4174,
			DistDir: "dist",
		},
		Loader: LoaderConfig{
			MaxRetries:      3,
			BaseDelayMS:     1000,
			SlowThresholdMS: 5000,
		},
		UI: UIConfig{
			ColorScheme: ColorSchemeAuto,
			Verbose:     false,
		},
	}
}
