package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers gatesession-specific validation rules.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("cookie_name", validateCookieName); err != nil {
		return fmt.Errorf("failed to register cookie_name validator: %w", err)
	}
	return nil
}

// validateCookieName accepts RFC 6265 token characters only.
func validateCookieName(fl validator.FieldLevel) bool {
	name := fl.Field().String()
	if name == "" {
		return false
	}
	for _, r := range name {
		if r <= ' ' || r >= 0x7f || strings.ContainsRune(`()<>@,;:\"/[]?={}`, r) {
			return false
		}
	}
	return true
}

// Validate validates the configuration using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDurations(); err != nil {
		return err
	}

	if err := c.validateBackend(); err != nil {
		return err
	}

	// Browsers drop SameSite=None cookies that are not Secure.
	if c.Gateway.Session.SameSite == "none" && c.Gateway.Session.Secure == "never" {
		return errors.New("gateway.session: same_site none requires secure cookies")
	}

	return nil
}

func (c *Config) validateDurations() error {
	checks := []struct {
		name  string
		value int64
	}{
		{"gateway.profiles_timeout", int64(c.Gateway.ProfilesTimeout)},
		{"gateway.session.expires_after", int64(c.Gateway.Session.ExpiresAfter)},
		{"gateway.session.timeout", int64(c.Gateway.Session.Timeout)},
		{"sessiond.retention", int64(c.Sessiond.Retention)},
		{"sessiond.cleanup_interval", int64(c.Sessiond.CleanupInterval)},
	}
	for _, check := range checks {
		if check.value <= 0 {
			return fmt.Errorf("%s must be positive", check.name)
		}
	}

	if c.Sessiond.Retention < c.Gateway.Session.ExpiresAfter {
		return fmt.Errorf("sessiond.retention (%s) must not be shorter than gateway.session.expires_after (%s)",
			c.Sessiond.Retention, c.Gateway.Session.ExpiresAfter)
	}
	return nil
}

// validateBackend checks that the selected session backend has what it needs.
func (c *Config) validateBackend() error {
	d := c.Sessiond
	switch d.Backend {
	case "sqlite", "postgres":
		if d.DSN == "" {
			return fmt.Errorf("sessiond: backend %s requires dsn", d.Backend)
		}
	case "memcached":
		if len(d.MemcachedServers) == 0 {
			return errors.New("sessiond: backend memcached requires memcached_servers")
		}
	case "redis":
		if d.Redis.Addr == "" {
			return errors.New("sessiond: backend redis requires redis.addr")
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()

	switch e.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "startswith":
		return fmt.Sprintf("%s must start with %q", field, e.Param())
	case "http_url":
		return fmt.Sprintf("%s must be an http or https URL", field)
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "cookie_name":
		return fmt.Sprintf("%s must be a valid cookie name", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, e.Tag())
	}
}
