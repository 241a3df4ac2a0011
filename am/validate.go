package am

import (
	"net/url"
	"reflect"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/taglme/console/errors"
)

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	err := validation.ValidateStruct(c,
		nestedFields(&c.Service,
			validation.Field(&c.Service.BaseURL, validation.Required, validation.By(validateBaseURL)),
			validation.Field(&c.Service.Locale, validation.Required, validation.By(validateLocale)),
			validation.Field(&c.Service.TimeoutMs, validation.Min(0)),
		),
		// Zero falls back to the default; negative is a typo worth reporting
		nestedFields(&c.Lifecycle,
			validation.Field(&c.Lifecycle.QuietTimeoutMs, validation.Min(0)),
		),
		nestedFields(&c.Stream,
			validation.Field(&c.Stream.PollIntervalMs, validation.Min(0)),
		),
		nestedFields(&c.Job,
			validation.Field(&c.Job.ExpireAfterSeconds, validation.Min(0)),
		),
	)
	if err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

// ValidateBaseURL checks a user-supplied nfcd address
func ValidateBaseURL(raw string) error {
	return validateBaseURL(raw)
}

// ValidateLocale checks a user-supplied locale
func ValidateLocale(locale string) error {
	return validateLocale(locale)
}

func validateBaseURL(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil // Required reports emptiness
	}
	u, err := url.Parse(s)
	if err != nil {
		return errors.Wrap(err, "must be a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Newf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("must include a host")
	}
	return nil
}

func validateLocale(value interface{}) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	for _, l := range SupportedLocales {
		if s == l {
			return nil
		}
	}
	return errors.Newf("must be one of: %s", strings.Join(SupportedLocales, ", "))
}

// nestedFields validates fields of a nested struct in place.
// https://github.com/go-ozzo/ozzo-validation/issues/136
func nestedFields(target interface{}, fieldRules ...*validation.FieldRules) *validation.FieldRules {
	return validation.Field(target, validation.By(func(value interface{}) error {
		valueV := reflect.Indirect(reflect.ValueOf(value))
		if valueV.CanAddr() {
			addr := valueV.Addr().Interface()
			return validation.ValidateStruct(addr, fieldRules...)
		}
		return validation.ValidateStruct(target, fieldRules...)
	}))
}
