// Package validate holds the field-level checks shared by the appointment
// entity and the HTTP boundary. Every check returns nil or an *apperr.Error
// with itemized details.
package validate

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/wolfman30/medical-appointments/internal/apperr"
)

var (
	insuredIDPattern = regexp.MustCompile(`^[0-9]{5}$`)
	uuidPattern      = regexp.MustCompile(`^(?i)[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)
	emailPattern     = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// Field pairs a field name with its value for Required.
type Field struct {
	Name  string
	Value any
}

// Required fails with MissingFields naming every absent field, in the order
// given. nil, empty strings, and zero numbers count as absent.
func Required(fields ...Field) error {
	var missing []string
	for _, f := range fields {
		if isEmpty(f.Value) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return apperr.MissingFields(missing...)
	}
	return nil
}

func isEmpty(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case *string:
		return val == nil || *val == ""
	case int:
		return val == 0
	case int32:
		return val == 0
	case int64:
		return val == 0
	case *int64:
		return val == nil
	case float64:
		return val == 0
	default:
		return false
	}
}

// CountryISO accepts only the closed set of country codes, case-sensitive.
func CountryISO(value string) error {
	if !slices.Contains(apperr.AllowedCountries, value) {
		return apperr.InvalidCountryCode(value)
	}
	return nil
}

// InsuredID requires exactly five ASCII digits.
func InsuredID(value string) error {
	if !insuredIDPattern.MatchString(value) {
		return apperr.InvalidInsuredID(value)
	}
	return nil
}

// PositiveNumber requires value > 0.
func PositiveNumber(value int64, field string) error {
	if value <= 0 {
		return apperr.InvalidField(field + " must be a positive number")
	}
	return nil
}

// UUID requires a canonical hyphenated UUID, any case.
func UUID(value, field string) error {
	if field == "" {
		field = "id"
	}
	if !uuidPattern.MatchString(value) {
		return apperr.InvalidField(field + " must be a valid UUID")
	}
	return nil
}

// Email requires a local@domain.tld shape.
func Email(value, field string) error {
	if field == "" {
		field = "email"
	}
	if !emailPattern.MatchString(value) {
		return apperr.InvalidField(field + " must be a valid email address")
	}
	return nil
}

// MaxLength caps value at max runes.
func MaxLength(value string, max int, field string) error {
	if utf8.RuneCountInString(value) > max {
		return apperr.InvalidField(fmt.Sprintf("%s must not exceed %d characters", field, max))
	}
	return nil
}

// MinLength requires at least min runes.
func MinLength(value string, min int, field string) error {
	if utf8.RuneCountInString(value) < min {
		return apperr.InvalidField(fmt.Sprintf("%s must be at least %d characters", field, min))
	}
	return nil
}

// Enum fails unless value is one of allowed.
func Enum[T comparable](value T, allowed []T, field string) error {
	if slices.Contains(allowed, value) {
		return nil
	}
	names := make([]string, len(allowed))
	for i, a := range allowed {
		names[i] = fmt.Sprint(a)
	}
	return apperr.InvalidField(fmt.Sprintf("%s must be one of: %s", field, strings.Join(names, ", ")))
}

// ParseBody decodes a JSON request body into dst.
func ParseBody(body []byte, dst any) error {
	if len(strings.TrimSpace(string(body))) == 0 {
		return apperr.InvalidRequestBody("Request body is empty")
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperr.InvalidRequestBody(err.Error())
	}
	return nil
}
