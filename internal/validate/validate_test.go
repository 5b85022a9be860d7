package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/medical-appointments/internal/apperr"
)

func requireCode(t *testing.T, err error, code string) *apperr.Error {
	t.Helper()
	appErr, ok := apperr.As(err)
	require.True(t, ok, "expected *apperr.Error, got %v", err)
	require.Equal(t, code, appErr.Code)
	return appErr
}

func TestRequiredListsEveryMissingField(t *testing.T) {
	err := Required(
		Field{"insuredId", ""},
		Field{"scheduleId", int64(0)},
		Field{"countryISO", nil},
	)
	appErr := requireCode(t, err, apperr.CodeMissingFields)
	assert.Equal(t, []string{"insuredId", "scheduleId", "countryISO"}, appErr.Details["missingFields"])
}

func TestRequiredPassesWhenPresent(t *testing.T) {
	assert.NoError(t, Required(Field{"insuredId", "12345"}, Field{"scheduleId", int64(100)}))
}

func TestRequiredKeepsOrderAndSkipsPresent(t *testing.T) {
	err := Required(Field{"a", "x"}, Field{"b", ""}, Field{"c", 1}, Field{"d", ""})
	appErr := requireCode(t, err, apperr.CodeMissingFields)
	assert.Equal(t, []string{"b", "d"}, appErr.Details["missingFields"])
}

func TestCountryISO(t *testing.T) {
	assert.NoError(t, CountryISO("PE"))
	assert.NoError(t, CountryISO("CL"))

	for _, bad := range []string{"pe", "cl", "", "US", "PER", " PE"} {
		t.Run(bad, func(t *testing.T) {
			appErr := requireCode(t, CountryISO(bad), apperr.CodeInvalidCountryCode)
			assert.Equal(t, bad, appErr.Details["countryCode"])
			assert.Equal(t, []string{"PE", "CL"}, appErr.Details["allowedValues"])
		})
	}
}

func TestInsuredID(t *testing.T) {
	assert.NoError(t, InsuredID("12345"))
	assert.NoError(t, InsuredID("00000"))

	for _, bad := range []string{"123", "123456", "1234a", "abcde", "", "12 45", "١٢٣٤٥"} {
		t.Run(bad, func(t *testing.T) {
			appErr := requireCode(t, InsuredID(bad), apperr.CodeInvalidInsuredID)
			assert.Equal(t, bad, appErr.Details["insuredId"])
			assert.Equal(t, "5-digit numeric string", appErr.Details["expectedFormat"])
		})
	}
}

func TestGenericHelpers(t *testing.T) {
	assert.NoError(t, PositiveNumber(1, "scheduleId"))
	appErr := requireCode(t, PositiveNumber(0, "scheduleId"), apperr.CodeValidation)
	assert.Equal(t, []string{"scheduleId must be a positive number"}, appErr.Details["violations"])

	assert.NoError(t, UUID("3f1c2a9e-8b7d-4c6e-9f00-1a2b3c4d5e6f", "appointmentId"))
	requireCode(t, UUID("not-a-uuid", ""), apperr.CodeValidation)

	assert.NoError(t, Email("patient@example.com", ""))
	requireCode(t, Email("patient@", ""), apperr.CodeValidation)

	assert.NoError(t, MaxLength("abc", 3, "name"))
	requireCode(t, MaxLength("abcd", 3, "name"), apperr.CodeValidation)
	assert.NoError(t, MinLength("abc", 3, "name"))
	requireCode(t, MinLength("ab", 3, "name"), apperr.CodeValidation)

	assert.NoError(t, Enum("pending", []string{"pending", "completed"}, "status"))
	appErr = requireCode(t, Enum("cancelled", []string{"pending", "completed"}, "status"), apperr.CodeValidation)
	assert.Equal(t, []string{"status must be one of: pending, completed"}, appErr.Details["violations"])
}

func TestParseBody(t *testing.T) {
	var dst map[string]any
	requireCode(t, ParseBody(nil, &dst), apperr.CodeInvalidRequestBody)
	requireCode(t, ParseBody([]byte("{"), &dst), apperr.CodeInvalidRequestBody)

	require.NoError(t, ParseBody([]byte(`{"insuredId":"12345"}`), &dst))
	assert.Equal(t, "12345", dst["insuredId"])
}
