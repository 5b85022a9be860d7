package apperr

// AllowedCountries lists the country codes accepted by the pipeline.
var AllowedCountries = []string{"PE", "CL"}

// InsuredIDFormat describes the accepted insured id shape.
const InsuredIDFormat = "5-digit numeric string"

func MissingFields(fields ...string) *Error {
	return New(KindValidation, CodeMissingFields, "Missing required fields", Details{
		"missingFields": fields,
	})
}

func InvalidCountryCode(countryCode string) *Error {
	allowed := make([]string, len(AllowedCountries))
	copy(allowed, AllowedCountries)
	return New(KindValidation, CodeInvalidCountryCode, "Invalid country code", Details{
		"countryCode":   countryCode,
		"allowedValues": allowed,
	})
}

func InvalidInsuredID(insuredID string) *Error {
	return New(KindValidation, CodeInvalidInsuredID, "Invalid insured ID format", Details{
		"insuredId":      insuredID,
		"expectedFormat": InsuredIDFormat,
	})
}

// InvalidField reports a single rule violation from the generic validators.
func InvalidField(reason string) *Error {
	return New(KindValidation, CodeValidation, "Invalid field", Details{
		"violations": []string{reason},
	})
}

func InvalidRequestBody(parseError string) *Error {
	return New(KindValidation, CodeInvalidRequestBody, "Invalid request body format", Details{
		"parseError": parseError,
	})
}

func AppointmentNotFound(appointmentID string) *Error {
	return New(KindNotFound, CodeAppointmentNotFound, "Appointment not found", Details{
		"appointmentId": appointmentID,
	})
}

func InvalidTransition(appointmentID, from, to string) *Error {
	return New(KindConflict, CodeInvalidTransition, "Invalid status transition", Details{
		"appointmentId": appointmentID,
		"from":          from,
		"to":            to,
	})
}

func MethodNotAllowed(allowed ...string) *Error {
	var details Details
	if len(allowed) > 0 {
		details = Details{"allowedMethods": allowed}
	}
	return New(KindMethodNotAllowed, CodeMethodNotAllowed, "HTTP method not allowed", details)
}

// Infrastructure wraps a storage or transport failure. These are critical.
func Infrastructure(code, message string, cause error) *Error {
	return Wrap(cause, KindInfrastructure, code, message)
}

// Timeout reports an operation that exceeded its deadline.
func Timeout(operation string, cause error) *Error {
	e := Wrap(cause, KindInfrastructure, CodeTimeout, "Operation timed out")
	e.Details = Details{"operation": operation}
	return e
}

func Internal(message string, cause error) *Error {
	if message == "" {
		message = "Internal server error"
	}
	return Wrap(cause, KindInternal, CodeInternal, message)
}
