package bookingflow

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"chatwidget/models"
)

var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
var phonePattern = regexp.MustCompile(`^\+?[0-9 ()-]{7,20}$`)

const maxDurationMinutes = 8 * 60

// ValidateField checks one draft field in isolation. It is side-effect-free
// and deterministic: the same value always yields the same result.
func ValidateField(name, value string) *models.ValidationError {
	switch name {
	case models.FieldCustomerName:
		if len(strings.TrimSpace(value)) < 2 {
			return &models.ValidationError{Field: name, Code: "too_short", Message: "please enter your full name"}
		}
	case models.FieldCustomerEmail:
		if !emailPattern.MatchString(value) {
			return &models.ValidationError{Field: name, Code: "invalid_email", Message: "please enter a valid email address"}
		}
	case models.FieldCustomerPhone:
		if value != "" && !phonePattern.MatchString(value) {
			return &models.ValidationError{Field: name, Code: "invalid_phone", Message: "please enter a valid phone number"}
		}
	case models.FieldServiceType:
		if strings.TrimSpace(value) == "" {
			return &models.ValidationError{Field: name, Code: "required", Message: "please choose a service"}
		}
	case models.FieldPreferredDate:
		if _, err := time.Parse("2006-01-02", value); err != nil {
			return &models.ValidationError{Field: name, Code: "invalid_date", Message: "please use the YYYY-MM-DD date format"}
		}
	case models.FieldPreferredTime:
		if _, err := time.Parse("15:04", value); err != nil {
			return &models.ValidationError{Field: name, Code: "invalid_time", Message: "please use the HH:MM time format"}
		}
	case models.FieldDuration:
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 || n > maxDurationMinutes {
			return &models.ValidationError{Field: name, Code: "invalid_duration", Message: "duration must be between 1 minute and 8 hours"}
		}
	case models.FieldNotes:
		if len(value) > 2000 {
			return &models.ValidationError{Field: name, Code: "too_long", Message: "notes are limited to 2000 characters"}
		}
	}
	return nil
}

// ValidateDraft runs field-level validation over every required field plus
// any optional field that carries a value.
func ValidateDraft(draft models.BookingDraft) models.ValidationResult {
	var errs []*models.ValidationError
	for _, field := range models.RequiredDraftFields {
		value := draft.Field(field)
		if value == "" {
			errs = append(errs, &models.ValidationError{Field: field, Code: "required", Message: "this field is required"})
			continue
		}
		if ve := ValidateField(field, value); ve != nil {
			errs = append(errs, ve)
		}
	}
	for _, field := range []string{models.FieldCustomerPhone, models.FieldNotes} {
		if value := draft.Field(field); value != "" {
			if ve := ValidateField(field, value); ve != nil {
				errs = append(errs, ve)
			}
		}
	}
	return models.ValidationResult{IsValid: len(errs) == 0, Errors: errs}
}
