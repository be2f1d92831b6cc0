package models

import (
	"strconv"
	"time"
)

// Draft field names, used for field-scoped updates and validation errors.
const (
	FieldCustomerName  = "customerName"
	FieldCustomerEmail = "customerEmail"
	FieldCustomerPhone = "customerPhone"
	FieldServiceType   = "serviceType"
	FieldPreferredDate = "preferredDate"
	FieldPreferredTime = "preferredTime"
	FieldDuration      = "duration"
	FieldNotes         = "notes"
)

// RequiredDraftFields lists the fields a draft must carry before it can
// become a submittable BookingRequest.
var RequiredDraftFields = []string{
	FieldCustomerName,
	FieldCustomerEmail,
	FieldServiceType,
	FieldPreferredDate,
	FieldPreferredTime,
	FieldDuration,
}

// BookingDraft is the mutable form state accumulated inside a booking
// sub-flow. PreferredDate uses "2006-01-02", PreferredTime "15:04".
type BookingDraft struct {
	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`
	ServiceType   string `json:"serviceType,omitempty"`
	PreferredDate string `json:"preferredDate,omitempty"`
	PreferredTime string `json:"preferredTime,omitempty"`
	Duration      int    `json:"duration,omitempty"` // minutes
	Notes         string `json:"notes,omitempty"`
}

// Field returns the current value of a named draft field as a string.
func (d *BookingDraft) Field(name string) string {
	switch name {
	case FieldCustomerName:
		return d.CustomerName
	case FieldCustomerEmail:
		return d.CustomerEmail
	case FieldCustomerPhone:
		return d.CustomerPhone
	case FieldServiceType:
		return d.ServiceType
	case FieldPreferredDate:
		return d.PreferredDate
	case FieldPreferredTime:
		return d.PreferredTime
	case FieldNotes:
		return d.Notes
	case FieldDuration:
		if d.Duration == 0 {
			return ""
		}
		return strconv.Itoa(d.Duration)
	}
	return ""
}

// BookingRequest is the submittable form of a completed draft.
type BookingRequest struct {
	CustomerInfo      CustomerInfo `json:"customerInfo"`
	ServiceType       string       `json:"serviceType"`
	PreferredDateTime time.Time    `json:"preferredDateTime"`
	Duration          int          `json:"duration"`
	Notes             string       `json:"notes,omitempty"`
	Source            string       `json:"source"` // "chat" or "modal"
	SlotID            string       `json:"slotId,omitempty"`
}

// BookingStatus is terminal once it leaves "pending".
type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingPending   BookingStatus = "pending"
	BookingFailed    BookingStatus = "failed"
)

// AppointmentDetails describes the confirmed appointment.
type AppointmentDetails struct {
	DateTime     time.Time    `json:"dateTime"`
	Duration     int          `json:"duration"`
	ServiceType  string       `json:"serviceType"`
	CustomerInfo CustomerInfo `json:"customerInfo"`
	MeetingLink  string       `json:"meetingLink,omitempty"`
	Location     string       `json:"location,omitempty"`
}

// BookingResult is the gateway's answer to a booking submission.
type BookingResult struct {
	BookingID          string             `json:"bookingId"`
	Status             BookingStatus      `json:"status"`
	AppointmentDetails AppointmentDetails `json:"appointmentDetails"`
	ConfirmationNumber string             `json:"confirmationNumber"`
	CalendarInvite     string             `json:"calendarInvite,omitempty"`
	ErrorMessage       string             `json:"errorMessage,omitempty"`
}

// TimeSlot is a bookable time interval returned by availability lookup.
type TimeSlot struct {
	ID          string    `json:"id"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Available   bool      `json:"available"`
	ServiceType string    `json:"serviceType,omitempty"`
	Duration    int       `json:"duration"` // minutes
}
