// Package bookingflow implements the nested booking state machine driven
// by the conversation orchestrator.
package bookingflow

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"chatwidget/models"
	"chatwidget/services/gateway"

	"go.uber.org/zap"
)

// State is the sub-flow's current position. The only allowed exits are
// forward on success, back to collecting_fields on validation failure, or
// to failed on an unrecoverable gateway error.
type State string

const (
	StateInactive     State = "inactive"
	StateCollecting   State = "collecting_fields"
	StateValidating   State = "validating"
	StateFetching     State = "fetching_availability"
	StateSlotSelected State = "slot_selected"
	StateSubmitting   State = "submitting"
	StateConfirmed    State = "confirmed"
	StateFailed       State = "failed"
)

// Controller collects booking fields, validates them, fetches
// availability and submits the booking. One controller serves one
// conversation session.
type Controller struct {
	gw     gateway.Gateway
	logger *zap.Logger

	mu              sync.Mutex
	state           State
	draft           models.BookingDraft
	fieldErrors     map[string]*models.ValidationError
	availability    []models.TimeSlot
	availabilityGen int
	selected        *models.TimeSlot
	submitInFlight  bool
	fetchInFlight   bool
	result          *models.BookingResult
}

func NewController(gw gateway.Gateway, logger *zap.Logger) *Controller {
	return &Controller{
		gw:          gw,
		logger:      logger,
		state:       StateInactive,
		fieldErrors: make(map[string]*models.ValidationError),
	}
}

// Activate enters the sub-flow, optionally seeding the draft with fields
// extracted from the conversation. Invalid seeded values are kept but
// recorded as field errors.
func (c *Controller) Activate(seed *models.BookingDraft) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = StateCollecting
	c.fieldErrors = make(map[string]*models.ValidationError)
	c.availability = nil
	c.availabilityGen = 0
	c.selected = nil
	c.result = nil
	if seed != nil {
		c.draft = *seed
	} else {
		c.draft = models.BookingDraft{}
	}
	for _, field := range models.RequiredDraftFields {
		if value := c.draft.Field(field); value != "" {
			if ve := ValidateField(field, value); ve != nil {
				c.fieldErrors[field] = ve
			}
		}
	}
}

func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state != StateInactive
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Draft() models.BookingDraft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

func (c *Controller) Result() *models.BookingResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.result
}

// FieldErrors returns a copy of the outstanding field-level errors.
func (c *Controller) FieldErrors() map[string]*models.ValidationError {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]*models.ValidationError, len(c.fieldErrors))
	for k, v := range c.fieldErrors {
		out[k] = v
	}
	return out
}

// UpdateField mutates one draft field and re-validates that field only.
// Already-valid fields are never discarded. Returns the field's
// validation error, if any.
func (c *Controller) UpdateField(name, value string) *models.ValidationError {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.setField(name, value)
	if ve := ValidateField(name, value); ve != nil {
		c.fieldErrors[name] = ve
		if c.state == StateValidating {
			c.state = StateCollecting
		}
		return ve
	}
	delete(c.fieldErrors, name)
	return nil
}

func (c *Controller) setField(name, value string) {
	switch name {
	case models.FieldCustomerName:
		c.draft.CustomerName = value
	case models.FieldCustomerEmail:
		c.draft.CustomerEmail = value
	case models.FieldCustomerPhone:
		c.draft.CustomerPhone = value
	case models.FieldServiceType:
		c.draft.ServiceType = value
	case models.FieldPreferredDate:
		c.draft.PreferredDate = value
	case models.FieldPreferredTime:
		c.draft.PreferredTime = value
	case models.FieldNotes:
		c.draft.Notes = value
	case models.FieldDuration:
		if n, err := strconv.Atoi(value); err == nil {
			c.draft.Duration = n
		} else {
			c.draft.Duration = 0
		}
	}
}

// Submittable reports whether every required field passes validation.
func (c *Controller) Submittable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ValidateDraft(c.draft).IsValid
}

// NextMissingField returns the first required field that is empty or
// invalid, or "" when the draft is complete. The orchestrator uses it to
// phrase the next question.
func (c *Controller) NextMissingField() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, field := range models.RequiredDraftFields {
		value := c.draft.Field(field)
		if value == "" || ValidateField(field, value) != nil {
			return field
		}
	}
	return ""
}

// FetchSlots validates the draft, then asks the gateway for availability.
// An empty result is a valid answer, distinct from a gateway failure. The
// returned generation token must accompany the subsequent SelectSlot.
func (c *Controller) FetchSlots(ctx context.Context, date, serviceType string) ([]models.TimeSlot, int, error) {
	c.mu.Lock()
	if c.fetchInFlight {
		c.mu.Unlock()
		return nil, 0, &OperationInProgressError{Op: "fetchSlots"}
	}
	c.state = StateValidating
	if result := ValidateDraft(c.draft); !result.IsValid {
		for _, ve := range result.Errors {
			c.fieldErrors[ve.Field] = ve
		}
		c.state = StateCollecting
		first := result.Errors[0]
		c.mu.Unlock()
		return nil, 0, first
	}
	c.state = StateFetching
	c.fetchInFlight = true
	c.mu.Unlock()

	slots, err := c.gw.GetAvailableSlots(ctx, date, serviceType)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchInFlight = false
	if err != nil {
		c.logger.Warn("availability fetch failed", zap.String("date", date), zap.Error(err))
		c.state = StateCollecting
		return nil, 0, err
	}
	c.availability = slots
	c.availabilityGen++
	c.selected = nil
	// Empty availability keeps the sub-state at fetching_availability so
	// the user can pick another date.
	return slots, c.availabilityGen, nil
}

// SelectSlot picks a slot from the availability result identified by gen.
// A slot from any earlier fetch fails with StaleAvailabilityError.
func (c *Controller) SelectSlot(slotID string, gen int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.availabilityGen {
		return &StaleAvailabilityError{SlotID: slotID}
	}
	for i := range c.availability {
		if c.availability[i].ID == slotID {
			if !c.availability[i].Available {
				return &StaleAvailabilityError{SlotID: slotID}
			}
			slot := c.availability[i]
			c.selected = &slot
			c.state = StateSlotSelected
			return nil
		}
	}
	return &StaleAvailabilityError{SlotID: slotID}
}

func (c *Controller) SelectedSlot() *models.TimeSlot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.selected == nil {
		return nil
	}
	slot := *c.selected
	return &slot
}

// Submit creates the booking. Booking creation is at-most-once per draft:
// a second call while one is in flight fails with OperationInProgress, and
// a call after confirmation returns the stored result. On gateway failure
// the draft is preserved for retry.
func (c *Controller) Submit(ctx context.Context) (*models.BookingResult, error) {
	c.mu.Lock()
	if c.state == StateConfirmed {
		result := c.result
		c.mu.Unlock()
		return result, nil
	}
	if c.submitInFlight {
		c.mu.Unlock()
		return nil, &OperationInProgressError{Op: "submit"}
	}
	if c.state != StateSlotSelected {
		state := c.state
		c.mu.Unlock()
		return nil, &BookingFailedError{Message: "no slot selected (current state: " + string(state) + ")"}
	}
	req, err := c.buildRequestLocked()
	if err != nil {
		c.state = StateCollecting
		c.mu.Unlock()
		return nil, err
	}
	c.state = StateSubmitting
	c.submitInFlight = true
	c.mu.Unlock()

	result, gerr := c.gw.CreateBooking(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitInFlight = false
	if gerr != nil {
		var ve *models.ValidationError
		if errors.As(gerr, &ve) {
			c.fieldErrors[ve.Field] = ve
			c.state = StateCollecting
			return nil, ve
		}
		c.state = StateFailed
		return nil, &BookingFailedError{Message: gerr.Error(), Err: gerr}
	}
	if result.Status == models.BookingFailed {
		c.state = StateFailed
		c.result = result
		return result, &BookingFailedError{Message: result.ErrorMessage}
	}
	c.state = StateConfirmed
	c.result = result
	return result, nil
}

// buildRequestLocked converts the validated draft plus selected slot into
// a BookingRequest. Caller holds the lock.
func (c *Controller) buildRequestLocked() (models.BookingRequest, error) {
	dateTime, err := time.Parse("2006-01-02 15:04", c.draft.PreferredDate+" "+c.draft.PreferredTime)
	if err != nil {
		return models.BookingRequest{}, &models.ValidationError{
			Field: models.FieldPreferredDate, Code: "invalid_date", Message: "could not interpret the requested date and time",
		}
	}
	req := models.BookingRequest{
		CustomerInfo: models.CustomerInfo{
			Name:  c.draft.CustomerName,
			Email: c.draft.CustomerEmail,
			Phone: c.draft.CustomerPhone,
		},
		ServiceType:       c.draft.ServiceType,
		PreferredDateTime: dateTime,
		Duration:          c.draft.Duration,
		Notes:             c.draft.Notes,
		Source:            "chat",
	}
	if c.selected != nil {
		req.SlotID = c.selected.ID
		req.PreferredDateTime = c.selected.StartTime
	}
	return req, nil
}

// Cancel abandons the sub-flow at any sub-state and discards the draft.
func (c *Controller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateInactive
	c.draft = models.BookingDraft{}
	c.fieldErrors = make(map[string]*models.ValidationError)
	c.availability = nil
	c.availabilityGen = 0
	c.selected = nil
	c.result = nil
}
