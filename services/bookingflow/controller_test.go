package bookingflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"chatwidget/models"
	"chatwidget/services/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubGateway overrides only the calls the controller makes; anything else
// panics via the embedded nil interface.
type stubGateway struct {
	gateway.Gateway

	mu          sync.Mutex
	slotCalls   int
	createCalls int
	slotsFn     func(date, serviceType string) ([]models.TimeSlot, error)
	createFn    func(req models.BookingRequest) (*models.BookingResult, error)
}

func (s *stubGateway) GetAvailableSlots(ctx context.Context, date, serviceType string) ([]models.TimeSlot, error) {
	s.mu.Lock()
	s.slotCalls++
	s.mu.Unlock()
	return s.slotsFn(date, serviceType)
}

func (s *stubGateway) CreateBooking(ctx context.Context, req models.BookingRequest) (*models.BookingResult, error) {
	s.mu.Lock()
	s.createCalls++
	s.mu.Unlock()
	return s.createFn(req)
}

func (s *stubGateway) creates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

func completeDraft() *models.BookingDraft {
	return &models.BookingDraft{
		CustomerName:  "Ada Lovelace",
		CustomerEmail: "ada@example.com",
		ServiceType:   "consultation",
		PreferredDate: "2026-09-15",
		PreferredTime: "14:00",
		Duration:      30,
	}
}

func oneSlot() []models.TimeSlot {
	start, _ := time.Parse("2006-01-02 15:04", "2026-09-15 14:00")
	return []models.TimeSlot{{
		ID:          "slot-1",
		StartTime:   start,
		EndTime:     start.Add(30 * time.Minute),
		Available:   true,
		ServiceType: "consultation",
		Duration:    30,
	}}
}

func confirmedResult() *models.BookingResult {
	start, _ := time.Parse("2006-01-02 15:04", "2026-09-15 14:00")
	return &models.BookingResult{
		BookingID:          "bk-42",
		Status:             models.BookingConfirmed,
		ConfirmationNumber: "CONF-42",
		AppointmentDetails: models.AppointmentDetails{
			ServiceType: "consultation",
			DateTime:    start,
			Duration:    30,
		},
	}
}

func newTestController(gw gateway.Gateway) *Controller {
	return NewController(gw, zap.NewNop())
}

func TestActivateKeepsInvalidSeedValues(t *testing.T) {
	c := newTestController(&stubGateway{})
	seed := completeDraft()
	seed.CustomerEmail = "broken"
	c.Activate(seed)

	assert.Equal(t, StateCollecting, c.State())
	// The value is kept so the user can correct it, but flagged.
	assert.Equal(t, "broken", c.Draft().CustomerEmail)
	errs := c.FieldErrors()
	require.Contains(t, errs, models.FieldCustomerEmail)
	assert.Equal(t, "invalid_email", errs[models.FieldCustomerEmail].Code)
}

func TestUpdateFieldNeverDiscardsOtherFields(t *testing.T) {
	c := newTestController(&stubGateway{})
	c.Activate(completeDraft())

	ve := c.UpdateField(models.FieldCustomerEmail, "still-broken")
	require.NotNil(t, ve)

	draft := c.Draft()
	assert.Equal(t, "Ada Lovelace", draft.CustomerName)
	assert.Equal(t, "consultation", draft.ServiceType)
	assert.Equal(t, "2026-09-15", draft.PreferredDate)
}

func TestUpdateFieldIdempotent(t *testing.T) {
	c := newTestController(&stubGateway{})
	c.Activate(nil)

	first := c.UpdateField(models.FieldCustomerEmail, "ada@example.com")
	second := c.UpdateField(models.FieldCustomerEmail, "ada@example.com")
	assert.Nil(t, first)
	assert.Nil(t, second)
	assert.Equal(t, "ada@example.com", c.Draft().CustomerEmail)

	firstErr := c.UpdateField(models.FieldCustomerEmail, "broken")
	draftAfterFirst := c.Draft()
	secondErr := c.UpdateField(models.FieldCustomerEmail, "broken")
	require.NotNil(t, firstErr)
	require.NotNil(t, secondErr)
	assert.Equal(t, firstErr.Code, secondErr.Code)
	assert.Equal(t, draftAfterFirst, c.Draft())
}

func TestNextMissingFieldWalksRequiredOrder(t *testing.T) {
	c := newTestController(&stubGateway{})
	c.Activate(nil)

	assert.Equal(t, models.FieldCustomerName, c.NextMissingField())
	assert.Nil(t, c.UpdateField(models.FieldCustomerName, "Ada Lovelace"))
	assert.Equal(t, models.FieldCustomerEmail, c.NextMissingField())
	assert.Nil(t, c.UpdateField(models.FieldCustomerEmail, "ada@example.com"))
	assert.Equal(t, models.FieldServiceType, c.NextMissingField())
}

func TestFetchSlotsRejectsIncompleteDraft(t *testing.T) {
	gw := &stubGateway{slotsFn: func(string, string) ([]models.TimeSlot, error) {
		t.Fatal("gateway must not be called for an invalid draft")
		return nil, nil
	}}
	c := newTestController(gw)
	c.Activate(nil)

	_, _, err := c.FetchSlots(context.Background(), "", "")
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StateCollecting, c.State())
}

func TestFetchSlotsEmptyIsNotAnError(t *testing.T) {
	gw := &stubGateway{slotsFn: func(string, string) ([]models.TimeSlot, error) {
		return []models.TimeSlot{}, nil
	}}
	c := newTestController(gw)
	c.Activate(completeDraft())

	slots, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	assert.Empty(t, slots)
	assert.Equal(t, 1, gen)
	// The user can pick another date; the sub-flow stays at fetching.
	assert.Equal(t, StateFetching, c.State())
}

func TestSelectSlotStaleGeneration(t *testing.T) {
	gw := &stubGateway{slotsFn: func(string, string) ([]models.TimeSlot, error) {
		return oneSlot(), nil
	}}
	c := newTestController(gw)
	c.Activate(completeDraft())

	_, firstGen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	_, secondGen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.NotEqual(t, firstGen, secondGen)

	var stale *StaleAvailabilityError
	assert.ErrorAs(t, c.SelectSlot("slot-1", firstGen), &stale)
	assert.NoError(t, c.SelectSlot("slot-1", secondGen))
	assert.Equal(t, StateSlotSelected, c.State())
}

func TestSelectSlotUnknownOrUnavailable(t *testing.T) {
	slots := oneSlot()
	slots[0].Available = false
	gw := &stubGateway{slotsFn: func(string, string) ([]models.TimeSlot, error) {
		return slots, nil
	}}
	c := newTestController(gw)
	c.Activate(completeDraft())

	_, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)

	var stale *StaleAvailabilityError
	assert.ErrorAs(t, c.SelectSlot("slot-1", gen), &stale)
	assert.ErrorAs(t, c.SelectSlot("no-such-slot", gen), &stale)
}

func TestSubmitIsAtMostOnce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{
		slotsFn: func(string, string) ([]models.TimeSlot, error) { return oneSlot(), nil },
		createFn: func(models.BookingRequest) (*models.BookingResult, error) {
			close(started)
			<-release
			return confirmedResult(), nil
		},
	}
	c := newTestController(gw)
	c.Activate(completeDraft())
	_, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.NoError(t, c.SelectSlot("slot-1", gen))

	firstDone := make(chan struct{})
	go func() {
		defer close(firstDone)
		_, err := c.Submit(context.Background())
		assert.NoError(t, err)
	}()

	<-started
	_, err = c.Submit(context.Background())
	var inProgress *OperationInProgressError
	require.ErrorAs(t, err, &inProgress)

	close(release)
	<-firstDone
	assert.Equal(t, 1, gw.creates())
	assert.Equal(t, StateConfirmed, c.State())
}

func TestSubmitAfterConfirmReturnsStoredResult(t *testing.T) {
	gw := &stubGateway{
		slotsFn:  func(string, string) ([]models.TimeSlot, error) { return oneSlot(), nil },
		createFn: func(models.BookingRequest) (*models.BookingResult, error) { return confirmedResult(), nil },
	}
	c := newTestController(gw)
	c.Activate(completeDraft())
	_, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.NoError(t, c.SelectSlot("slot-1", gen))

	first, err := c.Submit(context.Background())
	require.NoError(t, err)
	second, err := c.Submit(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, 1, gw.creates())
}

func TestSubmitFailurePreservesDraft(t *testing.T) {
	gw := &stubGateway{
		slotsFn: func(string, string) ([]models.TimeSlot, error) { return oneSlot(), nil },
		createFn: func(models.BookingRequest) (*models.BookingResult, error) {
			return nil, gateway.NewNetworkError("createBooking", errors.New("boom"))
		},
	}
	c := newTestController(gw)
	c.Activate(completeDraft())
	_, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.NoError(t, c.SelectSlot("slot-1", gen))

	_, err = c.Submit(context.Background())
	var failed *BookingFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, StateFailed, c.State())
	// The draft survives so the user retries without re-entering data.
	assert.Equal(t, "ada@example.com", c.Draft().CustomerEmail)
}

func TestSubmitRemoteValidationReturnsToCollecting(t *testing.T) {
	gw := &stubGateway{
		slotsFn: func(string, string) ([]models.TimeSlot, error) { return oneSlot(), nil },
		createFn: func(models.BookingRequest) (*models.BookingResult, error) {
			return nil, &models.ValidationError{
				Field: models.FieldCustomerEmail, Code: "domain_blocked", Message: "email domain is not accepted",
			}
		},
	}
	c := newTestController(gw)
	c.Activate(completeDraft())
	_, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.NoError(t, c.SelectSlot("slot-1", gen))

	_, err = c.Submit(context.Background())
	var ve *models.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, StateCollecting, c.State())
	// Remote validation errors surface next to the field like local ones.
	assert.Contains(t, c.FieldErrors(), models.FieldCustomerEmail)
}

func TestSubmitWithoutSlotFails(t *testing.T) {
	c := newTestController(&stubGateway{})
	c.Activate(completeDraft())

	_, err := c.Submit(context.Background())
	var failed *BookingFailedError
	require.ErrorAs(t, err, &failed)
}

func TestCancelResetsEverything(t *testing.T) {
	gw := &stubGateway{slotsFn: func(string, string) ([]models.TimeSlot, error) { return oneSlot(), nil }}
	c := newTestController(gw)
	c.Activate(completeDraft())
	_, gen, err := c.FetchSlots(context.Background(), "2026-09-15", "consultation")
	require.NoError(t, err)
	require.NoError(t, c.SelectSlot("slot-1", gen))

	c.Cancel()
	assert.Equal(t, StateInactive, c.State())
	assert.Equal(t, models.BookingDraft{}, c.Draft())
	assert.Nil(t, c.SelectedSlot())
}
