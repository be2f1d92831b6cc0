package conversation

import (
	"testing"
	"time"

	"chatwidget/models"

	"github.com/stretchr/testify/assert"
)

func TestDetectIntent(t *testing.T) {
	cases := []struct {
		text string
		want models.Intent
	}{
		{"I'd like to book a consultation", models.IntentBooking},
		{"Can we schedule something for next week?", models.IntentBooking},
		{"My integration is broken", models.IntentSupport},
		{"What are your opening hours?", models.IntentInformation},
		{"Nice weather today", models.IntentNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, DetectIntent(tc.text), "text: %q", tc.text)
	}
}

func TestExtractTime(t *testing.T) {
	assert.Equal(t, "14:00", ExtractTime("tomorrow at 2pm"))
	assert.Equal(t, "14:30", ExtractTime("around 2:30 pm works"))
	assert.Equal(t, "09:15", ExtractTime("09:15 sharp"))
	assert.Equal(t, "00:00", ExtractTime("12am if possible"))
	assert.Equal(t, "", ExtractTime("whenever"))
}

func TestExtractDate(t *testing.T) {
	// A fixed Monday keeps weekday arithmetic honest.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, "2026-09-15", ExtractDate("on 2026-09-15 please", now))
	assert.Equal(t, "2026-09-01", ExtractDate("tomorrow", now))
	assert.Equal(t, "2026-09-02", ExtractDate("the day after tomorrow", now))
	assert.Equal(t, "2026-08-31", ExtractDate("today if you can", now))
	assert.Equal(t, "2026-09-04", ExtractDate("friday would be great", now))
	// The same weekday means next week, not today.
	assert.Equal(t, "2026-09-07", ExtractDate("monday", now))
	assert.Equal(t, "", ExtractDate("soon", now))
}

func TestExtractBookingFields(t *testing.T) {
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	draft := ExtractBookingFields("I'd like to book a consultation for tomorrow at 2pm", now)

	assert.Equal(t, "consultation", draft.ServiceType)
	assert.Equal(t, "2026-09-01", draft.PreferredDate)
	assert.Equal(t, "14:00", draft.PreferredTime)
	assert.Empty(t, draft.CustomerName)
}
