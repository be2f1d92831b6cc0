package conversation

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"chatwidget/models"
)

// Service types the assistant can recognize in free text. The widget's
// form view is not limited to these; they only drive extraction.
var knownServiceTypes = []string{
	"consultation",
	"demo",
	"onboarding",
	"training",
	"support call",
}

var bookingKeywords = []string{"book", "schedule", "appointment", "reserve", "reschedule"}
var supportKeywords = []string{"help", "support", "problem", "issue", "broken", "not working", "error"}
var informationKeywords = []string{"what", "how", "when", "where", "price", "cost", "hours", "info"}

// DetectIntent classifies one user turn with keyword matching.
func DetectIntent(text string) models.Intent {
	lower := strings.ToLower(text)
	for _, kw := range bookingKeywords {
		if strings.Contains(lower, kw) {
			return models.IntentBooking
		}
	}
	for _, kw := range supportKeywords {
		if strings.Contains(lower, kw) {
			return models.IntentSupport
		}
	}
	for _, kw := range informationKeywords {
		if strings.Contains(lower, kw) {
			return models.IntentInformation
		}
	}
	return models.IntentNone
}

var clockPattern = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
var clock24Pattern = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
var isoDatePattern = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)

// ExtractTime pulls a preferred time out of free text, normalized to
// "15:04". Returns "" when no time is present.
func ExtractTime(text string) string {
	if m := clockPattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ToLower(m[3])
		if meridiem == "pm" && hour < 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
		if hour > 23 || minute > 59 {
			return ""
		}
		return twoDigits(hour) + ":" + twoDigits(minute)
	}
	if m := clock24Pattern.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		return twoDigits(hour) + ":" + m[2]
	}
	return ""
}

// ExtractDate pulls a preferred date out of free text, normalized to
// "2006-01-02" relative to now. Returns "" when no date is present.
func ExtractDate(text string, now time.Time) string {
	lower := strings.ToLower(text)
	if m := isoDatePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	switch {
	case strings.Contains(lower, "day after tomorrow"):
		return now.AddDate(0, 0, 2).Format("2006-01-02")
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1).Format("2006-01-02")
	case strings.Contains(lower, "today"):
		return now.Format("2006-01-02")
	}
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.Contains(lower, strings.ToLower(wd.String())) {
			days := (int(wd) - int(now.Weekday()) + 7) % 7
			if days == 0 {
				days = 7
			}
			return now.AddDate(0, 0, days).Format("2006-01-02")
		}
	}
	return ""
}

// ExtractServiceType matches a known service type mentioned in the text.
func ExtractServiceType(text string) string {
	lower := strings.ToLower(text)
	for _, svc := range knownServiceTypes {
		if strings.Contains(lower, svc) {
			return svc
		}
	}
	return ""
}

// ExtractBookingFields seeds a draft from whatever booking details one
// user turn already carries.
func ExtractBookingFields(text string, now time.Time) *models.BookingDraft {
	draft := &models.BookingDraft{
		ServiceType:   ExtractServiceType(text),
		PreferredDate: ExtractDate(text, now),
		PreferredTime: ExtractTime(text),
	}
	return draft
}

func twoDigits(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
