package models

import "time"

// MessageSender identifies which side of the conversation produced a message.
type MessageSender string

const (
	SenderUser      MessageSender = "user"
	SenderAssistant MessageSender = "assistant"
)

// MessageType distinguishes plain text from structured transcript entries.
type MessageType string

const (
	MessageText           MessageType = "text"
	MessageBookingSummary MessageType = "booking_summary"
	MessageCalendarPicker MessageType = "calendar_picker"
	MessageError          MessageType = "error"
)

// Intent is the inferred purpose of the current conversation turn.
type Intent string

const (
	IntentBooking     Intent = "booking"
	IntentSupport     Intent = "support"
	IntentInformation Intent = "information"
	IntentNone        Intent = "none"
)

// ChatMessage is a single transcript entry. Immutable once appended;
// insertion order is display order.
type ChatMessage struct {
	ID        string            `json:"id"`
	Content   string            `json:"content"`
	Sender    MessageSender     `json:"sender"`
	Timestamp time.Time         `json:"timestamp"`
	Type      MessageType       `json:"type"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// CustomerInfo accumulates what the visitor has told us across turns.
type CustomerInfo struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Phone    string `json:"phone,omitempty"`
	Company  string `json:"company,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// BookingReference is a read-mostly pointer to a past booking.
type BookingReference struct {
	BookingID   string    `json:"bookingId"`
	Date        time.Time `json:"date"`
	ServiceType string    `json:"serviceType"`
	Status      string    `json:"status"` // "confirmed", "cancelled", or "completed"
}

// ConversationContext carries the conversational memory for a session.
// BookingInProgress is non-nil only while the booking flow is the active
// handler and CurrentIntent is IntentBooking.
type ConversationContext struct {
	CustomerInfo      CustomerInfo       `json:"customerInfo"`
	CurrentIntent     Intent             `json:"currentIntent"`
	BookingInProgress *BookingDraft      `json:"bookingInProgress,omitempty"`
	PreviousBookings  []BookingReference `json:"previousBookings,omitempty"`
}

// ConversationSession is one continuous conversation between a visitor and
// the assistant, bounded by the idle timeout.
type ConversationSession struct {
	SessionID    string              `json:"sessionId"`
	UserID       string              `json:"userId,omitempty"`
	StartTime    time.Time           `json:"startTime"`
	LastActivity time.Time           `json:"lastActivity"`
	Messages     []ChatMessage       `json:"messages"`
	Context      ConversationContext `json:"context"`
	IsActive     bool                `json:"isActive"`
}

// Clone returns a deep copy so callers cannot mutate store-owned state.
func (s *ConversationSession) Clone() *ConversationSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]ChatMessage, len(s.Messages))
	copy(out.Messages, s.Messages)
	if s.Context.BookingInProgress != nil {
		draft := *s.Context.BookingInProgress
		out.Context.BookingInProgress = &draft
	}
	if s.Context.PreviousBookings != nil {
		out.Context.PreviousBookings = make([]BookingReference, len(s.Context.PreviousBookings))
		copy(out.Context.PreviousBookings, s.Context.PreviousBookings)
	}
	return &out
}
