package models

// WidgetView is the widget's current screen.
type WidgetView string

const (
	ViewChat         WidgetView = "chat"
	ViewBookingModal WidgetView = "booking_modal"
	ViewCalendar     WidgetView = "calendar_view"
)

// ConnectionStatus reflects the health of the gateway connection.
type ConnectionStatus string

const (
	StatusConnected    ConnectionStatus = "connected"
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusReconnecting ConnectionStatus = "reconnecting"
)

// ErrorState is a user-visible error carried on the widget snapshot.
type ErrorState struct {
	Type        string `json:"type"` // "network", "api", "validation", or "booking"
	Message     string `json:"message"`
	IsRetryable bool   `json:"isRetryable"`
	RetryCount  int    `json:"retryCount"`
}

// WidgetState is the presentation-facing snapshot. It is derived by the
// orchestrator after every state-affecting event, never mutated by the
// presentation layer.
type WidgetState struct {
	IsVisible        bool             `json:"isVisible"`
	IsMinimized      bool             `json:"isMinimized"`
	CurrentView      WidgetView       `json:"currentView"`
	IsLoading        bool             `json:"isLoading"`
	ConnectionStatus ConnectionStatus `json:"connectionStatus"`
	ErrorState       *ErrorState      `json:"errorState,omitempty"`
}
