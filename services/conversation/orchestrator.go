// Package conversation drives message exchange ordering, intent handoff,
// and the transitions into and out of the booking sub-flow.
package conversation

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"chatwidget/models"
	"chatwidget/services/bookingflow"
	"chatwidget/services/gateway"
	"chatwidget/services/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BookingHistory is the read-mostly store behind previousBookings.
type BookingHistory interface {
	ListByEmail(ctx context.Context, email string) ([]models.BookingReference, error)
	Record(ctx context.Context, email string, ref models.BookingReference) error
}

// Tracker receives analytics events, fire-and-forget.
type Tracker interface {
	Track(event models.AnalyticsEvent)
}

// Config is the closed set of options the orchestrator recognizes. All
// configuration is passed explicitly at construction; the engine keeps no
// ambient state.
type Config struct {
	WelcomeMessage string
	EnableVoice    bool
	// ConfirmAbandon controls whether leaving the booking sub-flow with an
	// unrelated message asks for confirmation before discarding the draft.
	ConfirmAbandon bool
}

// Orchestrator owns one conversation session. User input, gateway
// responses and timers are all funneled through a single FIFO event
// worker, so no two mutations of the session ever run concurrently and
// user turns are processed strictly in submission order.
type Orchestrator struct {
	cfg     Config
	store   session.Store
	gw      gateway.Gateway
	flow    *bookingflow.Controller
	history BookingHistory
	tracker Tracker
	logger  *zap.Logger

	generation uint64 // bumped by Clear/close; discriminates stale in-flight results

	mu              sync.Mutex
	sessionID       string
	connStatus      models.ConnectionStatus
	visible         bool
	minimized       bool
	loading         bool
	errState        *models.ErrorState
	awaitingAbandon bool
	pendingText     string

	events chan func()
	wg     sync.WaitGroup
	once   sync.Once
	done   chan struct{}

	subsMu sync.Mutex
	subs   map[int]func(models.WidgetState)
	subSeq int
}

func NewOrchestrator(cfg Config, store session.Store, gw gateway.Gateway, history BookingHistory, tracker Tracker, logger *zap.Logger) *Orchestrator {
	o := &Orchestrator{
		cfg:        cfg,
		store:      store,
		gw:         gw,
		flow:       bookingflow.NewController(gw, logger),
		history:    history,
		tracker:    tracker,
		logger:     logger,
		connStatus: models.StatusReconnecting,
		visible:    true,
		events:     make(chan func(), 128),
		done:       make(chan struct{}),
		subs:       make(map[int]func(models.WidgetState)),
	}
	if coord, ok := gw.(*gateway.Coordinator); ok {
		coord.OnStatusChange(o.setConnStatus)
	}
	go o.loop()
	return o
}

func (o *Orchestrator) loop() {
	for {
		select {
		case fn := <-o.events:
			fn()
			o.publish()
			o.wg.Done()
		case <-o.done:
			// Drop anything still queued so Wait cannot hang on a
			// closed orchestrator.
			for {
				select {
				case <-o.events:
					o.wg.Done()
				default:
					return
				}
			}
		}
	}
}

func (o *Orchestrator) enqueue(fn func()) {
	o.wg.Add(1)
	select {
	case o.events <- fn:
	case <-o.done:
		o.wg.Done()
	}
}

func (o *Orchestrator) runSync(fn func()) {
	doneCh := make(chan struct{})
	o.enqueue(func() {
		defer close(doneCh)
		fn()
	})
	// After Close the worker is gone and fn may never run; bail out
	// instead of blocking the caller forever.
	select {
	case <-doneCh:
	case <-o.done:
	}
}

// Wait blocks until every queued event has been processed.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Close stops the event worker. In-flight gateway results are discarded.
func (o *Orchestrator) Close() {
	atomic.AddUint64(&o.generation, 1)
	o.once.Do(func() { close(o.done) })
}

func (o *Orchestrator) stale(gen uint64) bool {
	return atomic.LoadUint64(&o.generation) != gen
}

// Start binds the orchestrator to a session. When resumeID names a
// stored session it is resumed with its transcript, even across an
// engine restart; an expired or unknown id falls back to a fresh
// gateway-issued session (the expired transcript is carried forward).
func (o *Orchestrator) Start(ctx context.Context, resumeID string) (*models.ConversationSession, error) {
	var sess *models.ConversationSession
	var err error
	o.runSync(func() {
		sess, err = o.startSession(ctx, resumeID)
	})
	return sess, err
}

func (o *Orchestrator) startSession(ctx context.Context, resumeID string) (*models.ConversationSession, error) {
	o.setConnStatus(models.StatusReconnecting)

	if resumeID != "" {
		o.mu.Lock()
		o.sessionID = resumeID
		o.mu.Unlock()
	}
	sid, err := o.ensureActiveSession(ctx)
	if err != nil {
		o.reportError(err)
		return nil, err
	}
	o.setConnStatus(models.StatusConnected)

	sess, err := o.store.Get(ctx, sid)
	if err != nil {
		return nil, err
	}
	if len(sess.Messages) == 0 && o.cfg.WelcomeMessage != "" {
		o.appendAssistant(ctx, sid, o.cfg.WelcomeMessage, models.MessageText, nil)
	}
	if o.history != nil && sess.Context.CustomerInfo.Email != "" {
		if refs, herr := o.history.ListByEmail(ctx, sess.Context.CustomerInfo.Email); herr == nil && len(refs) > 0 {
			_ = o.store.UpdateContext(ctx, sid, session.ContextPatch{PreviousBookings: refs})
		}
	}
	o.track("session_started", map[string]string{"sessionId": sid})
	return o.store.Get(ctx, sid)
}

// SubmitUserText queues one user turn. Concurrent calls are processed
// strictly in submission order.
func (o *Orchestrator) SubmitUserText(text string) {
	gen := atomic.LoadUint64(&o.generation)
	o.enqueue(func() {
		o.handleUserText(context.Background(), text, gen)
	})
}

// RequestVoiceTranscription transcribes the clip, then behaves like
// SubmitUserText with the transcribed text. A transcription failure lands
// in the transcript as an error-typed message, never silently dropped.
func (o *Orchestrator) RequestVoiceTranscription(audio []byte) {
	gen := atomic.LoadUint64(&o.generation)
	o.enqueue(func() {
		ctx := context.Background()
		sid, err := o.ensureActiveSession(ctx)
		if err != nil {
			o.reportError(err)
			return
		}
		o.setLoading(true)
		result, verr := o.gw.ProcessVoiceInput(ctx, audio)
		o.setLoading(false)
		if o.stale(gen) {
			return
		}
		if verr != nil {
			o.logger.Warn("voice transcription failed", zap.Error(verr))
			o.appendAssistant(ctx, sid, "Sorry, I couldn't understand that voice message. Could you type it instead?", models.MessageError, nil)
			o.reportError(verr)
			return
		}
		o.handleUserText(ctx, result.Text, gen)
	})
}

// ReceiveAssistantReply feeds an out-of-band assistant response (e.g. a
// push transport) through the same ordered pipeline.
func (o *Orchestrator) ReceiveAssistantReply(resp *gateway.ChatResponse) {
	gen := atomic.LoadUint64(&o.generation)
	o.enqueue(func() {
		if o.stale(gen) {
			return
		}
		ctx := context.Background()
		o.mu.Lock()
		sid := o.sessionID
		o.mu.Unlock()
		o.handleAssistantReply(ctx, sid, resp)
	})
}

func (o *Orchestrator) handleUserText(ctx context.Context, text string, gen uint64) {
	if o.stale(gen) {
		return
	}
	sid, err := o.ensureActiveSession(ctx)
	if err != nil {
		o.reportError(err)
		return
	}
	o.clearError()
	o.appendUser(ctx, sid, text)
	o.track("message_sent", map[string]string{"sessionId": sid})

	o.mu.Lock()
	awaiting := o.awaitingAbandon
	pending := o.pendingText
	o.mu.Unlock()

	if awaiting {
		o.resolveAbandon(ctx, sid, text, pending, gen)
		return
	}

	if o.flow.Active() {
		if isCancelRequest(text) {
			o.abandonBooking(ctx, sid)
			o.appendAssistant(ctx, sid, "No problem, I've cancelled that booking. Is there anything else I can help with?", models.MessageText, nil)
			return
		}
		intent := DetectIntent(text)
		if intent == models.IntentSupport || intent == models.IntentInformation {
			if o.cfg.ConfirmAbandon {
				o.mu.Lock()
				o.awaitingAbandon = true
				o.pendingText = text
				o.mu.Unlock()
				o.appendAssistant(ctx, sid, "You have a booking in progress. Do you want to discard it and switch topics? (yes/no)", models.MessageText, nil)
				return
			}
			o.abandonBooking(ctx, sid)
		} else {
			o.handleBookingTurn(ctx, sid, text, gen)
			return
		}
	}

	if DetectIntent(text) == models.IntentBooking {
		o.activateBooking(ctx, sid, ExtractBookingFields(text, time.Now()))
		return
	}

	o.handleChat(ctx, sid, text, gen)
}

func (o *Orchestrator) resolveAbandon(ctx context.Context, sid, answer, pending string, gen uint64) {
	o.mu.Lock()
	o.awaitingAbandon = false
	o.pendingText = ""
	o.mu.Unlock()

	if isAffirmative(answer) {
		o.abandonBooking(ctx, sid)
		o.handleChat(ctx, sid, pending, gen)
		return
	}
	field := o.flow.NextMissingField()
	prompt := "Okay, let's keep going with your booking."
	if field != "" {
		prompt += " " + promptForField(field)
	}
	o.appendAssistant(ctx, sid, prompt, models.MessageText, nil)
}

// abandonBooking discards the draft and returns the conversation to free
// chat.
func (o *Orchestrator) abandonBooking(ctx context.Context, sid string) {
	o.flow.Cancel()
	intent := models.IntentNone
	_ = o.store.UpdateContext(ctx, sid, session.ContextPatch{CurrentIntent: &intent, ClearBooking: true})
	o.track("booking_abandoned", map[string]string{"sessionId": sid})
}

// handleBookingTurn interprets a user turn as the answer to the next
// missing draft field.
func (o *Orchestrator) handleBookingTurn(ctx context.Context, sid, text string, gen uint64) {
	field := o.flow.NextMissingField()
	if field == "" {
		o.appendAssistant(ctx, sid, "Please pick one of the available times, or say \"cancel\" to stop.", models.MessageText, nil)
		return
	}
	value := normalizeFieldAnswer(field, text)
	if ve := o.flow.UpdateField(field, value); ve != nil {
		o.appendAssistant(ctx, sid, ve.Message, models.MessageError, map[string]string{"field": ve.Field, "code": ve.Code})
		return
	}
	o.persistDraft(ctx, sid)

	if next := o.flow.NextMissingField(); next != "" {
		o.appendAssistant(ctx, sid, promptForField(next), models.MessageText, nil)
		return
	}
	o.fetchAvailabilityForDraft(ctx, sid, gen)
}

// fetchAvailabilityForDraft moves the sub-flow to availability fetching
// once the draft is complete.
func (o *Orchestrator) fetchAvailabilityForDraft(ctx context.Context, sid string, gen uint64) {
	draft := o.flow.Draft()
	o.setLoading(true)
	slots, fetchGen, err := o.flow.FetchSlots(ctx, draft.PreferredDate, draft.ServiceType)
	o.setLoading(false)
	if o.stale(gen) {
		return
	}
	if err != nil {
		o.appendAssistant(ctx, sid, "I couldn't load availability right now. Please try again in a moment.", models.MessageError, nil)
		o.reportError(err)
		return
	}
	if len(slots) == 0 {
		o.appendAssistant(ctx, sid, "There are no open slots on "+draft.PreferredDate+". Would you like to try another date?", models.MessageText, nil)
		return
	}
	o.appendAssistant(ctx, sid, "Here are the available times, pick one that works for you.", models.MessageCalendarPicker, map[string]string{
		"date":        draft.PreferredDate,
		"serviceType": draft.ServiceType,
		"generation":  strconv.Itoa(fetchGen),
	})
}

// activateBooking enters the booking sub-flow, seeding the draft with
// fields already extracted from the conversation.
func (o *Orchestrator) activateBooking(ctx context.Context, sid string, seed *models.BookingDraft) {
	o.flow.Activate(seed)
	intent := models.IntentBooking
	draft := o.flow.Draft()
	_ = o.store.UpdateContext(ctx, sid, session.ContextPatch{CurrentIntent: &intent, BookingInProgress: &draft})
	o.track("booking_started", map[string]string{"sessionId": sid})

	prompt := "Happy to set that up!"
	if next := o.flow.NextMissingField(); next != "" {
		prompt += " " + promptForField(next)
	}
	o.appendAssistant(ctx, sid, prompt, models.MessageText, nil)
}

func (o *Orchestrator) handleChat(ctx context.Context, sid, text string, gen uint64) {
	o.setLoading(true)
	resp, err := o.gw.SendChatMessage(ctx, text, sid)
	o.setLoading(false)
	if o.stale(gen) {
		return
	}
	if err != nil {
		o.appendAssistant(ctx, sid, "I'm having trouble reaching the server. Please try again shortly.", models.MessageError, nil)
		o.reportError(err)
		return
	}
	o.handleAssistantReply(ctx, sid, resp)
}

// handleAssistantReply appends the assistant message and, when the
// response signals a booking intent, activates the booking sub-flow
// seeded with any extracted fields.
func (o *Orchestrator) handleAssistantReply(ctx context.Context, sid string, resp *gateway.ChatResponse) {
	msg := resp.Message
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Sender == "" {
		msg.Sender = models.SenderAssistant
	}
	if msg.Type == "" {
		msg.Type = models.MessageText
	}
	if err := o.store.AppendMessage(ctx, sid, msg); err != nil {
		o.logger.Warn("failed to append assistant message", zap.Error(err))
	}

	if resp.Intent == models.IntentBooking && !o.flow.Active() {
		seed := &models.BookingDraft{
			ServiceType:   resp.ExtractedFields[models.FieldServiceType],
			PreferredDate: resp.ExtractedFields[models.FieldPreferredDate],
			PreferredTime: resp.ExtractedFields[models.FieldPreferredTime],
		}
		o.activateBooking(ctx, sid, seed)
	}
}

// UpdateBookingField applies a form edit from the presentation layer.
// Opens the sub-flow if the user started from the booking form directly.
func (o *Orchestrator) UpdateBookingField(name, value string) *models.ValidationError {
	var ve *models.ValidationError
	o.runSync(func() {
		ctx := context.Background()
		sid, err := o.ensureActiveSession(ctx)
		if err != nil {
			o.reportError(err)
			return
		}
		if !o.flow.Active() {
			o.flow.Activate(nil)
			intent := models.IntentBooking
			draft := o.flow.Draft()
			_ = o.store.UpdateContext(ctx, sid, session.ContextPatch{CurrentIntent: &intent, BookingInProgress: &draft})
		}
		ve = o.flow.UpdateField(name, value)
		if ve == nil {
			o.persistDraft(ctx, sid)
		}
	})
	return ve
}

// FetchSlots loads availability for the widget's calendar view.
func (o *Orchestrator) FetchSlots(date, serviceType string) ([]models.TimeSlot, int, error) {
	var slots []models.TimeSlot
	var fetchGen int
	var err error
	o.runSync(func() {
		ctx := context.Background()
		o.setLoading(true)
		slots, fetchGen, err = o.flow.FetchSlots(ctx, date, serviceType)
		o.setLoading(false)
		if err != nil {
			o.reportError(err)
		}
	})
	return slots, fetchGen, err
}

// SelectSlot picks a slot from the availability fetch identified by gen.
func (o *Orchestrator) SelectSlot(slotID string, gen int) error {
	var err error
	o.runSync(func() {
		err = o.flow.SelectSlot(slotID, gen)
		if err != nil {
			o.reportError(err)
		}
	})
	return err
}

// SubmitBooking submits the draft. On success a booking_summary message
// lands in the transcript and the widget returns to chat; on failure the
// draft is preserved so the user can retry.
func (o *Orchestrator) SubmitBooking() (*models.BookingResult, error) {
	var result *models.BookingResult
	var err error
	o.runSync(func() {
		ctx := context.Background()
		gen := atomic.LoadUint64(&o.generation)
		sid, serr := o.ensureActiveSession(ctx)
		if serr != nil {
			err = serr
			o.reportError(serr)
			return
		}
		o.setLoading(true)
		result, err = o.flow.Submit(ctx)
		o.setLoading(false)
		if o.stale(gen) {
			result = nil
			return
		}
		if err != nil {
			var inProgress *bookingflow.OperationInProgressError
			if errors.As(err, &inProgress) {
				// Duplicate-suppressed; nothing rendered.
				return
			}
			o.appendAssistant(ctx, sid, "I couldn't complete the booking: "+err.Error(), models.MessageError, nil)
			o.reportError(err)
			return
		}
		o.finishBooking(ctx, sid, result)
	})
	return result, err
}

func (o *Orchestrator) finishBooking(ctx context.Context, sid string, result *models.BookingResult) {
	details := result.AppointmentDetails
	summary := "Your " + details.ServiceType + " is booked for " +
		details.DateTime.Format("Monday, Jan 2 at 15:04") +
		". Confirmation number: " + result.ConfirmationNumber + "."
	o.appendAssistant(ctx, sid, summary, models.MessageBookingSummary, map[string]string{
		"bookingId":          result.BookingID,
		"confirmationNumber": result.ConfirmationNumber,
	})

	ref := models.BookingReference{
		BookingID:   result.BookingID,
		Date:        details.DateTime,
		ServiceType: details.ServiceType,
		Status:      string(result.Status),
	}
	if o.history != nil {
		if err := o.history.Record(ctx, o.flow.Draft().CustomerEmail, ref); err != nil {
			o.logger.Warn("failed to record booking history", zap.Error(err))
		}
	}
	sess, err := o.store.Get(ctx, sid)
	refs := []models.BookingReference{ref}
	if err == nil {
		refs = append(sess.Context.PreviousBookings, ref)
	}
	intent := models.IntentNone
	_ = o.store.UpdateContext(ctx, sid, session.ContextPatch{
		CurrentIntent:    &intent,
		ClearBooking:     true,
		PreviousBookings: refs,
	})
	o.flow.Cancel()
	o.track("booking_confirmed", map[string]string{"sessionId": sid, "bookingId": result.BookingID})
}

// CancelBooking abandons the sub-flow and returns to chat.
func (o *Orchestrator) CancelBooking() {
	o.runSync(func() {
		ctx := context.Background()
		o.mu.Lock()
		sid := o.sessionID
		o.mu.Unlock()
		o.abandonBooking(ctx, sid)
	})
}

// Clear resets to a fresh empty session, discarding context and any
// in-progress booking. In-flight results are discarded on arrival.
func (o *Orchestrator) Clear() error {
	var err error
	o.runSync(func() {
		ctx := context.Background()
		atomic.AddUint64(&o.generation, 1)
		o.flow.Cancel()
		o.mu.Lock()
		old := o.sessionID
		o.sessionID = ""
		o.awaitingAbandon = false
		o.pendingText = ""
		o.errState = nil
		o.mu.Unlock()
		if old != "" {
			_ = o.store.Delete(ctx, old)
		}
		_, err = o.startSession(ctx, "")
		o.track("session_cleared", map[string]string{"sessionId": old})
	})
	return err
}

// OpenWidget makes the widget visible again.
func (o *Orchestrator) OpenWidget() {
	o.runSync(func() {
		o.mu.Lock()
		o.visible = true
		o.minimized = false
		o.mu.Unlock()
	})
}

// CloseWidget hides the widget. In-flight calls complete but their
// results are discarded on arrival.
func (o *Orchestrator) CloseWidget() {
	atomic.AddUint64(&o.generation, 1)
	o.runSync(func() {
		o.mu.Lock()
		o.visible = false
		o.mu.Unlock()
	})
}

// SetMinimized toggles the minimized presentation state.
func (o *Orchestrator) SetMinimized(min bool) {
	o.runSync(func() {
		o.mu.Lock()
		o.minimized = min
		o.mu.Unlock()
	})
}

// Session returns a clone of the current session.
func (o *Orchestrator) Session(ctx context.Context) (*models.ConversationSession, error) {
	o.mu.Lock()
	sid := o.sessionID
	o.mu.Unlock()
	if sid == "" {
		return nil, session.ErrNotFound
	}
	return o.store.Get(ctx, sid)
}

// Snapshot derives the presentation-facing widget state.
func (o *Orchestrator) Snapshot() models.WidgetState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

func (o *Orchestrator) snapshotLocked() models.WidgetState {
	view := models.ViewChat
	if o.flow.Active() {
		switch o.flow.State() {
		case bookingflow.StateFetching:
			view = models.ViewCalendar
		default:
			view = models.ViewBookingModal
		}
	}
	return models.WidgetState{
		IsVisible:        o.visible,
		IsMinimized:      o.minimized,
		CurrentView:      view,
		IsLoading:        o.loading,
		ConnectionStatus: o.connStatus,
		ErrorState:       o.errState,
	}
}

// Subscribe registers a snapshot listener; the returned function
// unsubscribes.
func (o *Orchestrator) Subscribe(fn func(models.WidgetState)) func() {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	o.subSeq++
	id := o.subSeq
	o.subs[id] = fn
	return func() {
		o.subsMu.Lock()
		defer o.subsMu.Unlock()
		delete(o.subs, id)
	}
}

func (o *Orchestrator) publish() {
	snap := o.Snapshot()
	o.subsMu.Lock()
	fns := make([]func(models.WidgetState), 0, len(o.subs))
	for _, fn := range o.subs {
		fns = append(fns, fn)
	}
	o.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// ensureActiveSession returns the current session id, requesting a
// fresh gateway session when none is bound and transparently recreating
// the session when the idle timeout has expired. The prior transcript
// is preserved under the new server-issued id; the booking sub-flow
// does not survive expiry.
func (o *Orchestrator) ensureActiveSession(ctx context.Context) (string, error) {
	o.mu.Lock()
	sid := o.sessionID
	o.mu.Unlock()

	var oldMessages []models.ChatMessage
	if sid != "" {
		sess, err := o.store.Get(ctx, sid)
		if err == nil && sess.IsActive {
			return sid, nil
		}
		if err == nil {
			oldMessages = sess.Messages
		}
	}

	data, err := o.gw.InitializeSession(ctx)
	if err != nil {
		return "", err
	}
	sess, err := o.store.CreateOrResume(ctx, data.SessionID, data.UserID)
	if err != nil {
		return "", err
	}
	for _, msg := range oldMessages {
		if aerr := o.store.AppendMessage(ctx, sess.SessionID, msg); aerr != nil {
			o.logger.Warn("failed to carry over transcript message", zap.Error(aerr))
			break
		}
	}
	o.flow.Cancel()
	o.mu.Lock()
	o.sessionID = sess.SessionID
	o.awaitingAbandon = false
	o.pendingText = ""
	o.mu.Unlock()
	if sid != "" {
		o.logger.Info("session recreated after expiry",
			zap.String("oldSessionId", sid), zap.String("newSessionId", sess.SessionID))
		o.track("session_recreated", map[string]string{"sessionId": sess.SessionID})
	}
	return sess.SessionID, nil
}

func (o *Orchestrator) appendUser(ctx context.Context, sid, text string) {
	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Content:   text,
		Sender:    models.SenderUser,
		Timestamp: time.Now(),
		Type:      models.MessageText,
	}
	if err := o.store.AppendMessage(ctx, sid, msg); err != nil {
		o.logger.Warn("failed to append user message", zap.Error(err))
	}
}

func (o *Orchestrator) appendAssistant(ctx context.Context, sid, content string, typ models.MessageType, metadata map[string]string) {
	msg := models.ChatMessage{
		ID:        uuid.New().String(),
		Content:   content,
		Sender:    models.SenderAssistant,
		Timestamp: time.Now(),
		Type:      typ,
		Metadata:  metadata,
	}
	if err := o.store.AppendMessage(ctx, sid, msg); err != nil {
		o.logger.Warn("failed to append assistant message", zap.Error(err))
	}
}

// persistDraft mirrors the controller's draft into the session context so
// the bookingInProgress invariant holds.
func (o *Orchestrator) persistDraft(ctx context.Context, sid string) {
	draft := o.flow.Draft()
	patch := session.ContextPatch{BookingInProgress: &draft}
	if draft.CustomerName != "" || draft.CustomerEmail != "" || draft.CustomerPhone != "" {
		patch.CustomerInfo = &models.CustomerInfo{
			Name:  draft.CustomerName,
			Email: draft.CustomerEmail,
			Phone: draft.CustomerPhone,
		}
	}
	if err := o.store.UpdateContext(ctx, sid, patch); err != nil {
		o.logger.Warn("failed to persist booking draft", zap.Error(err))
	}
}

func (o *Orchestrator) setLoading(loading bool) {
	o.mu.Lock()
	o.loading = loading
	o.mu.Unlock()
}

func (o *Orchestrator) setConnStatus(status models.ConnectionStatus) {
	o.mu.Lock()
	o.connStatus = status
	o.mu.Unlock()
}

func (o *Orchestrator) clearError() {
	o.mu.Lock()
	o.errState = nil
	o.mu.Unlock()
}

func (o *Orchestrator) reportError(err error) {
	state := errorStateFor(err)
	o.mu.Lock()
	if o.errState != nil && o.errState.Type == state.Type {
		state.RetryCount = o.errState.RetryCount + 1
	}
	o.errState = state
	o.mu.Unlock()
}

func (o *Orchestrator) track(eventType string, data map[string]string) {
	if o.tracker == nil {
		return
	}
	o.tracker.Track(models.AnalyticsEvent{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// errorStateFor maps the normalized error taxonomy onto the widget's
// error presentation.
func errorStateFor(err error) *models.ErrorState {
	var ve *models.ValidationError
	var bf *bookingflow.BookingFailedError
	var stale *bookingflow.StaleAvailabilityError
	var inProgress *bookingflow.OperationInProgressError
	switch {
	case errors.As(err, &ve):
		return &models.ErrorState{Type: "validation", Message: ve.Message, IsRetryable: true}
	case errors.As(err, &stale):
		return &models.ErrorState{Type: "booking", Message: "Those times are out of date. Please pick from the refreshed availability.", IsRetryable: true}
	case errors.As(err, &bf):
		return &models.ErrorState{Type: "booking", Message: bf.Message, IsRetryable: true}
	case errors.As(err, &inProgress):
		return &models.ErrorState{Type: "api", Message: "That request is already being processed.", IsRetryable: true}
	case gateway.IsAuth(err):
		return &models.ErrorState{Type: "api", Message: "Authentication with the server failed.", IsRetryable: false}
	case gateway.IsTransient(err):
		return &models.ErrorState{Type: "network", Message: "Connection trouble, retrying.", IsRetryable: true}
	default:
		return &models.ErrorState{Type: "api", Message: err.Error(), IsRetryable: false}
	}
}

// normalizeFieldAnswer converts a conversational answer into the field's
// canonical format where one exists.
func normalizeFieldAnswer(field, text string) string {
	switch field {
	case models.FieldPreferredDate:
		if date := ExtractDate(text, time.Now()); date != "" {
			return date
		}
	case models.FieldPreferredTime:
		if clock := ExtractTime(text); clock != "" {
			return clock
		}
	case models.FieldServiceType:
		if svc := ExtractServiceType(text); svc != "" {
			return svc
		}
	}
	return strings.TrimSpace(text)
}

func promptForField(field string) string {
	switch field {
	case models.FieldCustomerName:
		return "What name should I put the booking under?"
	case models.FieldCustomerEmail:
		return "What's the best email address for the confirmation?"
	case models.FieldServiceType:
		return "Which service would you like to book?"
	case models.FieldPreferredDate:
		return "What day works for you? (e.g. tomorrow, or 2026-09-15)"
	case models.FieldPreferredTime:
		return "What time of day suits you best?"
	case models.FieldDuration:
		return "How long should we schedule, in minutes?"
	default:
		return "Could you tell me a bit more?"
	}
}

// isCancelRequest recognizes an explicit request to stop the booking
// sub-flow. An explicit cancel is its own confirmation, so it skips the
// discard prompt that implicit topic switches get.
func isCancelRequest(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "cancel", "cancel it", "cancel that", "cancel the booking", "cancel booking",
		"stop", "stop the booking", "never mind", "nevermind", "forget it", "quit":
		return true
	}
	return false
}

func isAffirmative(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "yes", "y", "yes please", "yeah", "yep", "sure", "ok", "okay", "discard", "discard it":
		return true
	}
	return false
}
