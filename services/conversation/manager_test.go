package conversation

import (
	"context"
	"testing"
	"time"

	"chatwidget/services/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestManager(store *session.InMemoryStore, gw *fakeGateway) *Manager {
	return NewManager(defaultConfig(), Deps{Store: store, Gateway: gw, Logger: zap.NewNop()})
}

func TestAcquireResumesStoredSessionAfterRestart(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore(30 * time.Minute)

	m1 := newTestManager(store, &fakeGateway{})
	o1, sess1, err := m1.Acquire(ctx, "")
	require.NoError(t, err)
	o1.SubmitUserText("hello there")
	o1.Wait()
	before, err := o1.Session(ctx)
	require.NoError(t, err)
	m1.Shutdown()

	// A second manager over the same store stands in for the engine
	// after a restart; the widget presents its stored session id.
	gw2 := &fakeGateway{}
	m2 := newTestManager(store, gw2)
	t.Cleanup(m2.Shutdown)

	_, sess2, err := m2.Acquire(ctx, sess1.SessionID)
	require.NoError(t, err)

	assert.Equal(t, sess1.SessionID, sess2.SessionID)
	require.Len(t, sess2.Messages, len(before.Messages))
	for i, msg := range before.Messages {
		assert.Equal(t, msg.Content, sess2.Messages[i].Content)
	}

	// The stored session was resumed, not re-issued by the gateway,
	// and no second welcome message was appended.
	gw2.mu.Lock()
	inits := gw2.initCount
	gw2.mu.Unlock()
	assert.Zero(t, inits)

	_, ok := m2.Lookup(sess1.SessionID)
	assert.True(t, ok)
}

func TestAcquireExpiredSessionCarriesTranscript(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore(30 * time.Minute)

	m1 := newTestManager(store, &fakeGateway{})
	o1, sess1, err := m1.Acquire(ctx, "")
	require.NoError(t, err)
	o1.SubmitUserText("hello there")
	o1.Wait()
	before, err := o1.Session(ctx)
	require.NoError(t, err)
	m1.Shutdown()

	require.NoError(t, store.Expire(ctx, sess1.SessionID))

	// Offset the fake's id sequence so the replacement session gets an
	// id distinct from the expired one.
	m2 := newTestManager(store, &fakeGateway{initCount: 7})
	t.Cleanup(m2.Shutdown)

	_, sess2, err := m2.Acquire(ctx, sess1.SessionID)
	require.NoError(t, err)

	assert.NotEqual(t, sess1.SessionID, sess2.SessionID)
	assert.True(t, sess2.IsActive)
	// The expired transcript seeds the replacement session.
	require.Len(t, sess2.Messages, len(before.Messages))
	for i, msg := range before.Messages {
		assert.Equal(t, msg.Content, sess2.Messages[i].Content)
	}
}

func TestReapIdleReleasesExpiredOrchestrators(t *testing.T) {
	ctx := context.Background()
	store := session.NewInMemoryStore(30 * time.Minute)
	m := newTestManager(store, &fakeGateway{})
	t.Cleanup(m.Shutdown)

	_, sess, err := m.Acquire(ctx, "")
	require.NoError(t, err)

	// An active session within the idle window is left alone.
	assert.Zero(t, m.ReapIdle(ctx, 30*time.Minute))
	_, ok := m.Lookup(sess.SessionID)
	require.True(t, ok)

	require.NoError(t, store.Expire(ctx, sess.SessionID))
	assert.Equal(t, 1, m.ReapIdle(ctx, 30*time.Minute))
	_, ok = m.Lookup(sess.SessionID)
	assert.False(t, ok)
}
