package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/missionforge/server/game/player"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestRouter() (*Router, *player.Session) {
	r := NewRouter(zap.NewNop())
	s := player.NewDetachedSession(76561198000000001, "alice", nil, zap.NewNop())
	return r, s
}

func TestRouter_DispatchInvokesHandler(t *testing.T) {
	r, s := newTestRouter()

	var gotPayload string
	r.On("event_report", func(ctx context.Context, sess *player.Session, payload json.RawMessage) error {
		assert.Same(t, s, sess)
		assert.NotEmpty(t, TraceIDFromCtx(ctx))
		gotPayload = string(payload)
		return nil
	})

	r.Dispatch(s, []byte(`{"seq":1,"type":"event_report","payload":{"event":"player_kill"}}`))
	assert.JSONEq(t, `{"event":"player_kill"}`, gotPayload)
}

func TestRouter_MalformedPacketIgnored(t *testing.T) {
	r, s := newTestRouter()
	called := false
	r.On("ping", func(context.Context, *player.Session, json.RawMessage) error {
		called = true
		return nil
	})

	r.Dispatch(s, []byte(`{not json`))
	assert.False(t, called)
}

func TestRouter_UnhandledTypeIgnored(t *testing.T) {
	r, s := newTestRouter()
	require.NotPanics(t, func() {
		r.Dispatch(s, []byte(`{"seq":1,"type":"unknown_thing"}`))
	})
}

func TestRouter_SeqRejectsReplay(t *testing.T) {
	r, s := newTestRouter()

	var count int
	r.On("ping", func(context.Context, *player.Session, json.RawMessage) error {
		count++
		return nil
	})

	r.Dispatch(s, []byte(`{"seq":5,"type":"ping"}`))
	r.Dispatch(s, []byte(`{"seq":5,"type":"ping"}`)) // replay
	r.Dispatch(s, []byte(`{"seq":3,"type":"ping"}`)) // out of order
	r.Dispatch(s, []byte(`{"seq":6,"type":"ping"}`))

	assert.Equal(t, 2, count)
	assert.Equal(t, uint64(6), s.LastSeq)
}

func TestRouter_SeqZeroSkipsTracking(t *testing.T) {
	r, s := newTestRouter()

	var count int
	r.On("ping", func(context.Context, *player.Session, json.RawMessage) error {
		count++
		return nil
	})

	r.Dispatch(s, []byte(`{"type":"ping"}`))
	r.Dispatch(s, []byte(`{"type":"ping"}`))

	assert.Equal(t, 2, count)
	assert.Zero(t, s.LastSeq)
}

func TestRouter_HandlerErrorIsSwallowed(t *testing.T) {
	r, s := newTestRouter()
	r.On("ping", func(context.Context, *player.Session, json.RawMessage) error {
		return errors.New("boom")
	})

	require.NotPanics(t, func() {
		r.Dispatch(s, []byte(`{"seq":1,"type":"ping"}`))
	})
	assert.Equal(t, uint64(1), s.LastSeq, "seq advances even when the handler fails")
}

func TestTraceIDFromCtx_Missing(t *testing.T) {
	assert.Empty(t, TraceIDFromCtx(context.Background()))
}
