package ws

import (
	"testing"
	"time"

	"github.com/farmsight/relay/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type allowAll struct{}

func (allowAll) AllowStream(string, string) bool { return true }

func newTestEmitter(t *testing.T) (*Emitter, *Core) {
	t.Helper()

	logger := zap.NewNop().Sugar()
	core := NewCore(Config{}, auth.NewTokenAuthenticator("test-secret", ""), allowAll{}, logger)
	return NewEmitter(core, NewMetrics(), logger), core
}

func receiveEnvelope(t *testing.T, cl *Client) *Envelope {
	t.Helper()

	select {
	case env := <-cl.send:
		return env
	case <-time.After(time.Second):
		t.Fatal("expected an envelope")
		return nil
	}
}

func assertNoEnvelope(t *testing.T, cl *Client) {
	t.Helper()

	select {
	case env := <-cl.send:
		t.Fatalf("unexpected envelope: %+v", env)
	default:
	}
}

func TestEmitter_DeliversToMembersOnly(t *testing.T) {
	emitter, core := newTestEmitter(t)

	member := testClient("c1", "u1", "t1")
	outsider := testClient("c2", "u2", "t1")
	core.registry.Register(member)
	core.registry.Register(outsider)
	require.NoError(t, core.registry.Join("c1", StreamRoom("s1")))

	emitter.EmitToStream("s1", EventDetectionUpdate, DetectionUpdatePayload{StreamID: "s1"})

	env := receiveEnvelope(t, member)
	assert.Equal(t, EventDetectionUpdate, env.Event)
	assert.Equal(t, StreamRoom("s1"), env.Room)
	assert.False(t, env.EmittedAt.IsZero())
	assertNoEnvelope(t, member) // exactly one copy
	assertNoEnvelope(t, outsider)
}

func TestEmitter_TenantRoomReachesAllTenantConnections(t *testing.T) {
	emitter, core := newTestEmitter(t)

	c1 := testClient("c1", "u1", "t1")
	c2 := testClient("c2", "u2", "t1")
	other := testClient("c3", "u3", "t2")
	core.registry.Register(c1)
	core.registry.Register(c2)
	core.registry.Register(other)

	emitter.EmitToTenant("t1", EventTenantMetrics, TenantMetricsPayload{ActiveStreams: 2})

	for _, cl := range []*Client{c1, c2} {
		env := receiveEnvelope(t, cl)
		assert.Equal(t, TenantRoom("t1"), env.Room)
	}
	assertNoEnvelope(t, other)
}

func TestEmitter_EmptyRoomIsSilentNoop(t *testing.T) {
	emitter, _ := newTestEmitter(t)

	// Must not panic or error: no subscribers is a normal outcome.
	emitter.EmitToStream("ghost", EventStreamStatus, StreamStatusPayload{StreamID: "ghost"})
}

func TestEmitter_SlowSubscriberIsDisconnected(t *testing.T) {
	emitter, core := newTestEmitter(t)

	slow := testClient("slow", "u1", "t1")
	slow.send = make(chan *Envelope) // no buffer: every send overflows
	healthy := testClient("ok", "u2", "t1")
	core.registry.Register(slow)
	core.registry.Register(healthy)
	require.NoError(t, core.registry.Join("slow", StreamRoom("s1")))
	require.NoError(t, core.registry.Join("ok", StreamRoom("s1")))

	emitter.EmitToStream("s1", EventChunkProcessed, ChunkProcessedPayload{StreamID: "s1"})

	// The slow member is torn down; the healthy one still gets its copy.
	_, ok := core.registry.Get("slow")
	assert.False(t, ok)
	assert.True(t, slow.IsClosed())
	receiveEnvelope(t, healthy)

	// Later emits no longer reach the removed connection.
	emitter.EmitToStream("s1", EventChunkProcessed, ChunkProcessedPayload{StreamID: "s1"})
	receiveEnvelope(t, healthy)
	assertNoEnvelope(t, slow)
}

func TestEmitter_DisconnectedClientReceivesNothing(t *testing.T) {
	emitter, core := newTestEmitter(t)

	cl := testClient("c1", "u1", "t1")
	core.registry.Register(cl)
	require.NoError(t, core.registry.Join("c1", StreamRoom("s1")))

	core.disconnect(cl)

	emitter.EmitToStream("s1", EventDetectionUpdate, DetectionUpdatePayload{StreamID: "s1"})
	emitter.EmitToTenant("t1", EventTenantMetrics, TenantMetricsPayload{})
	assertNoEnvelope(t, cl)
	assert.Equal(t, Stats{}, core.registry.Stats())
}
