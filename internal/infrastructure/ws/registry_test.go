package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/farmsight/relay/internal/infrastructure/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(id, userID, tenantID string) *Client {
	return &Client{
		ID:       id,
		Identity: auth.Identity{UserID: userID, TenantID: tenantID},
		send:     make(chan *Envelope, 8),
		closed:   make(chan struct{}),
	}
}

func TestRegistry_RegisterJoinsTenantRoom(t *testing.T) {
	r := NewRegistry()
	cl := testClient("c1", "u1", "t1")

	r.Register(cl)

	info, ok := r.Get("c1")
	require.True(t, ok)
	assert.Equal(t, "u1", info.Identity.UserID)
	assert.Equal(t, []RoomKey{TenantRoom("t1")}, info.Rooms)
	assert.Equal(t, 1, r.MemberCount(TenantRoom("t1")))
	assert.Equal(t, []string{"c1"}, r.SessionConnections("u1"))
}

func TestRegistry_BidirectionalConsistency(t *testing.T) {
	r := NewRegistry()
	cl := testClient("c1", "u1", "t1")
	r.Register(cl)

	require.NoError(t, r.Join("c1", StreamRoom("s1")))
	require.NoError(t, r.Join("c1", StreamRoom("s2")))
	require.NoError(t, r.Leave("c1", StreamRoom("s1")))

	info, _ := r.Get("c1")
	assert.ElementsMatch(t, []RoomKey{TenantRoom("t1"), StreamRoom("s2")}, info.Rooms)
	assert.Equal(t, 0, r.MemberCount(StreamRoom("s1")))
	assert.Equal(t, 1, r.MemberCount(StreamRoom("s2")))
}

func TestRegistry_JoinIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))

	require.NoError(t, r.Join("c1", StreamRoom("s1")))
	require.NoError(t, r.Join("c1", StreamRoom("s1")))

	assert.Equal(t, 1, r.MemberCount(StreamRoom("s1")))
	assert.Len(t, r.Members(StreamRoom("s1")), 1)
}

func TestRegistry_LeaveNonMemberIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))

	require.NoError(t, r.Leave("c1", StreamRoom("never-joined")))

	info, _ := r.Get("c1")
	assert.Equal(t, []RoomKey{TenantRoom("t1")}, info.Rooms)
}

func TestRegistry_TenantRoomCannotBeLeft(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))

	err := r.Leave("c1", TenantRoom("t1"))

	assert.ErrorIs(t, err, ErrTenantRoom)
	assert.Equal(t, 1, r.MemberCount(TenantRoom("t1")))
}

func TestRegistry_EmptyRoomsAreDeleted(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))

	require.NoError(t, r.Join("c1", StreamRoom("s1")))
	require.NoError(t, r.Leave("c1", StreamRoom("s1")))

	assert.Equal(t, Stats{Connections: 1, Sessions: 1, Rooms: 1}, r.Stats()) // only the tenant room remains
}

func TestRegistry_UnregisterCleansEverything(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))
	require.NoError(t, r.Join("c1", StreamRoom("s1")))

	assert.True(t, r.Unregister("c1"))

	_, ok := r.Get("c1")
	assert.False(t, ok)
	assert.Empty(t, r.SessionConnections("u1"))
	assert.Equal(t, Stats{}, r.Stats())
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))

	assert.True(t, r.Unregister("c1"))
	assert.False(t, r.Unregister("c1"))
}

func TestRegistry_OperationsAfterUnregisterAreRejected(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))
	r.Unregister("c1")

	assert.ErrorIs(t, r.Join("c1", StreamRoom("s1")), ErrUnknownConnection)
	assert.ErrorIs(t, r.Leave("c1", StreamRoom("s1")), ErrUnknownConnection)
}

func TestRegistry_SessionGroupsMultipleDevices(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))
	r.Register(testClient("c2", "u1", "t1"))
	r.Register(testClient("c3", "u2", "t1"))

	assert.ElementsMatch(t, []string{"c1", "c2"}, r.SessionConnections("u1"))
	assert.Equal(t, Stats{Connections: 3, Sessions: 2, Rooms: 1}, r.Stats())

	// The session survives until the last device disconnects.
	r.Unregister("c1")
	assert.Equal(t, []string{"c2"}, r.SessionConnections("u1"))
	r.Unregister("c2")
	assert.Empty(t, r.SessionConnections("u1"))
}

func TestRegistry_MembersIsASnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(testClient("c1", "u1", "t1"))
	r.Register(testClient("c2", "u2", "t1"))
	require.NoError(t, r.Join("c1", StreamRoom("s1")))
	require.NoError(t, r.Join("c2", StreamRoom("s1")))

	members := r.Members(StreamRoom("s1"))
	require.Len(t, members, 2)

	r.Unregister("c1")
	assert.Len(t, members, 2, "snapshot must not change under mutation")
	assert.Len(t, r.Members(StreamRoom("s1")), 1)
}

func TestRegistry_ConcurrentMutations(t *testing.T) {
	r := NewRegistry()

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()

			id := fmt.Sprintf("c%d", n)
			cl := testClient(id, fmt.Sprintf("u%d", n%4), "t1")
			r.Register(cl)

			for j := 0; j < 50; j++ {
				room := StreamRoom(fmt.Sprintf("s%d", j%5))
				_ = r.Join(id, room)
				r.Members(room)
				_ = r.Leave(id, room)
			}
			r.Unregister(id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, Stats{}, r.Stats(), "all state must drain after every worker disconnects")
}
