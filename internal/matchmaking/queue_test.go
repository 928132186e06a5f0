package matchmaking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeclash/codeclash-server/internal/core"
	"github.com/codeclash/codeclash-server/internal/problems"
)

type fakeRooms struct {
	created []*problems.Problem
}

func (f *fakeRooms) CreateRoomWith(kind core.RoomKind, problem *problems.Problem) string {
	f.created = append(f.created, problem)
	return "room-" + string(rune('a'+len(f.created)-1))
}

func testQueue(t *testing.T) (*Queue, *fakeRooms, *time.Time) {
	t.Helper()
	rooms := &fakeRooms{}
	q := New(nil, rooms, nil, DefaultOptions())
	now := time.Now()
	q.now = func() time.Time { return now }
	return q, rooms, &now
}

func TestEnqueueMatchesWithinBand(t *testing.T) {
	q, rooms, _ := testQueue(t)

	first := q.Enqueue("u1", "alice", 1200, "")
	assert.Equal(t, StateWaiting, first.State)

	second := q.Enqueue("u2", "bob", 1280, "")
	assert.Equal(t, StateMatched, second.State)
	assert.NotEmpty(t, second.RoomID)

	st, ok := q.Status("u1")
	require.True(t, ok)
	assert.Equal(t, StateMatched, st.State)
	assert.Equal(t, second.RoomID, st.RoomID)
	assert.Len(t, rooms.created, 1)
}

func TestEnqueueOutsideBandWaits(t *testing.T) {
	q, rooms, _ := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "")
	e := q.Enqueue("u2", "bob", 1500, "")

	assert.Equal(t, StateWaiting, e.State)
	assert.Empty(t, rooms.created)
}

func TestBandWidensWithWait(t *testing.T) {
	q, _, _ := testQueue(t)

	assert.Equal(t, 100, q.Band(0))
	assert.Equal(t, 100, q.Band(4*time.Second))
	assert.Equal(t, 150, q.Band(5*time.Second))
	assert.Equal(t, 400, q.Band(30*time.Second))

	// Non-decreasing in wait time.
	prev := 0
	for waited := time.Duration(0); waited <= time.Minute; waited += time.Second {
		b := q.Band(waited)
		assert.GreaterOrEqual(t, b, prev)
		prev = b
	}
}

func TestWaitingPairMatchesOnceBandWidens(t *testing.T) {
	q, rooms, now := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "")
	q.Enqueue("u2", "bob", 1500, "")
	assert.Empty(t, rooms.created)

	// A 300-point gap needs band >= 300: 4 widening steps, 20 seconds.
	*now = now.Add(21 * time.Second)
	q.mu.Lock()
	q.matchPass()
	q.mu.Unlock()

	st, ok := q.Status("u1")
	require.True(t, ok)
	assert.Equal(t, StateMatched, st.State)
	assert.Len(t, rooms.created, 1)
}

func TestMatchRequiresBothBands(t *testing.T) {
	q, rooms, now := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "")
	*now = now.Add(21 * time.Second)
	// u2 arrives late with a wide gap: u1's band reaches, u2's does not.
	q.Enqueue("u2", "bob", 1500, "")

	st, ok := q.Status("u2")
	require.True(t, ok)
	assert.Equal(t, StateWaiting, st.State)
	assert.Empty(t, rooms.created)
}

func TestDifficultyPreference(t *testing.T) {
	q, rooms, _ := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "easy")
	e := q.Enqueue("u2", "bob", 1210, "hard")
	assert.Equal(t, StateWaiting, e.State, "conflicting preferences must not match")

	// An indifferent duelist matches either preference.
	e = q.Enqueue("u3", "carol", 1205, "")
	assert.Equal(t, StateMatched, e.State)
	assert.Len(t, rooms.created, 1)
}

func TestReEnqueueWhileWaitingIsIdempotent(t *testing.T) {
	q, _, _ := testQueue(t)

	first := q.Enqueue("u1", "alice", 1200, "")
	second := q.Enqueue("u1", "alice", 1200, "")

	assert.Equal(t, first.Token, second.Token)
	assert.Equal(t, first.EnqueuedAt, second.EnqueuedAt)
}

func TestEntryExpires(t *testing.T) {
	q, _, now := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "")

	*now = now.Add(61 * time.Second)
	st, ok := q.Status("u1")
	require.True(t, ok, "expired entry stays visible for polling")
	assert.Equal(t, StateExpired, st.State)

	// Terminal entries are purged after twice the TTL.
	*now = now.Add(62 * time.Second)
	_, ok = q.Status("u1")
	assert.False(t, ok)
}

func TestCancelAfterMatchIsNoOp(t *testing.T) {
	q, _, _ := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "")
	q.Enqueue("u2", "bob", 1210, "")

	q.Cancel("u1")

	st, ok := q.Status("u1")
	require.True(t, ok)
	assert.Equal(t, StateMatched, st.State, "cancel must not undo a completed match")
}

func TestCancelWhileWaiting(t *testing.T) {
	q, rooms, _ := testQueue(t)

	q.Enqueue("u1", "alice", 1200, "")
	q.Cancel("u1")

	_, ok := q.Status("u1")
	assert.False(t, ok)

	// The cancelled duelist is no longer matchable.
	q.Enqueue("u2", "bob", 1210, "")
	assert.Empty(t, rooms.created)
}

func TestMatchUsesDifficultyCatalog(t *testing.T) {
	rooms := &fakeRooms{}
	catalog := problems.FromSlice([]*problems.Problem{
		{ID: "p-easy", Difficulty: "easy"},
		{ID: "p-hard", Difficulty: "hard"},
	})
	q := New(nil, rooms, catalog, DefaultOptions())

	q.Enqueue("u1", "alice", 1200, "hard")
	e := q.Enqueue("u2", "bob", 1210, "hard")

	assert.Equal(t, StateMatched, e.State)
	if assert.Len(t, rooms.created, 1) {
		assert.Equal(t, "p-hard", rooms.created[0].ID)
	}
}
