package console

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"userconsole/pkg/users"
)

func TestPendingSet_ConsumeByID(t *testing.T) {
	p := newPendingSet(time.Minute)
	p.add(EventUpdated, 3, users.Input{Name: "n"})

	require.False(t, p.consume(EventCreated, users.User{ID: 3}))
	require.False(t, p.consume(EventUpdated, users.User{ID: 4}))
	require.True(t, p.consume(EventUpdated, users.User{ID: 3}))
	require.False(t, p.consume(EventUpdated, users.User{ID: 3}))
}

func TestPendingSet_UnresolvedCreateMatchesContent(t *testing.T) {
	p := newPendingSet(time.Minute)
	p.add(EventCreated, 0, users.Input{Name: "Alice", Email: "a@example.com"})

	require.False(t, p.consume(EventCreated, users.User{ID: 8, Name: "Bob", Email: "b@example.com"}))
	require.True(t, p.consume(EventCreated, users.User{ID: 9, Name: "Alice", Email: "a@example.com"}))
	require.Equal(t, 0, p.len())
}

func TestPendingSet_ResolvedCreateMatchesID(t *testing.T) {
	p := newPendingSet(time.Minute)
	corr := p.add(EventCreated, 0, users.Input{Name: "Alice"})
	p.resolve(corr, 12)

	require.False(t, p.consume(EventCreated, users.User{ID: 13, Name: "Alice"}))
	require.True(t, p.consume(EventCreated, users.User{ID: 12, Name: "Alice"}))
}

func TestPendingSet_IndependentWrites(t *testing.T) {
	p := newPendingSet(time.Minute)
	p.add(EventUpdated, 1, users.Input{})
	p.add(EventUpdated, 2, users.Input{})

	require.True(t, p.consume(EventUpdated, users.User{ID: 2}))
	require.Equal(t, 1, p.len())
	require.True(t, p.consume(EventUpdated, users.User{ID: 1}))
}

func TestPendingSet_DropAndExpire(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	p := newPendingSet(time.Second)
	p.now = func() time.Time { return now }

	corr := p.add(EventUpdated, 1, users.Input{})
	p.drop(corr)
	require.Equal(t, 0, p.len())

	p.add(EventUpdated, 2, users.Input{})
	now = now.Add(2 * time.Second)
	require.False(t, p.consume(EventUpdated, users.User{ID: 2}))
	require.Equal(t, 0, p.len())
}
