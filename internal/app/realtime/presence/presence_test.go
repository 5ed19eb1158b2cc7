package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterUnregister_MultipleConnections(t *testing.T) {
	req := require.New(t)
	r := New()

	r.Register("c1", "u1")
	r.Register("c2", "u1")
	req.True(r.IsOnline("u1"))
	req.ElementsMatch([]string{"c1", "c2"}, r.ConnectionsFor("u1"))
	req.Equal(1, r.OnlineCount())

	req.True(r.SetActiveChannel("u1", "ch1"))

	user, offline := r.Unregister("c1")
	req.Equal("u1", user)
	req.False(offline)
	req.True(r.IsOnline("u1"))

	// Active channel survives while any connection remains.
	active, ok := r.ActiveChannel("u1")
	req.True(ok)
	req.Equal("ch1", active)

	_, offline = r.Unregister("c2")
	req.True(offline)
	req.False(r.IsOnline("u1"))
	_, ok = r.ActiveChannel("u1")
	req.False(ok, "active channel must clear once the last connection leaves")
	req.Equal(0, r.OnlineCount())
}

func TestUnregister_UnknownIsNoop(t *testing.T) {
	r := New()
	user, offline := r.Unregister("nope")
	require.Empty(t, user)
	require.False(t, offline)
}

func TestSetActiveChannel(t *testing.T) {
	req := require.New(t)
	r := New()

	req.False(r.SetActiveChannel("ghost", "ch"), "offline users have no active channel")

	r.Register("c1", "u1")
	r.SetActiveChannel("u1", "ch1")
	req.True(r.IsViewing("u1", "ch1"))
	req.False(r.IsViewing("u1", "ch2"))

	r.SetActiveChannel("u1", "")
	_, ok := r.ActiveChannel("u1")
	req.False(ok)
	req.False(r.IsViewing("u1", "ch1"))
}

func TestUserFor(t *testing.T) {
	r := New()
	r.Register("c1", "u1")
	u, ok := r.UserFor("c1")
	require.True(t, ok)
	require.Equal(t, "u1", u)
}

func TestClose(t *testing.T) {
	r := New()
	r.Register("c1", "u1")
	r.Close()
	require.False(t, r.IsOnline("u1"))
	_, ok := r.UserFor("c1")
	require.False(t, ok)

	r.Register("c2", "u2")
	require.True(t, r.IsOnline("u2"))
}

func TestConcurrentUse(t *testing.T) {
	r := New()
	var wg sync.WaitGroup
	for u := 0; u < 20; u++ {
		for c := 0; c < 10; c++ {
			wg.Add(1)
			go func(u, c int) {
				defer wg.Done()
				user := fmt.Sprintf("u%d", u)
				conn := fmt.Sprintf("u%d-c%d", u, c)
				r.Register(conn, user)
				r.SetActiveChannel(user, "ch")
				_ = r.IsViewing(user, "ch")
				r.Unregister(conn)
			}(u, c)
		}
	}
	wg.Wait()
	require.Equal(t, 0, r.OnlineCount())
}
