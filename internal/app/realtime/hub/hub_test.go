package hub

import (
	"sync"
	"testing"

	"github.com/dalemusser/stratachat/internal/app/realtime/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSub struct {
	id     string
	cap    int
	mu     sync.Mutex
	frames []events.Frame
	closed int
}

func newFake(id string, capacity int) *fakeSub { return &fakeSub{id: id, cap: capacity} }

func (f *fakeSub) ID() string { return f.id }

func (f *fakeSub) Enqueue(fr events.Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) >= f.cap {
		return false
	}
	f.frames = append(f.frames, fr)
	return true
}

func (f *fakeSub) Close() {
	f.mu.Lock()
	f.closed++
	f.mu.Unlock()
}

func (f *fakeSub) got() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.frames))
	for i, fr := range f.frames {
		out[i] = string(fr)
	}
	return out
}

func TestPublish_OnlyToRoomSubscribers(t *testing.T) {
	req := require.New(t)
	h := New(zap.NewNop())
	a, b, c := newFake("a", 10), newFake("b", 10), newFake("c", 10)
	for _, s := range []*fakeSub{a, b, c} {
		req.True(h.Register(s))
	}
	room := ChannelRoom("ch1")
	h.Subscribe(room, "a")
	h.Subscribe(room, "b")

	n := h.Publish(room, events.Frame("m1"), "")
	req.Equal(2, n)
	req.Equal([]string{"m1"}, a.got())
	req.Equal([]string{"m1"}, b.got())
	req.Empty(c.got())
}

func TestPublish_ExceptSender(t *testing.T) {
	h := New(zap.NewNop())
	a, b := newFake("a", 10), newFake("b", 10)
	h.Register(a)
	h.Register(b)
	h.Subscribe("r", "a")
	h.Subscribe("r", "b")

	require.Equal(t, 1, h.Publish("r", events.Frame("typing"), "a"))
	require.Empty(t, a.got())
	require.Len(t, b.got(), 1)
}

func TestPublish_OrderPreserved(t *testing.T) {
	h := New(zap.NewNop())
	a := newFake("a", 100)
	h.Register(a)
	h.Subscribe("r", "a")
	for _, m := range []string{"1", "2", "3", "4"} {
		h.Publish("r", events.Frame(m), "")
	}
	require.Equal(t, []string{"1", "2", "3", "4"}, a.got())
}

func TestPublish_SlowConsumerDropped(t *testing.T) {
	req := require.New(t)
	h := New(zap.NewNop())
	slow, fast := newFake("slow", 1), newFake("fast", 10)
	h.Register(slow)
	h.Register(fast)
	h.Subscribe("r", "slow")
	h.Subscribe("r", "fast")

	h.Publish("r", events.Frame("1"), "")
	h.Publish("r", events.Frame("2"), "")

	req.Equal(1, slow.closed)
	req.False(h.IsSubscribed("r", "slow"))
	req.Equal(1, h.RoomSize("r"))
	req.Equal([]string{"1", "2"}, fast.got())
}

func TestUnregister_DropsAllRooms(t *testing.T) {
	h := New(zap.NewNop())
	a := newFake("a", 10)
	h.Register(a)
	h.Subscribe(ChannelRoom("x"), "a")
	h.Subscribe(UserRoom("u"), "a")

	h.Unregister("a")
	require.Equal(t, 0, h.RoomSize(ChannelRoom("x")))
	require.Equal(t, 0, h.RoomSize(UserRoom("u")))
	require.False(t, h.Subscribe("r", "a"), "unknown subscriber cannot subscribe")
	h.Unregister("a")
}

func TestShutdown(t *testing.T) {
	h := New(zap.NewNop())
	a := newFake("a", 10)
	h.Register(a)
	h.Shutdown()
	require.Equal(t, 1, a.closed)
	require.False(t, h.Register(newFake("b", 1)))
}
