package hub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"loftwire/internal/event"
)

// Close must be safe to run while other goroutines are mid-SafeSend.
// The egress channel is never closed, so the only way out for a racing
// sender is the cancelled context.
func TestCloseWhileBroadcastersAreSending(t *testing.T) {
	th := newHarness(t)
	c := th.connect("alice")

	ev := event.WsEvent{Event: "presence:update"}

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			for j := 0; j < 200; j++ {
				c.SafeSend(ev, time.Millisecond)
			}
		}()
	}

	close(start)
	c.Close()
	wg.Wait()

	assert.True(t, c.IsClosed())
	assert.False(t, c.SafeSend(ev, time.Millisecond))
}

func TestCloseIsIdempotent(t *testing.T) {
	th := newHarness(t)
	c := th.connect("alice")

	c.Close()
	c.Close()

	assert.True(t, c.IsClosed())
}
