// Package eventbustest provides a publish-capturing redis client so bus
// producers can be tested without a broker.
package eventbustest

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Capture satisfies redis.UniversalClient through the embedded interface and
// records everything published to it. Only Publish is implemented; a test
// that reaches any other method will panic on the nil interface.
type Capture struct {
	redis.UniversalClient

	mu       sync.Mutex
	messages map[string][][]byte
}

func New() *Capture {
	return &Capture{messages: make(map[string][][]byte)}
}

func (c *Capture) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	var payload []byte
	switch v := message.(type) {
	case []byte:
		payload = v
	case string:
		payload = []byte(v)
	}

	c.mu.Lock()
	c.messages[channel] = append(c.messages[channel], payload)
	c.mu.Unlock()
	return redis.NewIntCmd(ctx)
}

// Messages returns a copy of everything published to channel, in order.
func (c *Capture) Messages(channel string) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.messages[channel]))
	copy(out, c.messages[channel])
	return out
}
