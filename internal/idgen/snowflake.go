package idgen

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	timestampBits = 41
	nodeBits      = 10
	sequenceBits  = 12

	maxNode     = (1 << nodeBits) - 1
	maxSequence = (1 << sequenceBits) - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits
)

// DefaultEpoch is 2024-01-01T00:00:00Z in unix milliseconds.
const DefaultEpoch int64 = 1704067200000

var ErrClockBackwards = errors.New("clock moved backwards")

// Generator hands out message ids.
type Generator interface {
	NextID() (int64, error)
}

// Snowflake generates 64-bit ids: 41 bits of milliseconds since epoch,
// 10 bits of node id, 12 bits of sequence. Ids from one node are strictly
// increasing.
type Snowflake struct {
	mu       sync.Mutex
	epoch    int64
	node     int64
	sequence int64
	lastTime int64
	now      func() int64
}

// NewSnowflake creates a generator for node in [0, 1023]. epoch <= 0 selects
// DefaultEpoch.
func NewSnowflake(node int64, epoch int64) (*Snowflake, error) {
	if node < 0 || node > maxNode {
		return nil, fmt.Errorf("node id must be between 0 and %d, got %d", maxNode, node)
	}
	if epoch <= 0 {
		epoch = DefaultEpoch
	}
	return &Snowflake{
		epoch: epoch,
		node:  node,
		now:   func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// NextID returns the next id.
func (g *Snowflake) NextID() (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if now < g.epoch {
		return 0, fmt.Errorf("current time is before epoch")
	}
	if now < g.lastTime {
		return 0, fmt.Errorf("%w: current=%d, last=%d", ErrClockBackwards, now, g.lastTime)
	}

	if now == g.lastTime {
		g.sequence = (g.sequence + 1) & maxSequence
		if g.sequence == 0 {
			for now <= g.lastTime {
				now = g.now()
			}
		}
	} else {
		g.sequence = 0
	}
	g.lastTime = now

	return ((now - g.epoch) << timestampShift) | (g.node << nodeShift) | g.sequence, nil
}

// Time returns the creation time encoded in id.
func (g *Snowflake) Time(id int64) time.Time {
	ms := (id >> timestampShift) & ((1 << timestampBits) - 1)
	return time.UnixMilli(ms + g.epoch)
}

// Node returns the node id encoded in id.
func Node(id int64) int64 {
	return (id >> nodeShift) & maxNode
}
