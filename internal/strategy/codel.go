package strategy

import (
	"math"
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

const (
	codelTarget   = 5 * time.Millisecond
	codelInterval = 100 * time.Millisecond
)

// CoDel implements the Controlled Delay algorithm (spec.md §4.3). It never
// refuses admission at enqueue time; instead ReportDequeue watches how long
// each packet actually sojourned and drops packets once sojourn has
// persisted above target for a full interval, at an accelerating rate while
// the persistent-delay condition continues.
type CoDel struct {
	firstAboveTime clock.Timestamp
	haveFirstAbove bool

	dropping bool
	dropNext clock.Timestamp
	count    int
	lastOK   clock.Timestamp
	haveOK   bool
}

func NewCoDel() *CoDel {
	return &CoDel{}
}

func (c *CoDel) Name() string { return "codel" }

func (c *CoDel) OnEnqueue(_ packet.Packet, _ int, _ clock.Timestamp) Decision {
	return Accept
}

func (c *CoDel) OnDequeue(int, clock.Timestamp)             {}
func (c *CoDel) Update(int, time.Duration, clock.Timestamp) {}

// ReportDequeue applies the CoDel control law to one packet's sojourn time,
// per spec.md §4.3's first_above_time/dropping state machine.
func (c *CoDel) ReportDequeue(sojourn time.Duration, queueLen int, now clock.Timestamp) Decision {
	belowTarget := sojourn <= codelTarget || queueLen == 0

	if belowTarget {
		c.haveFirstAbove = false
	} else if !c.haveFirstAbove {
		c.firstAboveTime = now + clock.Timestamp(codelInterval)
		c.haveFirstAbove = true
	}

	okToDrop := c.haveFirstAbove && !belowTarget && now.Sub(c.firstAboveTime) >= 0

	if c.dropping {
		if !okToDrop {
			c.dropping = false
			return Accept
		}
		if now.Sub(c.dropNext) >= 0 {
			c.count++
			c.dropNext = c.nextDropTime(now)
			return Drop
		}
		return Accept
	}

	if okToDrop {
		c.dropping = true
		// If the gap since the last drop episode was long, decay count
		// back toward 1 instead of continuing to accelerate.
		if c.haveOK {
			sinceLast := now.Sub(c.lastOK)
			if sinceLast < 16*codelInterval && c.count > 2 {
				c.count -= 2
			} else {
				c.count = 1
			}
		} else {
			c.count = 1
		}
		c.haveOK = true
		c.lastOK = now
		c.dropNext = c.nextDropTime(now)
		return Drop
	}

	return Accept
}

func (c *CoDel) nextDropTime(now clock.Timestamp) clock.Timestamp {
	n := c.count
	if n < 1 {
		n = 1
	}
	interval := time.Duration(float64(codelInterval) / math.Sqrt(float64(n)))
	return now + clock.Timestamp(interval)
}

func (c *CoDel) Reset() {
	*c = CoDel{}
}

func (c *CoDel) Clone() Strategy {
	clone := *c
	return &clone
}
