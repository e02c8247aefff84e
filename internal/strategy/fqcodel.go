package strategy

import (
	"time"

	"github.com/Servus-Altissimi/FlockNet/internal/clock"
	"github.com/Servus-Altissimi/FlockNet/internal/packet"
)

const (
	fqCodelBuckets = 1024
	fqCodelQuantum = 1500 // bytes, a typical MTU-sized DRR quantum
)

type fqFlow struct {
	queue   []packet.Packet
	codel   *CoDel
	active  bool
	deficit int
}

// FQCoDel implements Flow Queue CoDel (spec.md §4.3): packets are hashed by
// source agent into one of 1024 per-flow sub-queues, each running its own
// CoDel instance, serviced in deficit-round-robin order with new flows
// given priority over flows that have already received service. It
// implements QueueOwner because DRR's service order can't be expressed
// through the OnEnqueue/OnDequeue hooks that FIFO-backed strategies use.
type FQCoDel struct {
	buckets [fqCodelBuckets]*fqFlow

	newList []int
	oldList []int

	total int
}

func NewFQCoDel() *FQCoDel {
	return &FQCoDel{}
}

func (f *FQCoDel) Name() string { return "fq-codel" }

// OnEnqueue/OnDequeue/Update are unused: ServerQueue type-asserts
// QueueOwner and drives Enqueue/Dequeue directly instead.
func (f *FQCoDel) OnEnqueue(packet.Packet, int, clock.Timestamp) Decision { return Accept }
func (f *FQCoDel) OnDequeue(int, clock.Timestamp)                         {}
func (f *FQCoDel) Update(int, time.Duration, clock.Timestamp)             {}

func fqHash(agentID uint32) int {
	h := agentID * 2654435761
	return int(h % fqCodelBuckets)
}

func (f *FQCoDel) Enqueue(pkt packet.Packet, _ clock.Timestamp) int {
	idx := fqHash(pkt.SourceAgentID)
	b := f.buckets[idx]
	if b == nil {
		b = &fqFlow{codel: NewCoDel()}
		f.buckets[idx] = b
	}
	if !b.active {
		b.active = true
		b.deficit = 0
		f.newList = append(f.newList, idx)
	}
	b.queue = append(b.queue, pkt)
	f.total++
	return f.total
}

// Dequeue returns the next packet in DRR service order. A bucket's embedded
// CoDel can retroactively drop a packet this call already removed from its
// queue (the same sojourn-based verdict CoDel's FIFO SojournReporter path
// uses); rather than discard it, Dequeue keeps pulling from that bucket and
// reports every such packet in dropped so the caller can still count it.
func (f *FQCoDel) Dequeue(now clock.Timestamp) (pkt packet.Packet, ok bool, dropped []packet.Packet) {
	for {
		idx, fromNew, has := f.frontFlow()
		if !has {
			return packet.Packet{}, false, dropped
		}
		b := f.buckets[idx]

		if b.deficit <= 0 {
			b.deficit += fqCodelQuantum
			f.popFront(fromNew)
			f.oldList = append(f.oldList, idx)
			continue
		}

		if len(b.queue) == 0 {
			f.popFront(fromNew)
			b.active = false
			continue
		}

		p := b.queue[0]
		b.queue = b.queue[1:]
		f.total--
		b.deficit -= int(p.SizeBytes)

		sojourn := time.Duration(now - p.SentAt)
		if b.codel.ReportDequeue(sojourn, len(b.queue), now) == Drop {
			dropped = append(dropped, p)
			continue
		}
		return p, true, dropped
	}
}

func (f *FQCoDel) Len() int { return f.total }

// frontFlow returns the bucket index at the head of the new list if
// non-empty, else the head of the old list, matching FQ-CoDel's priority
// for flows that have not yet been serviced this round.
func (f *FQCoDel) frontFlow() (idx int, fromNew bool, ok bool) {
	if len(f.newList) > 0 {
		return f.newList[0], true, true
	}
	if len(f.oldList) > 0 {
		return f.oldList[0], false, true
	}
	return 0, false, false
}

func (f *FQCoDel) popFront(fromNew bool) {
	if fromNew {
		f.newList = f.newList[1:]
	} else {
		f.oldList = f.oldList[1:]
	}
}

func (f *FQCoDel) Reset() {
	for i := range f.buckets {
		f.buckets[i] = nil
	}
	f.newList = nil
	f.oldList = nil
	f.total = 0
}

func (f *FQCoDel) Clone() Strategy {
	return NewFQCoDel()
}
