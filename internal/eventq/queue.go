/*
 * Copyright 2025 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package eventq is the queue of timed events the devices of the machine
// schedule against the cycle counter.
//
// Events live in a fixed arena and are chained by index in the order they
// fire. At most one event of each type is pending at any time.
package eventq

import (
	"encoding/binary"
	"fmt"

	"github.com/cloudwego/mipsjit/internal/log"
	"github.com/oleiade/lane"
	"github.com/pkg/errors"
)

type Type uint32

const (
	VI      Type = 0x001
	Compare Type = 0x002
	Check   Type = 0x004
	SI      Type = 0x008
	PI      Type = 0x010
	Special Type = 0x020
	AI      Type = 0x040
	SP      Type = 0x080
	DP      Type = 0x100
	HW2     Type = 0x200
	NMI     Type = 0x400
	Reset   Type = 0x800
)

var typeNames = map[Type]string{
	VI:      "vi",
	Compare: "compare",
	Check:   "check",
	SI:      "si",
	PI:      "pi",
	Special: "special",
	AI:      "ai",
	SP:      "sp",
	DP:      "dp",
	HW2:     "hw2",
	NMI:     "nmi",
	Reset:   "reset",
}

func (self Type) String() string {
	if s, ok := typeNames[self]; ok {
		return s
	} else {
		return fmt.Sprintf("event(%#x)", uint32(self))
	}
}

const (
	DefaultCapacity = 16
	Terminator      = 0xffffffff
)

const (
	_Nil  = -1
	_Half = 1 << 31
	_Near = 1 << 28
)

// Handler runs when an event fires. It may schedule new events.
type Handler func(q *Queue, typ Type)

type _Node struct {
	typ  Type
	at   uint32
	next int
}

// Queue is not safe for concurrent use.
type Queue struct {
	head     int
	nodes    []_Node
	free     *lane.Stack
	now      func() uint32
	handlers map[Type]Handler
	dups     log.EveryN

	// SpecialDone stops Special events from jumping the queue.
	SpecialDone bool
}

// New creates a queue of capacity events. now reads the cycle counter.
func New(capacity int, now func() uint32) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	/* create the queue */
	ret := &Queue{
		nodes:    make([]_Node, capacity),
		free:     lane.NewStack(),
		now:      now,
		handlers: make(map[Type]Handler),
		dups:     log.EveryN{N: 64},
	}

	/* all nodes start out free */
	ret.Clear()
	return ret
}

// Handle installs the handler of an event type.
func (self *Queue) Handle(typ Type, fn Handler) {
	self.handlers[typ] = fn
}

// Clear drops every pending event.
func (self *Queue) Clear() {
	self.head = _Nil
	self.free = lane.NewStack()
	self.SpecialDone = false

	/* lowest index on top */
	for i := len(self.nodes) - 1; i >= 0; i-- {
		self.free.Push(i)
	}
}

func (self *Queue) Len() int {
	return len(self.nodes) - self.free.Size()
}

/** Ordering **/

// before reports whether an event at cycle a fires ahead of node b. Cycles
// are compared by their unsigned distance from now, so the counter may
// wrap around freely. Nothing overtakes a Special event until SpecialDone
// is set.
func (self *Queue) before(a uint32, b *_Node, now uint32) bool {
	switch {
	case b.typ == Special && !self.SpecialDone:
		return false
	case a-now >= _Half:
		return false
	case b.at-now < _Half:
		return a-now < b.at-now
	case now-b.at >= _Near:
		return true
	case b.typ == Special:
		return self.SpecialDone
	default:
		return false
	}
}

/** Scheduling **/

// Schedule adds an event at cycle at. A duplicate type is dropped with a
// warning, and so is any event once the arena is exhausted.
func (self *Queue) Schedule(typ Type, at uint32) bool {
	if _, ok := self.Pending(typ); ok {
		log.WarnBy(&self.dups, "eventq: event already pending", "type", typ, "at", at)
		return false
	}

	/* grab a node */
	if self.free.Empty() {
		log.Error("eventq: event pool exhausted", "type", typ, "at", at, "capacity", len(self.nodes))
		return false
	}

	/* initialize the node */
	i := self.free.Pop().(int)
	self.nodes[i] = _Node{typ: typ, at: at, next: _Nil}
	self.insert(i)
	return true
}

// ScheduleAfter adds an event delay cycles from now.
func (self *Queue) ScheduleAfter(typ Type, delay uint32) bool {
	return self.Schedule(typ, self.now()+delay)
}

func (self *Queue) insert(i int) {
	now := self.now()
	node := &self.nodes[i]
	special := node.typ == Special

	/* the front of the queue */
	if self.head == _Nil || (special && !self.SpecialDone) || self.before(node.at, &self.nodes[self.head], now) {
		node.next = self.head
		self.head = i
		return
	}

	/* find the last node that fires ahead of it */
	p := self.head
	for q := self.nodes[p].next; q != _Nil && !self.before(node.at, &self.nodes[q], now); q = self.nodes[p].next {
		p = q
	}

	/* link it in */
	node.next = self.nodes[p].next
	self.nodes[p].next = i
}

// Cancel removes the pending event of a type.
func (self *Queue) Cancel(typ Type) bool {
	p := _Nil
	for i := self.head; i != _Nil; p, i = i, self.nodes[i].next {
		if self.nodes[i].typ == typ {
			self.unlink(p, i)
			return true
		}
	}
	return false
}

func (self *Queue) unlink(prev int, i int) {
	if prev == _Nil {
		self.head = self.nodes[i].next
	} else {
		self.nodes[prev].next = self.nodes[i].next
	}

	/* back to the pool */
	self.nodes[i] = _Node{}
	self.free.Push(i)
}

// Pending returns the cycle an event type is scheduled at.
func (self *Queue) Pending(typ Type) (uint32, bool) {
	for i := self.head; i != _Nil; i = self.nodes[i].next {
		if self.nodes[i].typ == typ {
			return self.nodes[i].at, true
		}
	}
	return 0, false
}

// Next returns the cycle of the event at the head of the queue.
func (self *Queue) Next() (uint32, bool) {
	if self.head == _Nil {
		return 0, false
	} else {
		return self.nodes[self.head].at, true
	}
}

// Shift moves every pending event by delta cycles, for when the counter
// itself jumped by delta.
func (self *Queue) Shift(delta uint32) {
	for i := self.head; i != _Nil; i = self.nodes[i].next {
		self.nodes[i].at += delta
	}
}

/** Dispatching **/

// CheckAndDispatch fires the head of the queue if it is due at cycle now.
// It returns whether an event fired.
func (self *Queue) CheckAndDispatch(now uint32) bool {
	if self.head == _Nil {
		return false
	}

	/* only the head is ever examined */
	i := self.head
	typ := self.nodes[i].typ
	if int32(now-self.nodes[i].at) < 0 {
		return false
	}

	/* remove it before running the handler, which may schedule it again */
	self.unlink(_Nil, i)
	if fn := self.handlers[typ]; fn != nil {
		fn(self, typ)
	} else {
		log.Warn("eventq: no handler for event", "type", typ, "cycle", now)
	}
	return true
}

/** Savestates **/

// Serialize encodes the pending events in firing order as host order
// {type, cycle} pairs, followed by the terminator.
func (self *Queue) Serialize() []byte {
	buf := make([]byte, 0, self.Len()*8+4)
	for i := self.head; i != _Nil; i = self.nodes[i].next {
		buf = binary.NativeEndian.AppendUint32(buf, uint32(self.nodes[i].typ))
		buf = binary.NativeEndian.AppendUint32(buf, self.nodes[i].at)
	}
	return binary.NativeEndian.AppendUint32(buf, Terminator)
}

// Deserialize replaces the pending events with the ones in buf.
func (self *Queue) Deserialize(buf []byte) error {
	self.Clear()
	for {
		if len(buf) < 4 {
			return errors.New("eventq: missing terminator")
		}

		/* end of the list */
		typ := binary.NativeEndian.Uint32(buf)
		if typ == Terminator {
			return nil
		}

		/* each event is a pair */
		if len(buf) < 8 {
			return errors.Errorf("eventq: truncated event %#x", typ)
		}

		/* schedule it again */
		self.Schedule(Type(typ), binary.NativeEndian.Uint32(buf[4:]))
		buf = buf[8:]
	}
}
