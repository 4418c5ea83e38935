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

package engine

import (
	"github.com/cloudwego/mipsjit/internal/eventq"
	"github.com/cloudwego/mipsjit/internal/log"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
)

const (
	_Half  = 1 << 31
	_Match = 1 << 30
)

// install registers the handlers of the events the CPU itself owns.
func (self *Engine) install() {
	self.queue.Handle(eventq.Compare, self.onCompare)
	self.queue.Handle(eventq.Check, self.onCheck)
	self.queue.Handle(eventq.Special, self.onSpecial)
	self.queue.Handle(eventq.Reset, self.onReset)
}

// Handle installs the handler of a device event.
func (self *Engine) Handle(typ eventq.Type, fn eventq.Handler) {
	self.queue.Handle(typ, fn)
}

// events fires every due event, then delivers a pending interrupt.
func (self *Engine) events() {
	for i := 0; i < self.opts.EventSlots && self.queue.CheckAndDispatch(self.ctx.Cycle); i++ {
	}

	/* when compiled code must come back */
	if at, ok := self.queue.Next(); ok {
		self.ctx.NextEvent = at
	} else {
		self.ctx.NextEvent = self.ctx.Cycle + _FarAway
	}

	/* interrupts are taken between traces */
	self.ctx.CheckInterrupt()
}

/** Timer **/

// armCompare schedules the timer interrupt for when the counter next
// equals cmp. A match more than half the counter range away is reached in
// two steps.
func (self *Engine) armCompare(cmp uint32) {
	self.queue.Cancel(eventq.Compare)
	if d := cmp - self.ctx.Cycle; d != 0 && d < _Half {
		self.queue.Schedule(eventq.Compare, cmp)
	} else {
		self.queue.Schedule(eventq.Compare, cmp+_Half)
	}
}

func (self *Engine) onCompare(_ *eventq.Queue, _ eventq.Type) {
	cmp := uint32(self.ctx.COP0[mips.CP0_COMPARE])

	/* either the match itself or the half way point */
	if self.ctx.Cycle-cmp < _Match {
		self.ctx.SetIP(machine.CR_IP7, true)
	}

	/* and the next one */
	self.armCompare(cmp)
}

func (self *Engine) onCheck(_ *eventq.Queue, _ eventq.Type) {
	self.ctx.CheckInterrupt()
}

func (self *Engine) onSpecial(q *eventq.Queue, _ eventq.Type) {
	q.SpecialDone = true
}

// onReset powers the machine on again. Nothing translated so far can be
// trusted afterwards.
func (self *Engine) onReset(q *eventq.Queue, _ eventq.Type) {
	log.Info("engine: reset", "pc", self.ctx.PC, "cycle", self.ctx.Cycle)
	q.Clear()
	self.InvalidateAll()
	self.ctx.Reset()
	self.attach()
}

/** COP0 Hooks **/

type _Hooks struct {
	e *Engine
}

// CountWritten keeps pending events the same distance away. The timer is
// matched against the counter itself, so it is armed again.
func (self _Hooks) CountWritten(old uint32, new uint32) {
	self.e.queue.Shift(new - old)
	self.e.armCompare(uint32(self.e.ctx.COP0[mips.CP0_COMPARE]))
}

func (self _Hooks) CompareWritten(v uint32) {
	self.e.armCompare(v)
}

// StatusWritten retires translations made for the other FPU register mode,
// and has interrupts checked once the writing trace ends.
func (self _Hooks) StatusWritten(old uint32, new uint32) {
	if (old^new)&machine.SR_FR != 0 {
		self.e.InvalidateAll()
	}
	if new&machine.SR_IE != 0 {
		self.e.queue.Cancel(eventq.Check)
		self.e.queue.ScheduleAfter(eventq.Check, 0)
	}
}

// TLBWritten retires the translations made through the replaced entry.
func (self _Hooks) TLBWritten(old machine.TLBEntry, _ machine.TLBEntry) {
	if old.Valid() {
		lo, hi := old.Range()
		for va := lo; va-lo < hi-lo; va += machine.PageSize {
			self.e.cache.InvalidatePage(va >> machine.PageBits)
		}
	}
}
