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

package machine

import (
	"github.com/cloudwego/mipsjit/internal/mips"
)

// ReadCOP0 implements MFC0/DMFC0.
func (self *Context) ReadCOP0(r int) uint64 {
	switch r {
	case mips.CP0_COUNT:
		return uint64(self.Cycle)
	case mips.CP0_RANDOM:
		return uint64(self.Random())
	default:
		return self.COP0[r]
	}
}

// WriteCOP0 implements MTC0/DMTC0, including the side effects on timers
// and interrupts.
func (self *Context) WriteCOP0(r int, v uint64) {
	switch r {
	case mips.CP0_INDEX:
		self.COP0[r] = v & 0x8000003f
	case mips.CP0_RANDOM, mips.CP0_BADVADDR, mips.CP0_PREVID:
		break
	case mips.CP0_WIRED:
		self.COP0[r] = v & 0x3f
	case mips.CP0_CONTEXT:
		self.COP0[r] = self.COP0[r]&0x7ffff0 | v&^0x7ffff0
	case mips.CP0_PAGEMASK:
		self.COP0[r] = v & 0x01ffe000
	case mips.CP0_COUNT:
		self.writeCount(uint32(v))
	case mips.CP0_COMPARE:
		self.writeCompare(uint32(v))
	case mips.CP0_STATUS:
		self.writeStatus(uint32(v))
	case mips.CP0_CAUSE:
		self.COP0[r] = self.COP0[r]&^0x300 | v&0x300
	case mips.CP0_CONFIG:
		self.COP0[r] = self.COP0[r]&^0x0f00800f | v&0x0f00800f
	default:
		self.COP0[r] = v
	}
}

func (self *Context) writeCount(v uint32) {
	old := self.Cycle
	self.Cycle = v

	/* pending events are relative to the counter */
	if self.Hooks != nil {
		self.Hooks.CountWritten(old, v)
	}
}

func (self *Context) writeCompare(v uint32) {
	self.COP0[mips.CP0_COMPARE] = uint64(v)
	self.SetIP(CR_IP7, false)

	/* reschedule the timer interrupt */
	if self.Hooks != nil {
		self.Hooks.CompareWritten(v)
	}
}

func (self *Context) writeStatus(v uint32) {
	old := self.Status()
	self.COP0[mips.CP0_STATUS] = uint64(v)

	/* mode changes may invalidate compiled code */
	if self.Hooks != nil && old != v {
		self.Hooks.StatusWritten(old, v)
	}
}
