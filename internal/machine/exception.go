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

// Status bits.
const (
	SR_IE  = 1 << 0
	SR_EXL = 1 << 1
	SR_ERL = 1 << 2
	SR_IM  = 0xff00
	SR_BEV = 1 << 22
	SR_FR  = 1 << 26
	SR_CU0 = 1 << 28
	SR_CU1 = 1 << 29
)

// Cause bits.
const (
	CR_CODE = 0x7c
	CR_IP   = 0xff00
	CR_IP2  = 1 << 10
	CR_IP7  = 1 << 15
	CR_BD   = 1 << 31
)

// FCR31 bits.
const (
	FCR31_RM   = 3
	FCR31_C    = 1 << 23
	FCR31_MASK = 0x0183ffff
)

// Rounding modes in FCR31.RM.
const (
	RM_NEAREST = 0
	RM_ZERO    = 1
	RM_PLUS    = 2
	RM_MINUS   = 3
)

// Exception codes.
const (
	EXC_INT  = 0
	EXC_MOD  = 1
	EXC_TLBL = 2
	EXC_TLBS = 3
	EXC_ADEL = 4
	EXC_ADES = 5
	EXC_SYS  = 8
	EXC_BP   = 9
	EXC_RI   = 10
	EXC_CPU  = 11
	EXC_OV   = 12
	EXC_TR   = 13
	EXC_FPE  = 15
)

const (
	vecRefill  = 0x80000000
	vecGeneral = 0x80000180
	vecBoot    = 0xbfc00200
)

// enter performs the common part of every exception. Anything the
// recompiled code assumed about control flow is void afterwards, Leave
// tells it so.
func (self *Context) enter(code uint32, refill bool) {
	sr := self.Status()
	cr := uint32(self.COP0[mips.CP0_CAUSE])

	/* EPC and BD are only updated outside of exception level */
	if sr&SR_EXL == 0 {
		if self.Delay != 0 {
			cr |= CR_BD
			self.COP0[mips.CP0_EPC] = uint64(int32(self.PC - 4))
		} else {
			cr &^= CR_BD
			self.COP0[mips.CP0_EPC] = uint64(int32(self.PC))
		}
	} else {
		refill = false
	}

	/* pick the vector */
	vec := uint32(vecGeneral)
	if refill {
		vec = vecRefill
	}

	/* bootstrap vectors */
	if sr&SR_BEV != 0 {
		vec = vecBoot + vec&0x1ff
	}

	/* update Cause and Status, then jump */
	self.COP0[mips.CP0_CAUSE] = uint64(int32(cr&^CR_CODE | code<<2&CR_CODE))
	self.COP0[mips.CP0_STATUS] |= SR_EXL
	self.PC = vec
	self.Delay = 0
	self.Leave = 1
}

// RaiseGeneralException redirects the CPU to the general exception vector
// with the given cause code.
func (self *Context) RaiseGeneralException(code uint32) {
	self.enter(code, false)
}

// RaiseTLBRefill raises a TLB miss for vaddr.
func (self *Context) RaiseTLBRefill(vaddr uint32, write bool) {
	self.setBadVAddr(vaddr)
	self.enter(tlbCode(write), true)
}

// RaiseAddressError raises an address error for vaddr.
func (self *Context) RaiseAddressError(vaddr uint32, write bool) {
	self.COP0[mips.CP0_BADVADDR] = uint64(int32(vaddr))
	if write {
		self.enter(EXC_ADES, false)
	} else {
		self.enter(EXC_ADEL, false)
	}
}

func (self *Context) raiseTLB(vaddr uint32, write bool, mod bool) {
	self.setBadVAddr(vaddr)
	if mod {
		self.enter(EXC_MOD, false)
	} else {
		self.enter(tlbCode(write), false)
	}
}

func (self *Context) setBadVAddr(vaddr uint32) {
	asid := self.COP0[mips.CP0_ENTRYHI] & 0xff
	self.COP0[mips.CP0_BADVADDR] = uint64(int32(vaddr))
	self.COP0[mips.CP0_CONTEXT] = self.COP0[mips.CP0_CONTEXT]&^0x7ffff0 | uint64(vaddr>>9)&0x7ffff0
	self.COP0[mips.CP0_ENTRYHI] = uint64(int32(vaddr&0xffffe000)) | asid
}

func tlbCode(write bool) uint32 {
	if write {
		return EXC_TLBS
	} else {
		return EXC_TLBL
	}
}

// InterruptPending reports whether an enabled interrupt is asserted.
func (self *Context) InterruptPending() bool {
	sr := self.Status()
	cr := uint32(self.COP0[mips.CP0_CAUSE])
	return sr&(SR_IE|SR_EXL|SR_ERL) == SR_IE && sr&cr&SR_IM != 0
}

// CheckInterrupt delivers a pending interrupt, if any.
func (self *Context) CheckInterrupt() bool {
	if !self.InterruptPending() {
		return false
	} else {
		self.enter(EXC_INT, false)
		return true
	}
}

// SetIP asserts or clears Cause.IP bits.
func (self *Context) SetIP(bits uint32, on bool) {
	if on {
		self.COP0[mips.CP0_CAUSE] |= uint64(bits & CR_IP)
	} else {
		self.COP0[mips.CP0_CAUSE] &^= uint64(bits & CR_IP)
	}
}

// ERET returns from an exception or an error.
func (self *Context) ERET() {
	if self.Status()&SR_ERL != 0 {
		self.PC = uint32(self.COP0[mips.CP0_ERROREPC])
		self.COP0[mips.CP0_STATUS] &^= SR_ERL
	} else {
		self.PC = uint32(self.COP0[mips.CP0_EPC])
		self.COP0[mips.CP0_STATUS] &^= SR_EXL
	}
	self.LLBit = 0
	self.Leave = 1
}
