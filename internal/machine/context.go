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

// Package machine holds the guest CPU state and the collaborators the
// recompiler talks to: guest memory, address translation and exceptions.
package machine

import (
	"encoding/binary"
	"unsafe"

	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/mips"
)

// Context is the state of one guest CPU. Compiled traces address its
// fields by offset, so the layout up to COP0 is part of the trace ABI.
type Context struct {
	hir.Header
	GPR       [32]uint64
	HI        uint64
	LO        uint64
	FPR       [32]uint64
	PC        uint32
	Delay     uint32
	Cycle     uint32
	NextEvent uint32
	Leave     uint32
	LastCell  uint32
	CallAddr  uint32
	CallOp    uint32
	CallCount uint32
	FCR0      uint32
	FCR31     uint32
	LLBit     uint32
	RAMSize   uint32
	CodePages uintptr
	COP0      [32]uint64
	TLB       [NumTLB]TLBEntry
	Mem       *Memory
	Hooks     Hooks
	Quirk     Quirk
}

// Hooks receives the COP0 side effects that reach outside the CPU.
type Hooks interface {
	CountWritten(old uint32, new uint32)
	CompareWritten(v uint32)
	StatusWritten(old uint32, new uint32)
	TLBWritten(old TLBEntry, new TLBEntry)
}

var (
	offGPR = int32(unsafe.Offsetof(Context{}.GPR))
	offFPR = int32(unsafe.Offsetof(Context{}.FPR))
)

var (
	OffPC        = int32(unsafe.Offsetof(Context{}.PC))
	OffDelay     = int32(unsafe.Offsetof(Context{}.Delay))
	OffCycle     = int32(unsafe.Offsetof(Context{}.Cycle))
	OffNextEvent = int32(unsafe.Offsetof(Context{}.NextEvent))
	OffLeave     = int32(unsafe.Offsetof(Context{}.Leave))
	OffLastCell  = int32(unsafe.Offsetof(Context{}.LastCell))
	OffCallAddr  = int32(unsafe.Offsetof(Context{}.CallAddr))
	OffCallOp    = int32(unsafe.Offsetof(Context{}.CallOp))
	OffCallCount = int32(unsafe.Offsetof(Context{}.CallCount))
	OffFCR31     = int32(unsafe.Offsetof(Context{}.FCR31))
	OffLLBit     = int32(unsafe.Offsetof(Context{}.LLBit))
	OffCodePages = int32(unsafe.Offsetof(Context{}.CodePages))
)

// HostLittleEndian decides which half of a 64-bit context slot holds its
// low 32 bits, and how RAM bytes are swizzled inside a host word.
var HostLittleEndian = binary.NativeEndian.Uint16([]byte{1, 0}) == 1

var (
	loHalf int32
	hiHalf int32
)

// Byte and halfword addresses of RAM are XOR-ed with these before the host
// touches the word array directly.
var (
	ByteSwizzle uint32
	HalfSwizzle uint32
)

func init() {
	if HostLittleEndian {
		loHalf, hiHalf = 0, 4
		ByteSwizzle, HalfSwizzle = 3, 2
	} else {
		loHalf, hiHalf = 4, 0
		ByteSwizzle, HalfSwizzle = 0, 0
	}
}

// GPRLo is the context offset of the low word of r. HI and LO follow the
// 32 GPRs, so r may also be mips.HI or mips.LO.
func GPRLo(r int) int32 {
	return offGPR + int32(r)*8 + loHalf
}

// GPRHi is the context offset of the high word of r.
func GPRHi(r int) int32 {
	return offGPR + int32(r)*8 + hiHalf
}

// FPRSingle is the context offset of single precision register n. With
// Status.FR clear, odd registers live in the high half of the even one.
func FPRSingle(n int, fr bool) int32 {
	if fr {
		return offFPR + int32(n)*8 + loHalf
	} else if n&1 == 0 {
		return offFPR + int32(n)*8 + loHalf
	} else {
		return offFPR + int32(n&^1)*8 + hiHalf
	}
}

// FPRDouble is the context offset of double precision register n.
func FPRDouble(n int, fr bool) int32 {
	if fr {
		return offFPR + int32(n)*8
	} else {
		return offFPR + int32(n&^1)*8
	}
}

// FPRHalf is the context offset of one 32-bit half of the 64-bit FPR slot
// that holds double register n.
func FPRHalf(n int, fr bool, hi bool) int32 {
	if hi {
		return FPRDouble(n, fr) + hiHalf
	} else {
		return FPRDouble(n, fr) + loHalf
	}
}

const (
	ResetVector = 0xbfc00000
)

// NewContext creates a powered-on CPU attached to mem.
func NewContext(mem *Memory) *Context {
	ret := new(Context)
	ret.Mem = mem
	ret.Reset()
	return ret
}

// Reset puts the CPU into the state the boot ROM leaves it in.
func (self *Context) Reset() {
	mem := self.Mem
	hooks := self.Hooks
	quirk := self.Quirk

	/* clear everything except the collaborators */
	*self = Context{Mem: mem, Hooks: hooks, Quirk: quirk}
	self.PC = ResetVector
	self.FCR0 = 0x511
	self.COP0[mips.CP0_RANDOM] = NumTLB - 1
	self.COP0[mips.CP0_STATUS] = SR_CU1 | SR_CU0 | SR_FR
	self.COP0[mips.CP0_PREVID] = 0x0b22
	self.COP0[mips.CP0_CONFIG] = 0x7006e463

	/* attach the memory */
	if mem != nil {
		self.RAMSize = uint32(len(mem.RAM) * 4)
		self.CodePages = uintptr(unsafe.Pointer(&mem.CodePages[0]))
	}
}

func (self *Context) ptr(off int32) unsafe.Pointer {
	return unsafe.Add(unsafe.Pointer(self), off)
}

// Status returns the low word of the COP0 Status register.
func (self *Context) Status() uint32 {
	return uint32(self.COP0[mips.CP0_STATUS])
}

// FR reports whether the FPU is in 32 x 64-bit register mode.
func (self *Context) FR() bool {
	return self.Status()&SR_FR != 0
}

func (self *Context) FS(n int) uint32 {
	return *(*uint32)(self.ptr(FPRSingle(n, self.FR())))
}

func (self *Context) SetFS(n int, v uint32) {
	*(*uint32)(self.ptr(FPRSingle(n, self.FR()))) = v
}

func (self *Context) FD(n int) uint64 {
	return *(*uint64)(self.ptr(FPRDouble(n, self.FR())))
}

func (self *Context) SetFD(n int, v uint64) {
	*(*uint64)(self.ptr(FPRDouble(n, self.FR()))) = v
}

// Reg reads r0..r31, HI or LO.
func (self *Context) Reg(r int) uint64 {
	switch r {
	case mips.HI:
		return self.HI
	case mips.LO:
		return self.LO
	default:
		return self.GPR[r]
	}
}

// SetReg writes r1..r31, HI or LO. Writes to r0 are discarded.
func (self *Context) SetReg(r int, v uint64) {
	switch r {
	case 0:
		break
	case mips.HI:
		self.HI = v
	case mips.LO:
		self.LO = v
	default:
		self.GPR[r] = v
	}
}
