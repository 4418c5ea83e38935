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

package emitter

import (
	"math"

	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/regcache"
)

const (
	_KSEGSpan  = 0x40000000
	_PhysMask  = 0x1fffffff
	_WordBytes = 4
)

var accessSize = map[uint32]uint32{
	mips.OP_LB:   1,
	mips.OP_LBU:  1,
	mips.OP_SB:   1,
	mips.OP_LH:   2,
	mips.OP_LHU:  2,
	mips.OP_SH:   2,
	mips.OP_LW:   4,
	mips.OP_LWU:  4,
	mips.OP_SW:   4,
	mips.OP_LWC1: 4,
	mips.OP_SWC1: 4,
	mips.OP_LD:   8,
	mips.OP_SD:   8,
	mips.OP_LDC1: 8,
	mips.OP_SDC1: 8,
}

// _Access holds the registers of an inline RAM access. After the guards, t
// is the offset of the access into RAM.
type _Access struct {
	base hir.Reg
	addr hir.Reg
	t    hir.Reg
	u    hir.Reg
	size uint32
}

func (self *Emitter) access(op mips.Instr) _Access {
	return _Access{
		base: self.c.AllocInLo(op.Rs()),
		addr: self.c.AllocTemp(),
		t:    self.c.AllocTemp(),
		u:    self.c.AllocTemp(),
		size: accessSize[op.Op()],
	}
}

// guard emits the checks of the inline path. Anything but a naturally
// aligned access to RAM through KSEG0 or KSEG1 goes to the slow path, and
// so does a store to a page holding translated code.
func (self *Emitter) guard(op mips.Instr, a _Access, s *_Stub, store bool) {
	p := self.p
	slow := s.entry()

	/* the effective address */
	p.ADDI(a.base, int32(op.SImm()), a.addr)

	/* RAM size too small for any inline access */
	if self.cfg.RAMSize < a.size {
		p.JMP(slow)
		return
	}

	/* unmapped segments only */
	p.ADDI(a.addr, math.MinInt32, a.t)
	p.BGEUI(a.t, _KSEGSpan, slow)
	p.ANDI(a.t, _PhysMask, a.t)

	/* natural alignment */
	if a.size > 1 {
		p.ANDI(a.t, int32(a.size-1), a.u)
		p.BNEI(a.u, 0, slow)
	}

	/* inside RAM */
	p.BGEUI(a.t, self.cfg.RAMSize-a.size+1, slow)

	/* stores to code pages must invalidate the translations */
	if store {
		p.SRLI(a.t, machine.PageBits, a.u)
		p.LTAB(machine.OffCodePages, a.u, a.u)
		p.BNEI(a.u, 0, slow)
	}
}

/** Integer Loads and Stores **/

func (self *Emitter) translateLoad(op mips.Instr) {
	c := self.c
	p := self.p
	a := self.access(op)
	s := self.stub(op, a.addr)
	self.guard(op, a, s, false)

	/* doubleword, big endian word order */
	if op.Op() == mips.OP_LD {
		hi := c.AllocOutHi(op.Rt())
		lo := c.AllocOutLo(op.Rt())
		p.LW(a.t, 0, hi)
		p.LW(a.t, _WordBytes, lo)
		self.join(s)
		return
	}

	/* the destination is extended by the load itself */
	switch op.Op() {
	case mips.OP_LB:
		p.XORI(a.t, int32(machine.ByteSwizzle), a.t)
		p.LB(a.t, 0, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_SEX))
	case mips.OP_LBU:
		p.XORI(a.t, int32(machine.ByteSwizzle), a.t)
		p.LBU(a.t, 0, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_ZEX))
	case mips.OP_LH:
		p.XORI(a.t, int32(machine.HalfSwizzle), a.t)
		p.LH(a.t, 0, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_SEX))
	case mips.OP_LHU:
		p.XORI(a.t, int32(machine.HalfSwizzle), a.t)
		p.LHU(a.t, 0, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_ZEX))
	case mips.OP_LW:
		p.LW(a.t, 0, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_SEX))
	default:
		p.LW(a.t, 0, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_ZEX))
	}

	/* the stub comes back here */
	self.join(s)
}

func (self *Emitter) translateStore(op mips.Instr) {
	var hi hir.Reg
	c := self.c
	p := self.p

	/* the value, then the address */
	if op.Op() == mips.OP_SD {
		hi = c.AllocInHi(op.Rt())
	}

	/* the low word is needed by every size */
	lo := c.AllocInLo(op.Rt())
	a := self.access(op)
	s := self.stub(op, a.addr)
	self.guard(op, a, s, true)

	/* write the value */
	switch op.Op() {
	case mips.OP_SB:
		p.XORI(a.t, int32(machine.ByteSwizzle), a.t)
		p.SB(lo, a.t, 0)
	case mips.OP_SH:
		p.XORI(a.t, int32(machine.HalfSwizzle), a.t)
		p.SH(lo, a.t, 0)
	case mips.OP_SW:
		p.SW(lo, a.t, 0)
	default:
		p.SW(hi, a.t, 0)
		p.SW(lo, a.t, _WordBytes)
	}

	/* the stub comes back here */
	self.join(s)
}

/** FPU Loads and Stores **/

// fpr returns the context offsets of the words an FPU load or store moves,
// the first one is stored at the lower guest address.
func (self *Emitter) fpr(op mips.Instr) []int32 {
	ft := op.Ft()
	fr := self.cfg.FR

	/* single words go to the single register view */
	switch op.Op() {
	case mips.OP_LWC1, mips.OP_SWC1:
		return []int32{machine.FPRSingle(ft, fr)}
	default:
		return []int32{machine.FPRHalf(ft, fr, true), machine.FPRHalf(ft, fr, false)}
	}
}

func (self *Emitter) translateLoadFP(op mips.Instr) {
	c := self.c
	p := self.p
	offs := self.fpr(op)

	/* the FP cache must not hold a stale copy */
	for _, off := range offs {
		c.ClobberF(off, _WordBytes)
	}

	/* allocate everything before the guards */
	a := self.access(op)
	v := c.AllocTemp()
	s := self.stub(op, a.addr)
	self.guard(op, a, s, false)

	/* move the words through an integer register */
	for i, off := range offs {
		p.LW(a.t, int32(i*_WordBytes), v)
		p.STC(v, off)
	}

	/* the stub comes back here */
	self.join(s)
}

func (self *Emitter) translateStoreFP(op mips.Instr) {
	c := self.c
	p := self.p
	offs := self.fpr(op)

	/* pending FP results must reach the context first */
	for _, off := range offs {
		c.ClobberF(off, _WordBytes)
	}

	/* allocate everything before the guards */
	a := self.access(op)
	v := c.AllocTemp()
	s := self.stub(op, a.addr)
	self.guard(op, a, s, true)

	/* move the words through an integer register */
	for i, off := range offs {
		p.LDC(off, v)
		p.SW(v, a.t, int32(i*_WordBytes))
	}

	/* the stub comes back here */
	self.join(s)
}
