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
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/regcache"
)

/** Operand Helpers **/

// is32 reports whether guest register r holds a sign-extended 32-bit value
// before the current instruction.
func (self *Emitter) is32(r int) bool {
	return self.cur.Width.Is32(r)
}

// out32 maps rd for a sign-extended 32-bit result.
func (self *Emitter) out32(rd int) hir.Reg {
	return self.c.AllocOutExt(rd, regcache.MEM_LO32_SEX)
}

// move64 copies guest register src to dst, both of which may be HI or LO.
func (self *Emitter) move64(dst int, src int) {
	c := self.c
	p := self.p

	/* a 32-bit value only needs its low word */
	if self.is32(src) {
		x := c.AllocInLo(src)
		p.MOV(x, self.out32(dst))
		return
	}

	/* full 64-bit copy */
	xh := c.AllocInHi(src)
	xl := c.AllocInLo(src)
	p.MOV(xh, c.AllocOutHi(dst))
	p.MOV(xl, c.AllocOutLo(dst))
}

/** Shifts **/

func (self *Emitter) translateShift(op mips.Instr) {
	x := self.c.AllocInLo(op.Rt())
	d := self.out32(op.Rd())

	/* 32-bit shifts only look at the low word */
	switch op.Funct() {
	case mips.FN_SLL:
		self.p.SLLI(x, op.Sa(), d)
	case mips.FN_SRL:
		self.p.SRLI(x, op.Sa(), d)
	default:
		self.p.SRAI(x, op.Sa(), d)
	}
}

func (self *Emitter) translateShiftV(op mips.Instr) {
	x := self.c.AllocInLo(op.Rt())
	s := self.c.AllocInLo(op.Rs())
	d := self.out32(op.Rd())

	/* the amount is taken modulo 32 */
	switch op.Funct() {
	case mips.FN_SLLV:
		self.p.SLLV(x, s, d)
	case mips.FN_SRLV:
		self.p.SRLV(x, s, d)
	default:
		self.p.SRAV(x, s, d)
	}
}

func (self *Emitter) translateShift64(op mips.Instr) {
	c := self.c
	p := self.p
	sa := op.Sa()
	rd := op.Rd()
	rt := op.Rt()

	/* the 32 forms move one word into the other */
	switch op.Funct() {
	case mips.FN_DSLL32:
		x := c.AllocInLo(rt)
		p.SLLI(x, sa, c.AllocOutHi(rd))
		p.LI(0, c.AllocOutLo(rd))
		return
	case mips.FN_DSRL32:
		x := c.AllocInHi(rt)
		p.SRLI(x, sa, c.AllocOutExt(rd, regcache.MEM_LO32_ZEX))
		return
	case mips.FN_DSRA32:
		x := c.AllocInHi(rt)
		p.SRAI(x, sa, self.out32(rd))
		return
	}

	/* a zero amount is a plain move */
	if sa == 0 {
		self.move64(rd, rt)
		return
	}

	/* both words take part */
	xh := c.AllocInHi(rt)
	xl := c.AllocInLo(rt)
	h := c.AllocTemp()
	l := c.AllocTemp()
	u := c.AllocTemp()

	/* the word boundary is crossed by sa bits */
	switch op.Funct() {
	case mips.FN_DSLL:
		p.SLLI(xh, sa, h)
		p.SRLI(xl, 32-sa, u)
		p.OR(h, u, h)
		p.SLLI(xl, sa, l)
	case mips.FN_DSRL:
		p.SRLI(xl, sa, l)
		p.SLLI(xh, 32-sa, u)
		p.OR(l, u, l)
		p.SRLI(xh, sa, h)
	default:
		p.SRLI(xl, sa, l)
		p.SLLI(xh, 32-sa, u)
		p.OR(l, u, l)
		p.SRAI(xh, sa, h)
	}

	/* store the result */
	p.MOV(h, c.AllocOutHi(rd))
	p.MOV(l, c.AllocOutLo(rd))
}

/** Multiply Unit **/

func (self *Emitter) translateSYNC(_ mips.Instr) {}

func (self *Emitter) translateMFHI(op mips.Instr) {
	self.move64(op.Rd(), mips.HI)
}

func (self *Emitter) translateMFLO(op mips.Instr) {
	self.move64(op.Rd(), mips.LO)
}

func (self *Emitter) translateMTHI(op mips.Instr) {
	self.move64(mips.HI, op.Rs())
}

func (self *Emitter) translateMTLO(op mips.Instr) {
	self.move64(mips.LO, op.Rs())
}

func (self *Emitter) translateMULT(op mips.Instr) {
	x := self.c.AllocInLo(op.Rs())
	y := self.c.AllocInLo(op.Rt())
	lo := self.c.AllocOutExt(mips.LO, regcache.MEM_LO32_SEX)
	hi := self.c.AllocOutExt(mips.HI, regcache.MEM_LO32_SEX)

	/* 32 x 32 -> 64, each half sign extended */
	if op.Funct() == mips.FN_MULT {
		self.p.MUL(x, y, lo, hi)
	} else {
		self.p.MULU(x, y, lo, hi)
	}
}

/** Arithmetic and Logic **/

// translateADD emits ADD and SUB, which trap on signed overflow. The trap
// is taken by interpreting the instruction.
func (self *Emitter) translateADD(op mips.Instr) {
	x := self.c.AllocInLo(op.Rs())
	y := self.c.AllocInLo(op.Rt())
	s := self.stub(op, hir.RZ)

	/* overflow goes to the slow path */
	if op.Funct() == mips.FN_ADD {
		self.p.BOVFA(x, y, s.entry())
		self.p.ADD(x, y, self.out32(op.Rd()))
	} else {
		self.p.BOVFS(x, y, s.entry())
		self.p.SUB(x, y, self.out32(op.Rd()))
	}

	/* the stub comes back here */
	self.join(s)
}

func (self *Emitter) translateADDU(op mips.Instr) {
	x := self.c.AllocInLo(op.Rs())
	y := self.c.AllocInLo(op.Rt())

	/* wrapping 32-bit arithmetic */
	if op.Funct() == mips.FN_ADDU {
		self.p.ADD(x, y, self.out32(op.Rd()))
	} else {
		self.p.SUB(x, y, self.out32(op.Rd()))
	}
}

func (self *Emitter) logic(fn uint32, x hir.Reg, y hir.Reg, z hir.Reg) {
	switch fn {
	case mips.FN_AND:
		self.p.AND(x, y, z)
	case mips.FN_OR:
		self.p.OR(x, y, z)
	case mips.FN_XOR:
		self.p.XOR(x, y, z)
	default:
		self.p.NOR(x, y, z)
	}
}

func (self *Emitter) translateLogic(op mips.Instr) {
	c := self.c
	fn := op.Funct()
	rd := op.Rd()
	rs := op.Rs()
	rt := op.Rt()

	/* bitwise ops keep sign extension */
	if self.is32(rs) && self.is32(rt) {
		self.logic(fn, c.AllocInLo(rs), c.AllocInLo(rt), self.out32(rd))
		return
	}

	/* one op per word */
	xh := c.AllocInHi(rs)
	yh := c.AllocInHi(rt)
	xl := c.AllocInLo(rs)
	yl := c.AllocInLo(rt)
	self.logic(fn, xh, yh, c.AllocOutHi(rd))
	self.logic(fn, xl, yl, c.AllocOutLo(rd))
}

// compare64 computes x < y over (hi, lo) word pairs into t.
func (self *Emitter) compare64(signed bool, xh hir.Reg, xl hir.Reg, yh hir.Reg, yl hir.Reg, t hir.Reg) {
	done := self.label("cmp")

	/* the high words decide unless they are equal */
	if signed {
		self.p.SLT(xh, yh, t)
	} else {
		self.p.SLTU(xh, yh, t)
	}

	/* low words compare unsigned */
	self.p.BNE(xh, yh, done)
	self.p.SLTU(xl, yl, t)
	self.p.Label(done)
}

func (self *Emitter) translateSLT(op mips.Instr) {
	c := self.c
	rs := op.Rs()
	rt := op.Rt()
	signed := op.Funct() == mips.FN_SLT

	/* sign extended values compare like their low words */
	if self.is32(rs) && self.is32(rt) {
		x := c.AllocInLo(rs)
		y := c.AllocInLo(rt)
		d := c.AllocOutExt(op.Rd(), regcache.MEM_LO32_ZEX)
		if signed {
			self.p.SLT(x, y, d)
		} else {
			self.p.SLTU(x, y, d)
		}
		return
	}

	/* full 64-bit compare */
	xh := c.AllocInHi(rs)
	xl := c.AllocInLo(rs)
	yh := c.AllocInHi(rt)
	yl := c.AllocInLo(rt)
	t := c.AllocTemp()
	self.compare64(signed, xh, xl, yh, yl, t)
	self.p.MOV(t, c.AllocOutExt(op.Rd(), regcache.MEM_LO32_ZEX))
}

func (self *Emitter) translateDADDU(op mips.Instr) {
	c := self.c
	p := self.p
	xh := c.AllocInHi(op.Rs())
	xl := c.AllocInLo(op.Rs())
	yh := c.AllocInHi(op.Rt())
	yl := c.AllocInLo(op.Rt())
	h := c.AllocTemp()
	l := c.AllocTemp()
	cy := c.AllocTemp()

	/* carry or borrow between the words */
	if op.Funct() == mips.FN_DADDU {
		p.ADD(xl, yl, l)
		p.SLTU(l, xl, cy)
		p.ADD(xh, yh, h)
		p.ADD(h, cy, h)
	} else {
		p.SUB(xl, yl, l)
		p.SLTU(xl, yl, cy)
		p.SUB(xh, yh, h)
		p.SUB(h, cy, h)
	}

	/* store the result */
	p.MOV(h, c.AllocOutHi(op.Rd()))
	p.MOV(l, c.AllocOutLo(op.Rd()))
}

/** Immediates **/

func (self *Emitter) translateADDI(op mips.Instr) {
	x := self.c.AllocInLo(op.Rs())
	y := self.c.AllocConst(uint32(op.SImm()))
	s := self.stub(op, hir.RZ)

	/* overflow goes to the slow path */
	self.p.BOVFA(x, y, s.entry())
	self.p.ADDI(x, int32(op.SImm()), self.out32(op.Rt()))
	self.join(s)
}

func (self *Emitter) translateADDIU(op mips.Instr) {
	x := self.c.AllocInLo(op.Rs())
	self.p.ADDI(x, int32(op.SImm()), self.out32(op.Rt()))
}

func (self *Emitter) translateDADDIU(op mips.Instr) {
	c := self.c
	p := self.p
	v := int32(op.SImm())
	xh := c.AllocInHi(op.Rs())
	xl := c.AllocInLo(op.Rs())
	h := c.AllocTemp()
	l := c.AllocTemp()
	cy := c.AllocTemp()

	/* the immediate is sign extended to 64 bits */
	p.ADDI(xl, v, l)
	p.SLTU(l, xl, cy)
	p.ADDI(xh, v>>31, h)
	p.ADD(h, cy, h)

	/* store the result */
	p.MOV(h, c.AllocOutHi(op.Rt()))
	p.MOV(l, c.AllocOutLo(op.Rt()))
}

func (self *Emitter) translateSLTI(op mips.Instr) {
	c := self.c
	p := self.p
	rs := op.Rs()
	v := int32(op.SImm())
	signed := op.Op() == mips.OP_SLTI

	/* the immediate is sign extended even for SLTIU */
	if self.is32(rs) {
		x := c.AllocInLo(rs)
		d := c.AllocOutExt(op.Rt(), regcache.MEM_LO32_ZEX)
		if signed {
			p.SLTI(x, v, d)
		} else {
			p.SLTUI(x, uint32(v), d)
		}
		return
	}

	/* full 64-bit compare against the extended immediate */
	xh := c.AllocInHi(rs)
	xl := c.AllocInLo(rs)
	t := c.AllocTemp()
	done := self.label("cmp")

	/* the high words decide unless they are equal */
	if signed {
		p.SLTI(xh, v>>31, t)
	} else {
		p.SLTUI(xh, uint32(v>>31), t)
	}

	/* low words compare unsigned */
	p.BNEI(xh, v>>31, done)
	p.SLTUI(xl, uint32(v), t)
	p.Label(done)
	p.MOV(t, c.AllocOutExt(op.Rt(), regcache.MEM_LO32_ZEX))
}

func (self *Emitter) translateANDI(op mips.Instr) {
	x := self.c.AllocInLo(op.Rs())
	self.p.ANDI(x, int32(op.UImm()), self.c.AllocOutExt(op.Rt(), regcache.MEM_LO32_ZEX))
}

// translateORI emits ORI and XORI, which leave the high word alone.
func (self *Emitter) translateORI(op mips.Instr) {
	c := self.c
	p := self.p
	rs := op.Rs()
	rt := op.Rt()
	v := int32(op.UImm())

	/* the low word of a 32-bit value */
	if self.is32(rs) {
		x := c.AllocInLo(rs)
		d := self.out32(rt)
		if op.Op() == mips.OP_ORI {
			p.ORI(x, v, d)
		} else {
			p.XORI(x, v, d)
		}
		return
	}

	/* copy the high word through */
	xh := c.AllocInHi(rs)
	xl := c.AllocInLo(rs)
	p.MOV(xh, c.AllocOutHi(rt))

	/* then the low word */
	if d := c.AllocOutLo(rt); op.Op() == mips.OP_ORI {
		p.ORI(xl, v, d)
	} else {
		p.XORI(xl, v, d)
	}
}

func (self *Emitter) translateLUI(op mips.Instr) {
	v := uint32(op.Imm()) << 16
	d := self.out32(op.Rt())
	self.p.LI(int32(v), d)
	self.c.SetConst(d, v)
}
