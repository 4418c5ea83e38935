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
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/regcache"
)

const (
	_FCR31_CBit = 23
)

// foff returns the context offset of FPR n in the format of op.
func (self *Emitter) foff(op mips.Instr, n int) (int32, bool, uint8) {
	if op.Fmt() == mips.FMT_D {
		return machine.FPRDouble(n, self.cfg.FR), true, 8
	} else {
		return machine.FPRSingle(n, self.cfg.FR), false, 4
	}
}

func (self *Emitter) translateFArith(op mips.Instr) {
	fs, dbl, sz := self.foff(op, op.Fs())
	ft, _, _ := self.foff(op, op.Ft())
	fd, _, _ := self.foff(op, op.Fd())
	x := self.c.AllocInF(fs, dbl)
	y := self.c.AllocInF(ft, dbl)
	z := self.c.AllocOutF(fd, dbl)

	/* IEEE arithmetic, rounding to nearest */
	switch op.Funct() {
	case mips.F_ADD:
		self.p.FADD(sz, x, y, z)
	case mips.F_SUB:
		self.p.FSUB(sz, x, y, z)
	case mips.F_MUL:
		self.p.FMUL(sz, x, y, z)
	default:
		self.p.FDIV(sz, x, y, z)
	}
}

func (self *Emitter) translateFUnary(op mips.Instr) {
	fs, dbl, sz := self.foff(op, op.Fs())
	fd, _, _ := self.foff(op, op.Fd())
	x := self.c.AllocInF(fs, dbl)
	z := self.c.AllocOutF(fd, dbl)

	/* single operand */
	switch op.Funct() {
	case mips.F_SQRT:
		self.p.FSQRT(sz, x, z)
	case mips.F_ABS:
		self.p.FABS(sz, x, z)
	case mips.F_MOV:
		self.p.FMOV(sz, x, z)
	default:
		self.p.FNEG(sz, x, z)
	}
}

// translateFCMP sets the condition bit of FCR31 from a C.cond.fmt compare.
func (self *Emitter) translateFCMP(op mips.Instr) {
	c := self.c
	p := self.p
	fs, dbl, sz := self.foff(op, op.Fs())
	ft, _, _ := self.foff(op, op.Ft())
	x := c.AllocInF(fs, dbl)
	y := c.AllocInF(ft, dbl)
	t := c.AllocTemp()

	/* the low three bits select unordered, equal and less than */
	p.FCMP(sz, x, y, int(op.Cond()&7), t)
	fcr := c.AllocIn32(machine.OffFCR31)
	c.AllocOut32(machine.OffFCR31)

	/* replace the C bit */
	p.ANDI(fcr, ^machine.FCR31_C, fcr)
	p.SLLI(t, _FCR31_CBit, t)
	p.OR(fcr, t, fcr)
}

/** Moves **/

func (self *Emitter) translateMFC1(op mips.Instr) {
	off := machine.FPRSingle(op.Fs(), self.cfg.FR)
	self.c.ClobberF(off, 4)
	self.p.LDC(off, self.c.AllocOutExt(op.Rt(), regcache.MEM_LO32_SEX))
}

func (self *Emitter) translateDMFC1(op mips.Instr) {
	c := self.c
	fs := op.Fs()
	c.ClobberF(machine.FPRDouble(fs, self.cfg.FR), 8)

	/* both halves */
	hi := c.AllocOutHi(op.Rt())
	lo := c.AllocOutLo(op.Rt())
	self.p.LDC(machine.FPRHalf(fs, self.cfg.FR, true), hi)
	self.p.LDC(machine.FPRHalf(fs, self.cfg.FR, false), lo)
}

func (self *Emitter) translateMTC1(op mips.Instr) {
	off := machine.FPRSingle(op.Fs(), self.cfg.FR)
	self.c.ClobberF(off, 4)
	self.store(self.c.AllocInLo(op.Rt()), off)
}

func (self *Emitter) translateDMTC1(op mips.Instr) {
	c := self.c
	fs := op.Fs()
	c.ClobberF(machine.FPRDouble(fs, self.cfg.FR), 8)

	/* both halves */
	self.store(c.AllocInHi(op.Rt()), machine.FPRHalf(fs, self.cfg.FR, true))
	self.store(c.AllocInLo(op.Rt()), machine.FPRHalf(fs, self.cfg.FR, false))
}

func (self *Emitter) translateCFC1(op mips.Instr) {
	x := self.c.AllocIn32(machine.OffFCR31)
	self.p.MOV(x, self.c.AllocOutExt(op.Rt(), regcache.MEM_LO32_SEX))
}

// store writes r to the context, r0 included.
func (self *Emitter) store(r hir.Reg, off int32) {
	if r == hir.RZ {
		self.p.STCI(0, off)
	} else {
		self.p.STC(r, off)
	}
}
