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

package trace

import (
	"math/bits"

	"github.com/cloudwego/mipsjit/internal/mips"
)

// ConstAnalysis tracks which bits of every GPR hold statically known values.
// Bits[r] never has a bit set outside Mask[r], and r0 is always fully known
// to be zero.
type ConstAnalysis struct {
	Mask [32]uint64
	Bits [32]uint64
}

func InitConstAnalysis(a *ConstAnalysis) {
	*a = ConstAnalysis{}
	a.Mask[0] = ^uint64(0)
}

// Known returns the value of r if every bit of it is known.
func (self *ConstAnalysis) Known(r int) (uint64, bool) {
	return self.Bits[r], self.Mask[r] == ^uint64(0)
}

// IsZero reports whether r is known to hold zero.
func (self *ConstAnalysis) IsZero(r int) bool {
	v, ok := self.Known(r)
	return ok && v == 0
}

func (self *ConstAnalysis) get(r int) kbits {
	return kbits{m: self.Mask[r], b: self.Bits[r]}
}

func (self *ConstAnalysis) set(r int, v kbits) {
	if r != 0 {
		self.Mask[r] = v.m
		self.Bits[r] = v.b & v.m
	}
}

/** Known-bits lattice **/

type kbits struct {
	m uint64
	b uint64
}

var unknown = kbits{}

func known(v uint64) kbits {
	return kbits{m: ^uint64(0), b: v}
}

func (self kbits) full() bool {
	return self.m == ^uint64(0)
}

func sext32(v kbits) kbits {
	m := v.m & 0xffffffff
	b := v.b & 0xffffffff
	if m&0x80000000 != 0 {
		m |= 0xffffffff00000000
		if b&0x80000000 != 0 {
			b |= 0xffffffff00000000
		}
	}
	return kbits{m, b}
}

func zext32(v kbits) kbits {
	return kbits{v.m | 0xffffffff00000000, v.b & 0xffffffff}
}

func kand(x kbits, y kbits) kbits {
	m := (x.m & y.m) | (x.m &^ x.b) | (y.m &^ y.b)
	return kbits{m, x.b & y.b & m}
}

func kor(x kbits, y kbits) kbits {
	m := (x.m & y.m) | (x.m & x.b) | (y.m & y.b)
	return kbits{m, (x.b | y.b) & m}
}

func kxor(x kbits, y kbits) kbits {
	m := x.m & y.m
	return kbits{m, (x.b ^ y.b) & m}
}

func knot(x kbits) kbits {
	return kbits{x.m, ^x.b & x.m}
}

// kadd keeps the run of low bits known on both sides, carries never flow
// from an unknown bit into it.
func kadd(x kbits, y kbits) kbits {
	n := bits.TrailingZeros64(^(x.m & y.m))
	if n == 64 {
		return known(x.b + y.b)
	}
	m := uint64(1)<<uint(n) - 1
	return kbits{m, (x.b + y.b) & m}
}

func ksub(x kbits, y kbits) kbits {
	n := bits.TrailingZeros64(^(x.m & y.m))
	if n == 64 {
		return known(x.b - y.b)
	}
	m := uint64(1)<<uint(n) - 1
	return kbits{m, (x.b - y.b) & m}
}

func kshl(x kbits, s uint32) kbits {
	return kbits{(x.m << s) | (uint64(1)<<s - 1), x.b << s}
}

func kshr(x kbits, s uint32) kbits {
	return kbits{(x.m >> s) | ^(^uint64(0) >> s), x.b >> s}
}

func ksar(x kbits, s uint32) kbits {
	m := x.m >> s
	b := uint64(int64(x.b) >> s)
	if x.m>>63 != 0 {
		m |= ^(^uint64(0) >> s)
	}
	return kbits{m, b & m}
}

// kslt evaluates a set-on-less-than, only bit 0 can be unknown.
func kslt(x kbits, y kbits, unsigned bool) kbits {
	if !x.full() || !y.full() {
		return kbits{^uint64(1), 0}
	}
	if unsigned {
		return known(b2u(x.b < y.b))
	}
	return known(b2u(int64(x.b) < int64(y.b)))
}

func b2u(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

/** Operand substitution **/

const (
	_RS_mask = mips.Instr(0x1f << 21)
	_RT_mask = mips.Instr(0x1f << 16)
)

// sources reports which of the rs/rt fields are pure GPR inputs of op. Fields
// that are also written (LWL rt, SC rt) are excluded.
func sources(op mips.Instr) (rs bool, rt bool) {
	switch op.Op() {
	case mips.OP_SPECIAL:
		switch op.Funct() {
		case mips.FN_SLL, mips.FN_SRL, mips.FN_SRA, mips.FN_DSLL, mips.FN_DSRL, mips.FN_DSRA,
			mips.FN_DSLL32, mips.FN_DSRL32, mips.FN_DSRA32:
			return false, true
		case mips.FN_JR, mips.FN_JALR, mips.FN_MTHI, mips.FN_MTLO:
			return true, false
		case mips.FN_SYSCALL, mips.FN_BREAK, mips.FN_SYNC, mips.FN_MFHI, mips.FN_MFLO:
			return false, false
		default:
			return true, true
		}
	case mips.OP_REGIMM, mips.OP_BLEZ, mips.OP_BGTZ, mips.OP_BLEZL, mips.OP_BGTZL:
		return true, false
	case mips.OP_BEQ, mips.OP_BNE, mips.OP_BEQL, mips.OP_BNEL:
		return true, true
	case mips.OP_ADDI, mips.OP_ADDIU, mips.OP_SLTI, mips.OP_SLTIU, mips.OP_ANDI, mips.OP_ORI,
		mips.OP_XORI, mips.OP_DADDI, mips.OP_DADDIU, mips.OP_CACHE,
		mips.OP_LWC1, mips.OP_LDC1, mips.OP_SWC1, mips.OP_SDC1:
		return true, false
	case mips.OP_SB, mips.OP_SH, mips.OP_SWL, mips.OP_SW, mips.OP_SDL, mips.OP_SDR,
		mips.OP_SWR, mips.OP_SD:
		return true, true
	case mips.OP_COP0:
		return false, op.Rs() == mips.CP_MT || op.Rs() == mips.CP_DMT
	case mips.OP_COP1:
		switch op.Rs() {
		case mips.CP_MT, mips.CP_DMT, mips.CP_CT:
			return false, true
		}
		return false, false
	}
	if op.IsLoad() || op.IsStore() {
		return true, false
	}
	return false, false
}

func (self *ConstAnalysis) substitute(op mips.Instr) mips.Instr {
	rs, rt := sources(op)
	if rs && self.IsZero(op.Rs()) {
		op &^= _RS_mask
	}
	if rt && self.IsZero(op.Rt()) {
		op &^= _RT_mask
	}
	return op
}

/** Transfer functions **/

// eval computes the known bits of the GPR result of op. safe is false when
// the instruction may trap for the given operands.
func (self *ConstAnalysis) eval(op mips.Instr) (v kbits, safe bool) {
	rs := self.get(op.Rs())
	rt := self.get(op.Rt())
	imm := known(uint64(op.SImm()))
	uimm := known(op.UImm())

	switch op.Op() {
	case mips.OP_SPECIAL:
		sa := op.Sa()
		switch op.Funct() {
		case mips.FN_SLL:
			return sext32(kshl(rt, sa)), true
		case mips.FN_SRL:
			return sext32(kshr(zext32(rt), sa)), true
		case mips.FN_SRA:
			return sext32(ksar(sext32(rt), sa)), true
		case mips.FN_SLLV, mips.FN_SRLV, mips.FN_SRAV:
			if rs.m&31 != 31 {
				return unknown, true
			}
			return self.eval(mips.Shift(op.Funct()-mips.FN_SLLV+mips.FN_SLL, op.Rd(), op.Rt(), uint32(rs.b&31)))
		case mips.FN_DSLLV, mips.FN_DSRLV, mips.FN_DSRAV:
			if rs.m&63 != 63 {
				return unknown, true
			}
			return self.evalShift64(op.Funct()-mips.FN_DSLLV+mips.FN_DSLL, rt, uint32(rs.b&63)), true
		case mips.FN_ADDU:
			return sext32(kadd(rs, rt)), true
		case mips.FN_ADD:
			return sext32(kadd(rs, rt)), rs.full() && rt.full() && !overflow32(rs.b, rt.b, false)
		case mips.FN_SUBU:
			return sext32(ksub(rs, rt)), true
		case mips.FN_SUB:
			return sext32(ksub(rs, rt)), rs.full() && rt.full() && !overflow32(rs.b, rt.b, true)
		case mips.FN_AND:
			return kand(rs, rt), true
		case mips.FN_OR:
			return kor(rs, rt), true
		case mips.FN_XOR:
			return kxor(rs, rt), true
		case mips.FN_NOR:
			return knot(kor(rs, rt)), true
		case mips.FN_SLT:
			return kslt(rs, rt, false), true
		case mips.FN_SLTU:
			return kslt(rs, rt, true), true
		case mips.FN_DADDU:
			return kadd(rs, rt), true
		case mips.FN_DADD:
			return kadd(rs, rt), rs.full() && rt.full() && !overflow64(rs.b, rt.b, false)
		case mips.FN_DSUBU:
			return ksub(rs, rt), true
		case mips.FN_DSUB:
			return ksub(rs, rt), rs.full() && rt.full() && !overflow64(rs.b, rt.b, true)
		case mips.FN_DSLL, mips.FN_DSRL, mips.FN_DSRA:
			return self.evalShift64(op.Funct(), rt, sa), true
		case mips.FN_DSLL32, mips.FN_DSRL32, mips.FN_DSRA32:
			return self.evalShift64(op.Funct()-mips.FN_DSLL32+mips.FN_DSLL, rt, sa+32), true
		}
	case mips.OP_ADDIU:
		return sext32(kadd(rs, imm)), true
	case mips.OP_ADDI:
		return sext32(kadd(rs, imm)), rs.full() && !overflow32(rs.b, imm.b, false)
	case mips.OP_DADDIU:
		return kadd(rs, imm), true
	case mips.OP_DADDI:
		return kadd(rs, imm), rs.full() && !overflow64(rs.b, imm.b, false)
	case mips.OP_SLTI:
		return kslt(rs, imm, false), true
	case mips.OP_SLTIU:
		return kslt(rs, imm, true), true
	case mips.OP_ANDI:
		return kand(rs, uimm), true
	case mips.OP_ORI:
		return kor(rs, uimm), true
	case mips.OP_XORI:
		return kxor(rs, uimm), true
	case mips.OP_LUI:
		return known(uint64(int64(int32(uint32(op.Imm()) << 16)))), true
	case mips.OP_LBU:
		return kbits{^uint64(0xff), 0}, true
	case mips.OP_LHU:
		return kbits{^uint64(0xffff), 0}, true
	case mips.OP_LWU:
		return kbits{0xffffffff00000000, 0}, true
	case mips.OP_SC, mips.OP_SCD:
		return kbits{^uint64(1), 0}, true
	}
	return unknown, true
}

func (self *ConstAnalysis) evalShift64(fn uint32, rt kbits, sa uint32) kbits {
	switch fn {
	case mips.FN_DSLL:
		return kshl(rt, sa)
	case mips.FN_DSRL:
		return kshr(rt, sa)
	default:
		return ksar(rt, sa)
	}
}

func overflow32(a uint64, b uint64, sub bool) bool {
	x, y := int64(int32(a)), int64(int32(b))
	if sub {
		y = -y
	}
	r := x + y
	return r != int64(int32(r))
}

func overflow64(a uint64, b uint64, sub bool) bool {
	x, y := int64(a), int64(b)
	if sub {
		r := x - y
		return (x^y) < 0 && (x^r) < 0
	}
	r := x + y
	return (x^y) >= 0 && (x^r) < 0
}

// ConstLoad returns the single instruction loading v into rd, if one exists.
func ConstLoad(rd int, v uint64) (mips.Instr, bool) {
	switch {
	case int64(v) == int64(int16(v)):
		return mips.Imm(mips.OP_ADDIU, rd, 0, int32(int16(v))), true
	case v <= 0xffff:
		return mips.Imm(mips.OP_ORI, rd, 0, int32(v)), true
	case int64(v) == int64(int32(v)) && v&0xffff == 0:
		return mips.Imm(mips.OP_LUI, rd, 0, int32(uint16(v>>16))), true
	default:
		return mips.NOP, false
	}
}

// UpdateConstAnalysis advances a over op and returns the possibly rewritten
// instruction. Operands known to be zero become $0, fully known results of
// side-effect free instructions become constant loads, and re-definitions of
// an already known value become NOPs.
func UpdateConstAnalysis(a *ConstAnalysis, op mips.Instr) mips.Instr {
	if IsReserved(op) {
		InitConstAnalysis(a)
		return op
	}

	/* operands known to be zero */
	op = Simplify(a.substitute(op))
	v, safe := a.eval(op)

	/* link registers hold return addresses, which are not tracked */
	if r, ok := op.Link(); ok {
		a.set(r, unknown)
	}

	/* instructions without a GPR result */
	rd, ok := op.Dest()
	if !ok || rd == 0 {
		return op
	}

	/* update the destination */
	old := a.get(rd)
	a.set(rd, v)

	/* only rewrite instructions without side effects */
	if !v.full() || !safe || !(isPure(op) || isTrapping(op)) {
		return op
	}

	/* redundant re-definition */
	if old.full() && old.b == v.b {
		return mips.NOP
	}

	/* materialize as a constant load */
	if ld, ok := ConstLoad(rd, v.b); ok {
		return ld
	}
	return op
}
