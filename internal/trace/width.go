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
	"github.com/cloudwego/mipsjit/internal/mips"
)

// WidthAnalysis holds, for r0..r31, HI and LO, the number of low bits whose
// sign extension reproduces the whole 64-bit value. A width of 32 or less
// means the register holds a properly sign-extended 32-bit value.
type WidthAnalysis [34]int8

func InitWidthAnalysis(w *WidthAnalysis) {
	for i := range w {
		w[i] = 64
	}
	w[0] = 1
}

// Width returns the meaningful width of r, which may be r0 or HI/LO.
func (self *WidthAnalysis) Width(r int) int {
	if r == 0 {
		return 1
	}
	return int(self[r])
}

// Is32 reports whether r holds a sign-extended 32-bit value.
func (self *WidthAnalysis) Is32(r int) bool {
	return self.Width(r) <= 32
}

func (self *WidthAnalysis) set(r int, v int) {
	if r != 0 {
		self[r] = int8(clamp(v))
	}
}

func clamp(v int) int {
	if v < 1 {
		return 1
	}
	if v > 64 {
		return 64
	}
	return v
}

func min(a int, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a int, b int) int {
	if a > b {
		return a
	}
	return b
}

// constWidth derives a width from known bits, 64 when the sign is unknown.
func constWidth(m uint64, b uint64) int {
	if m>>63 == 0 {
		return 64
	}
	s := b >> 63
	for i := 62; i >= 0; i-- {
		if (m>>uint(i))&1 == 0 || (b>>uint(i))&1 != s {
			return i + 2
		}
	}
	return 1
}

// width computes the width of the GPR result of op from the widths of its
// operands before the instruction.
func (self *WidthAnalysis) width(op mips.Instr) int {
	ws := self.Width(op.Rs())
	wt := self.Width(op.Rt())
	sa := int(op.Sa())

	switch op.Op() {
	case mips.OP_SPECIAL:
		switch op.Funct() {
		case mips.FN_SLL:
			return min(32, wt+sa)
		case mips.FN_SRL:
			if sa == 0 {
				return min(32, wt)
			}
			return 33 - sa
		case mips.FN_SRA:
			return min(32, wt) - sa
		case mips.FN_SLLV, mips.FN_SRLV, mips.FN_SRAV:
			return 32
		case mips.FN_DSRAV:
			return wt
		case mips.FN_DSLLV, mips.FN_DSRLV:
			return 64
		case mips.FN_MFHI:
			return self.Width(mips.HI)
		case mips.FN_MFLO:
			return self.Width(mips.LO)
		case mips.FN_ADD, mips.FN_ADDU, mips.FN_SUB, mips.FN_SUBU:
			return min(32, max(ws, wt)+1)
		case mips.FN_AND, mips.FN_OR, mips.FN_XOR, mips.FN_NOR:
			return max(ws, wt)
		case mips.FN_SLT, mips.FN_SLTU:
			return 2
		case mips.FN_DADD, mips.FN_DADDU, mips.FN_DSUB, mips.FN_DSUBU:
			return max(ws, wt) + 1
		case mips.FN_DSLL:
			return wt + sa
		case mips.FN_DSRL:
			if sa == 0 {
				return wt
			}
			return 65 - sa
		case mips.FN_DSRA:
			return wt - sa
		case mips.FN_DSLL32:
			return wt + sa + 32
		case mips.FN_DSRL32:
			return 33 - sa
		case mips.FN_DSRA32:
			return wt - sa - 32
		}
	case mips.OP_ADDI, mips.OP_ADDIU:
		return min(32, max(ws, 16)+1)
	case mips.OP_DADDI, mips.OP_DADDIU:
		return max(ws, 16) + 1
	case mips.OP_SLTI, mips.OP_SLTIU, mips.OP_SC, mips.OP_SCD:
		return 2
	case mips.OP_ANDI:
		return 17
	case mips.OP_ORI, mips.OP_XORI:
		return max(ws, 17)
	case mips.OP_LUI, mips.OP_LW, mips.OP_LL, mips.OP_LWL, mips.OP_LWR:
		return 32
	case mips.OP_LB:
		return 8
	case mips.OP_LBU:
		return 9
	case mips.OP_LH:
		return 16
	case mips.OP_LHU:
		return 17
	case mips.OP_LWU:
		return 33
	case mips.OP_COP0, mips.OP_COP1:
		if op.Rs() == mips.CP_DMF {
			return 64
		}
		return 32
	}
	return 64
}

// UpdateWidthAnalysis advances w over op. c must already reflect the state
// after op, it is used to tighten the width of the result. Sign extensions of
// values that are already sign-extended 32-bit become moves.
func UpdateWidthAnalysis(w *WidthAnalysis, c *ConstAnalysis, op mips.Instr) mips.Instr {
	if IsReserved(op) {
		InitWidthAnalysis(w)
		return op
	}

	/* redundant sign extensions */
	switch {
	case op.Op() == mips.OP_SPECIAL && op.Funct() == mips.FN_SLL && op.Sa() == 0 && w.Is32(op.Rt()):
		op = Simplify(mips.Move(op.Rd(), op.Rt()))
	case op.Op() == mips.OP_SPECIAL && op.Funct() == mips.FN_ADDU && op.Rt() == 0 && w.Is32(op.Rs()):
		op = Simplify(mips.Move(op.Rd(), op.Rs()))
	case op.Op() == mips.OP_ADDIU && op.Imm() == 0 && op.Rs() != 0 && w.Is32(op.Rs()):
		op = Simplify(mips.Move(op.Rt(), op.Rs()))
	}

	/* the multiply unit */
	if op.Op() == mips.OP_SPECIAL {
		switch op.Funct() {
		case mips.FN_MTHI:
			w.set(mips.HI, w.Width(op.Rs()))
		case mips.FN_MTLO:
			w.set(mips.LO, w.Width(op.Rs()))
		case mips.FN_MULT, mips.FN_MULTU, mips.FN_DIV, mips.FN_DIVU:
			w.set(mips.HI, 32)
			w.set(mips.LO, 32)
		case mips.FN_DMULT, mips.FN_DMULTU, mips.FN_DDIV, mips.FN_DDIVU:
			w.set(mips.HI, 64)
			w.set(mips.LO, 64)
		}
	}

	/* return addresses are sign-extended 32-bit values */
	if r, ok := op.Link(); ok {
		w.set(r, min(32, constWidth(c.Mask[r], c.Bits[r])))
	}

	/* the GPR result */
	if rd, ok := op.Dest(); ok && rd != 0 {
		w.set(rd, min(clamp(w.width(op)), constWidth(c.Mask[rd], c.Bits[rd])))
	}
	return op
}
