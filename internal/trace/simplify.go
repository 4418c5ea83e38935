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

// Always is the canonical unconditional branch, BEQ $0, $0, off.
func Always(off int32) mips.Instr {
	return mips.Branch(mips.OP_BEQ, 0, 0, off)
}

// isPure reports whether the only architectural effect of op is writing its
// destination GPR.
func isPure(op mips.Instr) bool {
	switch op.Op() {
	case mips.OP_SPECIAL:
		switch op.Funct() {
		case mips.FN_SLL, mips.FN_SRL, mips.FN_SRA, mips.FN_SLLV, mips.FN_SRLV, mips.FN_SRAV,
			mips.FN_MFHI, mips.FN_MFLO, mips.FN_DSLLV, mips.FN_DSRLV, mips.FN_DSRAV,
			mips.FN_ADDU, mips.FN_SUBU, mips.FN_AND, mips.FN_OR, mips.FN_XOR, mips.FN_NOR,
			mips.FN_SLT, mips.FN_SLTU, mips.FN_DADDU, mips.FN_DSUBU,
			mips.FN_DSLL, mips.FN_DSRL, mips.FN_DSRA, mips.FN_DSLL32, mips.FN_DSRL32, mips.FN_DSRA32:
			return true
		}
	case mips.OP_ADDIU, mips.OP_SLTI, mips.OP_SLTIU, mips.OP_ANDI, mips.OP_ORI, mips.OP_XORI,
		mips.OP_LUI, mips.OP_DADDIU:
		return true
	case mips.OP_COP0:
		return op.Rs() == mips.CP_MF || op.Rs() == mips.CP_DMF
	case mips.OP_COP1:
		switch op.Rs() {
		case mips.CP_MF, mips.CP_DMF, mips.CP_CF:
			return true
		}
	}
	return false
}

// isTrapping reports whether op is one of the overflow-checking arithmetic
// instructions, which are pure unless they overflow.
func isTrapping(op mips.Instr) bool {
	switch op.Op() {
	case mips.OP_SPECIAL:
		switch op.Funct() {
		case mips.FN_ADD, mips.FN_SUB, mips.FN_DADD, mips.FN_DSUB:
			return true
		}
	case mips.OP_ADDI, mips.OP_DADDI:
		return true
	}
	return false
}

// MandatorySimplify removes every write to the hardwired zero register. An
// instruction whose only effect is such a write becomes the canonical NOP,
// JALR $0, rs becomes JR rs. Instructions with other effects (memory access,
// traps, LL/SC state) keep their encoding and discard the write when executed.
func MandatorySimplify(op mips.Instr) mips.Instr {
	if op.Op() == mips.OP_SPECIAL && op.Funct() == mips.FN_JALR && op.Rd() == 0 {
		return mips.JR(op.Rs())
	}

	/* pure writes to $0 vanish */
	if rd, ok := op.Dest(); ok && rd == 0 && isPure(op) {
		return mips.NOP
	}
	return op
}

// Simplify applies syntactic peephole rewrites. It never consults the dataflow
// analyses and every recursive call reduces to a structurally different case.
func Simplify(op mips.Instr) mips.Instr {
	switch op.Op() {
	case mips.OP_SPECIAL:
		return simplifySpecial(op)
	case mips.OP_REGIMM:
		return simplifyRegimm(op)
	case mips.OP_BEQ, mips.OP_BNE, mips.OP_BEQL, mips.OP_BNEL:
		return simplifyBranch2(op)
	case mips.OP_BLEZ, mips.OP_BGTZ, mips.OP_BLEZL, mips.OP_BGTZL:
		return simplifyBranch1(op)
	default:
		return simplifyImm(op)
	}
}

func simplifySpecial(op mips.Instr) mips.Instr {
	rd, rs, rt := op.Rd(), op.Rs(), op.Rt()
	fn := op.Funct()

	/* pure writes to $0 were removed already, keep the rest intact */
	if rd == 0 && isPure(op) {
		return mips.NOP
	}

	switch fn {
	case mips.FN_OR:
		switch {
		case rt == 0 && rs == rd:
			return mips.NOP
		case rt == 0:
			return op
		case rs == 0:
			return Simplify(mips.Move(rd, rt))
		case rs == rt:
			return Simplify(mips.Move(rd, rs))
		}
	case mips.FN_AND:
		switch {
		case rs == 0 || rt == 0:
			return mips.Move(rd, 0)
		case rs == rt:
			return Simplify(mips.Move(rd, rs))
		}
	case mips.FN_XOR:
		switch {
		case rs == rt:
			return mips.Move(rd, 0)
		case rt == 0:
			return Simplify(mips.Move(rd, rs))
		case rs == 0:
			return Simplify(mips.Move(rd, rt))
		}
	case mips.FN_SUBU, mips.FN_SUB:
		switch {
		case rs == rt:
			return mips.Move(rd, 0)
		case rt == 0:
			return Simplify(mips.ALU(mips.FN_ADDU, rd, rs, 0))
		}
	case mips.FN_ADD:
		switch {
		case rt == 0:
			return Simplify(mips.ALU(mips.FN_ADDU, rd, rs, 0))
		case rs == 0:
			return Simplify(mips.ALU(mips.FN_ADDU, rd, rt, 0))
		}
	case mips.FN_ADDU:
		if rs == 0 && rt != 0 {
			return Simplify(mips.ALU(mips.FN_ADDU, rd, rt, 0))
		}
		if rs == 0 && rt == 0 {
			return mips.Move(rd, 0)
		}
	case mips.FN_DADDU, mips.FN_DADD:
		switch {
		case rt == 0:
			return Simplify(mips.Move(rd, rs))
		case rs == 0:
			return Simplify(mips.Move(rd, rt))
		}
	case mips.FN_DSUBU, mips.FN_DSUB:
		switch {
		case rs == rt:
			return mips.Move(rd, 0)
		case rt == 0:
			return Simplify(mips.Move(rd, rs))
		}
	case mips.FN_SLT, mips.FN_SLTU:
		if rs == rt {
			return mips.Move(rd, 0)
		}
		if fn == mips.FN_SLTU && rt == 0 {
			return mips.Move(rd, 0)
		}
	case mips.FN_SLL:
		if rt == 0 {
			return mips.Move(rd, 0)
		}
	case mips.FN_SRL, mips.FN_SRA:
		switch {
		case rt == 0:
			return mips.Move(rd, 0)
		case op.Sa() == 0:
			return mips.Shift(mips.FN_SLL, rd, rt, 0)
		}
	case mips.FN_SLLV, mips.FN_SRLV, mips.FN_SRAV:
		switch {
		case rt == 0:
			return mips.Move(rd, 0)
		case rs == 0:
			return mips.Shift(mips.FN_SLL, rd, rt, 0)
		}
	case mips.FN_DSLL, mips.FN_DSRL, mips.FN_DSRA:
		switch {
		case rt == 0:
			return mips.Move(rd, 0)
		case op.Sa() == 0:
			return Simplify(mips.Move(rd, rt))
		}
	case mips.FN_DSLL32, mips.FN_DSRL32, mips.FN_DSRA32:
		if rt == 0 {
			return mips.Move(rd, 0)
		}
	case mips.FN_DSLLV, mips.FN_DSRLV, mips.FN_DSRAV:
		switch {
		case rt == 0:
			return mips.Move(rd, 0)
		case rs == 0:
			return Simplify(mips.Move(rd, rt))
		}
	case mips.FN_TNE, mips.FN_TLT, mips.FN_TLTU:
		if rs == rt {
			return mips.NOP
		}
	}
	return op
}

func simplifyImm(op mips.Instr) mips.Instr {
	rt, rs := op.Rt(), op.Rs()
	if rt == 0 && isPure(op) {
		return mips.NOP
	}

	switch op.Op() {
	case mips.OP_ADDI:
		if rs == 0 {
			return mips.Imm(mips.OP_ADDIU, rt, 0, int32(op.SImm()))
		}
	case mips.OP_DADDI, mips.OP_DADDIU:
		switch {
		case op.Imm() == 0:
			return Simplify(mips.Move(rt, rs))
		case rs == 0:
			return mips.Imm(mips.OP_ADDIU, rt, 0, int32(op.SImm()))
		}
	case mips.OP_ORI:
		if op.Imm() == 0 {
			return Simplify(mips.Move(rt, rs))
		}
	case mips.OP_XORI:
		switch {
		case op.Imm() == 0:
			return Simplify(mips.Move(rt, rs))
		case rs == 0:
			return mips.Imm(mips.OP_ORI, rt, 0, int32(op.Imm()))
		}
	case mips.OP_ANDI:
		if rs == 0 || op.Imm() == 0 {
			return mips.Move(rt, 0)
		}
	case mips.OP_LUI:
		if op.Imm() == 0 {
			return mips.Move(rt, 0)
		}
	case mips.OP_SLTIU:
		if rs == 0 {
			if op.Imm() == 0 {
				return mips.Move(rt, 0)
			}
			return mips.Imm(mips.OP_ORI, rt, 0, 1)
		}
	}
	return op
}

// simplifyBranch2 handles BEQ/BNE and their likely forms. Operands are
// ordered so that a zero operand is always rt.
func simplifyBranch2(op mips.Instr) mips.Instr {
	rs, rt := op.Rs(), op.Rt()
	off := int32(op.SImm())

	/* same register on both sides, the outcome is static */
	if rs == rt {
		switch op.Op() {
		case mips.OP_BEQ, mips.OP_BEQL:
			if op.Op() == mips.OP_BEQ && rs == 0 {
				return simplifySkip(op)
			}
			return Simplify(Always(off))
		case mips.OP_BNE:
			return mips.NOP
		default:
			return op
		}
	}

	/* canonical operand order */
	if rs == 0 {
		return Simplify(mips.Branch(op.Op(), rt, rs, off))
	}

	/* branches over their own delay slot only matter when they nullify */
	if !op.IsLikely() {
		return simplifySkip(op)
	}
	return op
}

// simplifySkip turns a non-likely, non-linking branch whose target is the
// instruction after its delay slot into a no-op.
func simplifySkip(op mips.Instr) mips.Instr {
	if op.SImm() == 1 {
		return mips.NOP
	}
	return op
}

func simplifyBranch1(op mips.Instr) mips.Instr {
	off := int32(op.SImm())
	if op.Rs() != 0 {
		if op.IsLikely() {
			return op
		}
		return simplifySkip(op)
	}

	/* compare $0 against zero */
	switch op.Op() {
	case mips.OP_BLEZ, mips.OP_BLEZL:
		return Simplify(Always(off))
	case mips.OP_BGTZ:
		return mips.NOP
	default:
		return op
	}
}

func simplifyRegimm(op mips.Instr) mips.Instr {
	off := int32(op.SImm())
	switch op.Rt() {
	case mips.RI_BLTZ, mips.RI_BGEZ:
		if op.Rs() != 0 {
			return simplifySkip(op)
		}
		if op.Rt() == mips.RI_BLTZ {
			return mips.NOP
		}
		return Simplify(Always(off))
	case mips.RI_BGEZL:
		if op.Rs() == 0 {
			return Simplify(Always(off))
		}
	case mips.RI_TNEI, mips.RI_TLTIU:
		if op.Rs() == 0 && op.Imm() == 0 {
			return mips.NOP
		}
	}
	return op
}
