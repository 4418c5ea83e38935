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

// Package mips decodes, encodes and classifies R4300i instruction words.
package mips

// Instr is a raw guest instruction word. Every 32-bit value is a valid Instr,
// reserved encodings still decode mechanically.
type Instr uint32

// NOP is the canonical no-operation, SLL $0, $0, 0.
const NOP Instr = 0

func (self Instr) Op() uint32     { return uint32(self) >> 26 }
func (self Instr) Rs() int        { return int(self>>21) & 0x1f }
func (self Instr) Rt() int        { return int(self>>16) & 0x1f }
func (self Instr) Rd() int        { return int(self>>11) & 0x1f }
func (self Instr) Sa() uint32     { return uint32(self>>6) & 0x1f }
func (self Instr) Funct() uint32  { return uint32(self) & 0x3f }
func (self Instr) Imm() uint16    { return uint16(self) }
func (self Instr) SImm() int64    { return int64(int16(self)) }
func (self Instr) UImm() uint64   { return uint64(uint16(self)) }
func (self Instr) Target() uint32 { return uint32(self) & 0x03ffffff }

// COP1 views of the same fields.
func (self Instr) Fmt() uint32  { return uint32(self>>21) & 0x1f }
func (self Instr) Ft() int      { return self.Rt() }
func (self Instr) Fs() int      { return self.Rd() }
func (self Instr) Fd() int      { return int(self.Sa()) }
func (self Instr) Cond() uint32 { return uint32(self) & 0x0f }

// BranchTarget returns the target of a PC-relative branch located at pc.
func (self Instr) BranchTarget(pc uint32) uint32 {
	return pc + 4 + uint32(self.SImm()<<2)
}

// JumpTarget returns the target of a J/JAL located at pc.
func (self Instr) JumpTarget(pc uint32) uint32 {
	return ((pc + 4) & 0xf0000000) | (self.Target() << 2)
}

// IsBranch reports whether the instruction has an architectural delay slot.
func (self Instr) IsBranch() bool {
	switch self.Op() {
	case OP_J, OP_JAL, OP_BEQ, OP_BNE, OP_BLEZ, OP_BGTZ, OP_BEQL, OP_BNEL, OP_BLEZL, OP_BGTZL:
		return true
	case OP_SPECIAL:
		return self.Funct() == FN_JR || self.Funct() == FN_JALR
	case OP_REGIMM:
		switch self.Rt() {
		case RI_BLTZ, RI_BGEZ, RI_BLTZL, RI_BGEZL, RI_BLTZAL, RI_BGEZAL, RI_BLTZALL, RI_BGEZALL:
			return true
		}
	case OP_COP1:
		return self.Rs() == CP_BC
	}
	return false
}

// IsLikely reports whether the branch nullifies its delay slot when not taken.
func (self Instr) IsLikely() bool {
	switch self.Op() {
	case OP_BEQL, OP_BNEL, OP_BLEZL, OP_BGTZL:
		return true
	case OP_REGIMM:
		switch self.Rt() {
		case RI_BLTZL, RI_BGEZL, RI_BLTZALL, RI_BGEZALL:
			return true
		}
	case OP_COP1:
		return self.Rs() == CP_BC && self.Rt()&2 != 0
	}
	return false
}

// IsJump reports whether the instruction is an unconditional jump.
func (self Instr) IsJump() bool {
	switch self.Op() {
	case OP_J, OP_JAL:
		return true
	case OP_SPECIAL:
		return self.Funct() == FN_JR || self.Funct() == FN_JALR
	}
	return false
}

// Link returns the GPR written with the return address, if any.
func (self Instr) Link() (int, bool) {
	switch self.Op() {
	case OP_JAL:
		return RA, true
	case OP_SPECIAL:
		if self.Funct() == FN_JALR {
			return self.Rd(), true
		}
	case OP_REGIMM:
		switch self.Rt() {
		case RI_BLTZAL, RI_BGEZAL, RI_BLTZALL, RI_BGEZALL:
			return RA, true
		}
	}
	return 0, false
}

// Dest returns the integer GPR written by the instruction, excluding link
// registers of branches.
func (self Instr) Dest() (int, bool) {
	switch self.Op() {
	case OP_SPECIAL:
		switch self.Funct() {
		case FN_SLL, FN_SRL, FN_SRA, FN_SLLV, FN_SRLV, FN_SRAV,
			FN_MFHI, FN_MFLO, FN_DSLLV, FN_DSRLV, FN_DSRAV,
			FN_ADD, FN_ADDU, FN_SUB, FN_SUBU, FN_AND, FN_OR, FN_XOR, FN_NOR,
			FN_SLT, FN_SLTU, FN_DADD, FN_DADDU, FN_DSUB, FN_DSUBU,
			FN_DSLL, FN_DSRL, FN_DSRA, FN_DSLL32, FN_DSRL32, FN_DSRA32:
			return self.Rd(), true
		}
	case OP_ADDI, OP_ADDIU, OP_SLTI, OP_SLTIU, OP_ANDI, OP_ORI, OP_XORI, OP_LUI,
		OP_DADDI, OP_DADDIU, OP_LDL, OP_LDR, OP_LB, OP_LH, OP_LWL, OP_LW, OP_LBU,
		OP_LHU, OP_LWR, OP_LWU, OP_LL, OP_LLD, OP_LD, OP_SC, OP_SCD:
		return self.Rt(), true
	case OP_COP0:
		if self.Rs() == CP_MF || self.Rs() == CP_DMF {
			return self.Rt(), true
		}
	case OP_COP1:
		switch self.Rs() {
		case CP_MF, CP_DMF, CP_CF:
			return self.Rt(), true
		}
	}
	return 0, false
}

// IsLoad reports whether the instruction reads guest memory.
func (self Instr) IsLoad() bool {
	switch self.Op() {
	case OP_LDL, OP_LDR, OP_LB, OP_LH, OP_LWL, OP_LW, OP_LBU, OP_LHU, OP_LWR,
		OP_LWU, OP_LL, OP_LWC1, OP_LLD, OP_LDC1, OP_LD:
		return true
	}
	return false
}

// IsStore reports whether the instruction writes guest memory.
func (self Instr) IsStore() bool {
	switch self.Op() {
	case OP_SB, OP_SH, OP_SWL, OP_SW, OP_SDL, OP_SDR, OP_SWR, OP_SC, OP_SWC1,
		OP_SCD, OP_SDC1, OP_SD:
		return true
	}
	return false
}

// IsNop reports whether the word is the canonical no-operation.
func (self Instr) IsNop() bool {
	return self == NOP
}
