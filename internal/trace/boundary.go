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

const (
	Continue  = 0 // the trace goes on
	EndNow    = 1 // the trace ends right after this instruction
	EndDelay  = 2 // the trace ends after the delay slot of this branch
)

// VolatileCOP0 lists the COP0 registers whose writes may change interrupt
// delivery or timer state. Writing them ends the trace, writes to the other
// registers are inert.
var VolatileCOP0 = [32]bool{
	mips.CP0_COUNT:   true,
	mips.CP0_COMPARE: true,
	mips.CP0_STATUS:  true,
	mips.CP0_CAUSE:   true,
}

var validMajor = [64]bool{
	mips.OP_SPECIAL: true, mips.OP_REGIMM: true, mips.OP_J: true, mips.OP_JAL: true,
	mips.OP_BEQ: true, mips.OP_BNE: true, mips.OP_BLEZ: true, mips.OP_BGTZ: true,
	mips.OP_ADDI: true, mips.OP_ADDIU: true, mips.OP_SLTI: true, mips.OP_SLTIU: true,
	mips.OP_ANDI: true, mips.OP_ORI: true, mips.OP_XORI: true, mips.OP_LUI: true,
	mips.OP_COP0: true, mips.OP_COP1: true,
	mips.OP_BEQL: true, mips.OP_BNEL: true, mips.OP_BLEZL: true, mips.OP_BGTZL: true,
	mips.OP_DADDI: true, mips.OP_DADDIU: true, mips.OP_LDL: true, mips.OP_LDR: true,
	mips.OP_LB: true, mips.OP_LH: true, mips.OP_LWL: true, mips.OP_LW: true,
	mips.OP_LBU: true, mips.OP_LHU: true, mips.OP_LWR: true, mips.OP_LWU: true,
	mips.OP_SB: true, mips.OP_SH: true, mips.OP_SWL: true, mips.OP_SW: true,
	mips.OP_SDL: true, mips.OP_SDR: true, mips.OP_SWR: true, mips.OP_CACHE: true,
	mips.OP_LL: true, mips.OP_LWC1: true, mips.OP_LLD: true, mips.OP_LDC1: true,
	mips.OP_LD: true, mips.OP_SC: true, mips.OP_SWC1: true, mips.OP_SCD: true,
	mips.OP_SDC1: true, mips.OP_SD: true,
}

var validSpecial = [64]bool{
	mips.FN_SLL: true, mips.FN_SRL: true, mips.FN_SRA: true, mips.FN_SLLV: true,
	mips.FN_SRLV: true, mips.FN_SRAV: true, mips.FN_JR: true, mips.FN_JALR: true,
	mips.FN_SYSCALL: true, mips.FN_BREAK: true, mips.FN_SYNC: true,
	mips.FN_MFHI: true, mips.FN_MTHI: true, mips.FN_MFLO: true, mips.FN_MTLO: true,
	mips.FN_DSLLV: true, mips.FN_DSRLV: true, mips.FN_DSRAV: true,
	mips.FN_MULT: true, mips.FN_MULTU: true, mips.FN_DIV: true, mips.FN_DIVU: true,
	mips.FN_DMULT: true, mips.FN_DMULTU: true, mips.FN_DDIV: true, mips.FN_DDIVU: true,
	mips.FN_ADD: true, mips.FN_ADDU: true, mips.FN_SUB: true, mips.FN_SUBU: true,
	mips.FN_AND: true, mips.FN_OR: true, mips.FN_XOR: true, mips.FN_NOR: true,
	mips.FN_SLT: true, mips.FN_SLTU: true, mips.FN_DADD: true, mips.FN_DADDU: true,
	mips.FN_DSUB: true, mips.FN_DSUBU: true, mips.FN_TGE: true, mips.FN_TGEU: true,
	mips.FN_TLT: true, mips.FN_TLTU: true, mips.FN_TEQ: true, mips.FN_TNE: true,
	mips.FN_DSLL: true, mips.FN_DSRL: true, mips.FN_DSRA: true,
	mips.FN_DSLL32: true, mips.FN_DSRL32: true, mips.FN_DSRA32: true,
}

var validRegimm = [32]bool{
	mips.RI_BLTZ: true, mips.RI_BGEZ: true, mips.RI_BLTZL: true, mips.RI_BGEZL: true,
	mips.RI_TGEI: true, mips.RI_TGEIU: true, mips.RI_TLTI: true, mips.RI_TLTIU: true,
	mips.RI_TEQI: true, mips.RI_TNEI: true,
	mips.RI_BLTZAL: true, mips.RI_BGEZAL: true, mips.RI_BLTZALL: true, mips.RI_BGEZALL: true,
}

// IsReserved reports whether op is an encoding the R4300i does not define.
func IsReserved(op mips.Instr) bool {
	switch op.Op() {
	case mips.OP_SPECIAL:
		return !validSpecial[op.Funct()]
	case mips.OP_REGIMM:
		return !validRegimm[op.Rt()]
	case mips.OP_COP0:
		switch op.Rs() {
		case mips.CP_MF, mips.CP_DMF, mips.CP_MT, mips.CP_DMT:
			return false
		case mips.CP_CO:
			switch op.Funct() {
			case mips.C0_TLBR, mips.C0_TLBWI, mips.C0_TLBWR, mips.C0_TLBP, mips.C0_ERET:
				return false
			}
		}
		return true
	case mips.OP_COP1:
		switch op.Rs() {
		case mips.CP_MF, mips.CP_DMF, mips.CP_CF, mips.CP_MT, mips.CP_DMT, mips.CP_CT, mips.CP_BC:
			return false
		case mips.FMT_S, mips.FMT_D, mips.FMT_W, mips.FMT_L:
			return false
		}
		return true
	default:
		return !validMajor[op.Op()]
	}
}

// IsTraceBoundary classifies op as Continue, EndNow or EndDelay.
func IsTraceBoundary(op mips.Instr) int {
	if IsReserved(op) {
		return EndNow
	}

	/* everything with a delay slot */
	if op.IsBranch() {
		return EndDelay
	}

	switch op.Op() {
	case mips.OP_SPECIAL:
		switch op.Funct() {
		case mips.FN_SYSCALL, mips.FN_BREAK,
			mips.FN_TGE, mips.FN_TGEU, mips.FN_TLT, mips.FN_TLTU, mips.FN_TEQ, mips.FN_TNE:
			return EndNow
		}
	case mips.OP_REGIMM:
		return EndNow
	case mips.OP_CACHE:
		return EndNow
	case mips.OP_COP0:
		switch op.Rs() {
		case mips.CP_MT, mips.CP_DMT:
			if VolatileCOP0[op.Rd()] {
				return EndNow
			}
		case mips.CP_CO:
			switch op.Funct() {
			case mips.C0_ERET, mips.C0_TLBWI, mips.C0_TLBWR:
				return EndNow
			}
		}
	case mips.OP_COP1:
		if op.Rs() == mips.CP_CT {
			return EndNow
		}
	}
	return Continue
}
