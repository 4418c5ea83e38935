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
	"github.com/cloudwego/mipsjit/internal/mips"
)

type _Translator func(e *Emitter, op mips.Instr)

var (
	majorTab   [64]_Translator
	specialTab [64]_Translator
	cop1Tab    [64]_Translator
)

func init() {
	majorTab = [64]_Translator{
		mips.OP_ADDI:   (*Emitter).translateADDI,
		mips.OP_ADDIU:  (*Emitter).translateADDIU,
		mips.OP_SLTI:   (*Emitter).translateSLTI,
		mips.OP_SLTIU:  (*Emitter).translateSLTI,
		mips.OP_ANDI:   (*Emitter).translateANDI,
		mips.OP_ORI:    (*Emitter).translateORI,
		mips.OP_XORI:   (*Emitter).translateORI,
		mips.OP_LUI:    (*Emitter).translateLUI,
		mips.OP_DADDIU: (*Emitter).translateDADDIU,
		mips.OP_LB:     (*Emitter).translateLoad,
		mips.OP_LH:     (*Emitter).translateLoad,
		mips.OP_LW:     (*Emitter).translateLoad,
		mips.OP_LBU:    (*Emitter).translateLoad,
		mips.OP_LHU:    (*Emitter).translateLoad,
		mips.OP_LWU:    (*Emitter).translateLoad,
		mips.OP_LD:     (*Emitter).translateLoad,
		mips.OP_SB:     (*Emitter).translateStore,
		mips.OP_SH:     (*Emitter).translateStore,
		mips.OP_SW:     (*Emitter).translateStore,
		mips.OP_SD:     (*Emitter).translateStore,
		mips.OP_LWC1:   (*Emitter).translateLoadFP,
		mips.OP_LDC1:   (*Emitter).translateLoadFP,
		mips.OP_SWC1:   (*Emitter).translateStoreFP,
		mips.OP_SDC1:   (*Emitter).translateStoreFP,
	}
	specialTab = [64]_Translator{
		mips.FN_SLL:    (*Emitter).translateShift,
		mips.FN_SRL:    (*Emitter).translateShift,
		mips.FN_SRA:    (*Emitter).translateShift,
		mips.FN_SLLV:   (*Emitter).translateShiftV,
		mips.FN_SRLV:   (*Emitter).translateShiftV,
		mips.FN_SRAV:   (*Emitter).translateShiftV,
		mips.FN_SYNC:   (*Emitter).translateSYNC,
		mips.FN_MFHI:   (*Emitter).translateMFHI,
		mips.FN_MTHI:   (*Emitter).translateMTHI,
		mips.FN_MFLO:   (*Emitter).translateMFLO,
		mips.FN_MTLO:   (*Emitter).translateMTLO,
		mips.FN_MULT:   (*Emitter).translateMULT,
		mips.FN_MULTU:  (*Emitter).translateMULT,
		mips.FN_ADD:    (*Emitter).translateADD,
		mips.FN_ADDU:   (*Emitter).translateADDU,
		mips.FN_SUB:    (*Emitter).translateADD,
		mips.FN_SUBU:   (*Emitter).translateADDU,
		mips.FN_AND:    (*Emitter).translateLogic,
		mips.FN_OR:     (*Emitter).translateLogic,
		mips.FN_XOR:    (*Emitter).translateLogic,
		mips.FN_NOR:    (*Emitter).translateLogic,
		mips.FN_SLT:    (*Emitter).translateSLT,
		mips.FN_SLTU:   (*Emitter).translateSLT,
		mips.FN_DADDU:  (*Emitter).translateDADDU,
		mips.FN_DSUBU:  (*Emitter).translateDADDU,
		mips.FN_DSLL:   (*Emitter).translateShift64,
		mips.FN_DSRL:   (*Emitter).translateShift64,
		mips.FN_DSRA:   (*Emitter).translateShift64,
		mips.FN_DSLL32: (*Emitter).translateShift64,
		mips.FN_DSRL32: (*Emitter).translateShift64,
		mips.FN_DSRA32: (*Emitter).translateShift64,
	}
	cop1Tab = [64]_Translator{
		mips.F_ADD:  (*Emitter).translateFArith,
		mips.F_SUB:  (*Emitter).translateFArith,
		mips.F_MUL:  (*Emitter).translateFArith,
		mips.F_DIV:  (*Emitter).translateFArith,
		mips.F_SQRT: (*Emitter).translateFUnary,
		mips.F_ABS:  (*Emitter).translateFUnary,
		mips.F_MOV:  (*Emitter).translateFUnary,
		mips.F_NEG:  (*Emitter).translateFUnary,
	}
	for fn := mips.F_C; fn < mips.F_C+16; fn++ {
		cop1Tab[fn] = (*Emitter).translateFCMP
	}
}

// lookup returns the translator of op, or nil when op is interpreted.
func lookup(op mips.Instr) _Translator {
	switch op.Op() {
	case mips.OP_SPECIAL:
		return specialTab[op.Funct()]
	case mips.OP_COP1:
		return lookupCOP1(op)
	default:
		return majorTab[op.Op()]
	}
}

func lookupCOP1(op mips.Instr) _Translator {
	switch op.Rs() {
	case mips.CP_MF:
		return (*Emitter).translateMFC1
	case mips.CP_DMF:
		return (*Emitter).translateDMFC1
	case mips.CP_MT:
		return (*Emitter).translateMTC1
	case mips.CP_DMT:
		return (*Emitter).translateDMTC1
	case mips.CP_CF:
		if op.Fs() == 31 {
			return (*Emitter).translateCFC1
		}
	case mips.FMT_S, mips.FMT_D:
		return cop1Tab[op.Funct()]
	}
	return nil
}
