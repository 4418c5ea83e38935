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

// Package interp is the reference interpreter of the R4300i. It executes
// whatever the recompiler cannot, and is the oracle its tests compare to.
package interp

import (
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
)

// _Branch is the control flow outcome of one instruction.
type _Branch struct {
	ok     bool
	taken  bool
	likely bool
	target uint32
}

type _Handler func(ctx *machine.Context, op mips.Instr, pc uint32) _Branch

var none = _Branch{}

var (
	majorTab   [64]_Handler
	specialTab [64]_Handler
	regimmTab  [32]_Handler
)

func init() {
	majorTab = [64]_Handler{
		mips.OP_SPECIAL: execSpecial,
		mips.OP_REGIMM:  execRegimm,
		mips.OP_J:       execJ,
		mips.OP_JAL:     execJAL,
		mips.OP_BEQ:     execBEQ,
		mips.OP_BNE:     execBNE,
		mips.OP_BLEZ:    execBLEZ,
		mips.OP_BGTZ:    execBGTZ,
		mips.OP_ADDI:    execADDI,
		mips.OP_ADDIU:   execADDIU,
		mips.OP_SLTI:    execSLTI,
		mips.OP_SLTIU:   execSLTIU,
		mips.OP_ANDI:    execANDI,
		mips.OP_ORI:     execORI,
		mips.OP_XORI:    execXORI,
		mips.OP_LUI:     execLUI,
		mips.OP_COP0:    execCOP0,
		mips.OP_COP1:    execCOP1,
		mips.OP_BEQL:    execBEQ,
		mips.OP_BNEL:    execBNE,
		mips.OP_BLEZL:   execBLEZ,
		mips.OP_BGTZL:   execBGTZ,
		mips.OP_DADDI:   execDADDI,
		mips.OP_DADDIU:  execDADDIU,
		mips.OP_LDL:     execLDL,
		mips.OP_LDR:     execLDR,
		mips.OP_LB:      execLoad,
		mips.OP_LH:      execLoad,
		mips.OP_LWL:     execLWL,
		mips.OP_LW:      execLoad,
		mips.OP_LBU:     execLoad,
		mips.OP_LHU:     execLoad,
		mips.OP_LWR:     execLWR,
		mips.OP_LWU:     execLoad,
		mips.OP_SB:      execStore,
		mips.OP_SH:      execStore,
		mips.OP_SWL:     execSWL,
		mips.OP_SW:      execStore,
		mips.OP_SDL:     execSDL,
		mips.OP_SDR:     execSDR,
		mips.OP_SWR:     execSWR,
		mips.OP_CACHE:   execNop,
		mips.OP_LL:      execLL,
		mips.OP_LWC1:    execLWC1,
		mips.OP_LLD:     execLLD,
		mips.OP_LDC1:    execLDC1,
		mips.OP_LD:      execLoad,
		mips.OP_SC:      execSC,
		mips.OP_SWC1:    execSWC1,
		mips.OP_SCD:     execSCD,
		mips.OP_SDC1:    execSDC1,
		mips.OP_SD:      execStore,
	}
}

func execNop(_ *machine.Context, _ mips.Instr, _ uint32) _Branch {
	return none
}

func execReserved(ctx *machine.Context, _ mips.Instr, _ uint32) _Branch {
	ctx.RaiseGeneralException(machine.EXC_RI)
	return none
}

func dispatch(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	if fn := majorTab[op.Op()]; fn != nil {
		return fn(ctx, op, pc)
	} else {
		return execReserved(ctx, op, pc)
	}
}

func sext32(v uint64) uint64 {
	return uint64(int64(int32(v)))
}

func b2u(v bool) uint64 {
	if v {
		return 1
	} else {
		return 0
	}
}

// Exec executes a single non-branch instruction located at ctx.PC, without
// advancing the PC. It reports false if the instruction raised an exception,
// in which case ctx.PC already points at the handler.
func Exec(ctx *machine.Context, op mips.Instr) bool {
	ctx.Leave = 0
	dispatch(ctx, op, ctx.PC)
	return ctx.Leave == 0
}

// Step executes the instruction at ctx.PC, together with its delay slot if
// it is a branch, and returns the number of instructions executed.
func Step(ctx *machine.Context) int {
	pc := ctx.PC
	ctx.Leave = 0
	ctx.Delay = 0

	/* fetch the instruction */
	op, ok := ctx.Fetch(pc)
	if !ok {
		return 0
	}

	/* ERET and exceptions move the PC by themselves */
	br := dispatch(ctx, mips.Instr(op), pc)
	if ctx.Leave != 0 {
		return 1
	}

	/* plain instructions */
	if !br.ok {
		ctx.PC = pc + 4
		return 1
	}

	/* likely branches nullify the delay slot when not taken */
	if !br.taken && br.likely {
		ctx.PC = pc + 8
		return 1
	}

	/* fetch the delay slot */
	ctx.PC = pc + 4
	ctx.Delay = 1
	ds, ok := ctx.Fetch(pc + 4)

	/* a branch in a delay slot only has its link side effect */
	if ok {
		dispatch(ctx, mips.Instr(ds), pc+4)
	}

	/* the delay slot raised an exception */
	if ctx.Leave != 0 {
		return 2
	}

	/* transfer control */
	ctx.Delay = 0
	if br.taken {
		ctx.PC = br.target
	} else {
		ctx.PC = pc + 8
	}
	return 2
}
