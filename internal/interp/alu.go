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

package interp

import (
	"math/bits"

	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
)

func init() {
	specialTab = [64]_Handler{
		mips.FN_SLL:     execShift,
		mips.FN_SRL:     execShift,
		mips.FN_SRA:     execShift,
		mips.FN_SLLV:    execShift,
		mips.FN_SRLV:    execShift,
		mips.FN_SRAV:    execShift,
		mips.FN_JR:      execJR,
		mips.FN_JALR:    execJR,
		mips.FN_SYSCALL: execSYSCALL,
		mips.FN_BREAK:   execBREAK,
		mips.FN_SYNC:    execNop,
		mips.FN_MFHI:    execMoveHiLo,
		mips.FN_MTHI:    execMoveHiLo,
		mips.FN_MFLO:    execMoveHiLo,
		mips.FN_MTLO:    execMoveHiLo,
		mips.FN_DSLLV:   execShift64,
		mips.FN_DSRLV:   execShift64,
		mips.FN_DSRAV:   execShift64,
		mips.FN_MULT:    execMulDiv,
		mips.FN_MULTU:   execMulDiv,
		mips.FN_DIV:     execMulDiv,
		mips.FN_DIVU:    execMulDiv,
		mips.FN_DMULT:   execMulDiv,
		mips.FN_DMULTU:  execMulDiv,
		mips.FN_DDIV:    execMulDiv,
		mips.FN_DDIVU:   execMulDiv,
		mips.FN_ADD:     execArith,
		mips.FN_ADDU:    execArith,
		mips.FN_SUB:     execArith,
		mips.FN_SUBU:    execArith,
		mips.FN_AND:     execLogic,
		mips.FN_OR:      execLogic,
		mips.FN_XOR:     execLogic,
		mips.FN_NOR:     execLogic,
		mips.FN_SLT:     execLogic,
		mips.FN_SLTU:    execLogic,
		mips.FN_DADD:    execArith,
		mips.FN_DADDU:   execArith,
		mips.FN_DSUB:    execArith,
		mips.FN_DSUBU:   execArith,
		mips.FN_TGE:     execTrap,
		mips.FN_TGEU:    execTrap,
		mips.FN_TLT:     execTrap,
		mips.FN_TLTU:    execTrap,
		mips.FN_TEQ:     execTrap,
		mips.FN_TNE:     execTrap,
		mips.FN_DSLL:    execShift64,
		mips.FN_DSRL:    execShift64,
		mips.FN_DSRA:    execShift64,
		mips.FN_DSLL32:  execShift64,
		mips.FN_DSRL32:  execShift64,
		mips.FN_DSRA32:  execShift64,
	}
	regimmTab = [32]_Handler{
		mips.RI_BLTZ:    execRegimmBranch,
		mips.RI_BGEZ:    execRegimmBranch,
		mips.RI_BLTZL:   execRegimmBranch,
		mips.RI_BGEZL:   execRegimmBranch,
		mips.RI_BLTZAL:  execRegimmBranch,
		mips.RI_BGEZAL:  execRegimmBranch,
		mips.RI_BLTZALL: execRegimmBranch,
		mips.RI_BGEZALL: execRegimmBranch,
		mips.RI_TGEI:    execTrapImm,
		mips.RI_TGEIU:   execTrapImm,
		mips.RI_TLTI:    execTrapImm,
		mips.RI_TLTIU:   execTrapImm,
		mips.RI_TEQI:    execTrapImm,
		mips.RI_TNEI:    execTrapImm,
	}
}

func execSpecial(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	if fn := specialTab[op.Funct()]; fn != nil {
		return fn(ctx, op, pc)
	} else {
		return execReserved(ctx, op, pc)
	}
}

func execRegimm(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	if fn := regimmTab[op.Rt()]; fn != nil {
		return fn(ctx, op, pc)
	} else {
		return execReserved(ctx, op, pc)
	}
}

/** Shifts **/

func execShift(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	sa := op.Sa()
	rt := uint32(ctx.GPR[op.Rt()])

	/* variable shifts take the amount from rs */
	if op.Funct() >= mips.FN_SLLV {
		sa = uint32(ctx.GPR[op.Rs()]) & 31
	}

	/* 32-bit shift, sign extended result */
	switch op.Funct() &^ mips.FN_SLLV {
	case mips.FN_SLL:
		ctx.SetReg(op.Rd(), sext32(uint64(rt<<sa)))
	case mips.FN_SRL:
		ctx.SetReg(op.Rd(), sext32(uint64(rt>>sa)))
	default:
		ctx.SetReg(op.Rd(), uint64(int64(int32(rt)>>sa)))
	}
	return none
}

func execShift64(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	fn := op.Funct()
	sa := op.Sa()
	rt := ctx.GPR[op.Rt()]

	/* normalize to DSLL/DSRL/DSRA */
	switch {
	case fn >= mips.FN_DSLL32:
		fn -= mips.FN_DSLL32 - mips.FN_DSLL
		sa += 32
	case fn < mips.FN_DSLL:
		fn += mips.FN_DSLL - mips.FN_DSLLV
		sa = uint32(ctx.GPR[op.Rs()]) & 63
	}

	/* 64-bit shift */
	switch fn {
	case mips.FN_DSLL:
		ctx.SetReg(op.Rd(), rt<<sa)
	case mips.FN_DSRL:
		ctx.SetReg(op.Rd(), rt>>sa)
	default:
		ctx.SetReg(op.Rd(), uint64(int64(rt)>>sa))
	}
	return none
}

/** Arithmetic and logic **/

func add32(ctx *machine.Context, rd int, x uint64, y uint64, trap bool) {
	r := int64(int32(x)) + int64(int32(y))
	if trap && r != int64(int32(r)) {
		ctx.RaiseGeneralException(machine.EXC_OV)
	} else {
		ctx.SetReg(rd, sext32(uint64(r)))
	}
}

func add64(ctx *machine.Context, rd int, x uint64, y uint64, trap bool) {
	r := x + y
	if trap && int64(x^y) >= 0 && int64(x^r) < 0 {
		ctx.RaiseGeneralException(machine.EXC_OV)
	} else {
		ctx.SetReg(rd, r)
	}
}

func execArith(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	rs := ctx.GPR[op.Rs()]
	rt := ctx.GPR[op.Rt()]

	/* signed variants trap on overflow */
	switch fn := op.Funct(); fn {
	case mips.FN_ADD, mips.FN_ADDU:
		add32(ctx, op.Rd(), rs, rt, fn == mips.FN_ADD)
	case mips.FN_SUB, mips.FN_SUBU:
		r := int64(int32(rs)) - int64(int32(rt))
		if fn == mips.FN_SUB && r != int64(int32(r)) {
			ctx.RaiseGeneralException(machine.EXC_OV)
		} else {
			ctx.SetReg(op.Rd(), sext32(uint64(r)))
		}
	case mips.FN_DADD, mips.FN_DADDU:
		add64(ctx, op.Rd(), rs, rt, fn == mips.FN_DADD)
	default:
		r := rs - rt
		if fn == mips.FN_DSUB && int64(rs^rt) < 0 && int64(rs^r) < 0 {
			ctx.RaiseGeneralException(machine.EXC_OV)
		} else {
			ctx.SetReg(op.Rd(), r)
		}
	}
	return none
}

func execLogic(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	rs := ctx.GPR[op.Rs()]
	rt := ctx.GPR[op.Rt()]

	switch op.Funct() {
	case mips.FN_AND:
		ctx.SetReg(op.Rd(), rs&rt)
	case mips.FN_OR:
		ctx.SetReg(op.Rd(), rs|rt)
	case mips.FN_XOR:
		ctx.SetReg(op.Rd(), rs^rt)
	case mips.FN_NOR:
		ctx.SetReg(op.Rd(), ^(rs | rt))
	case mips.FN_SLT:
		ctx.SetReg(op.Rd(), b2u(int64(rs) < int64(rt)))
	default:
		ctx.SetReg(op.Rd(), b2u(rs < rt))
	}
	return none
}

func execMoveHiLo(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	switch op.Funct() {
	case mips.FN_MFHI:
		ctx.SetReg(op.Rd(), ctx.HI)
	case mips.FN_MFLO:
		ctx.SetReg(op.Rd(), ctx.LO)
	case mips.FN_MTHI:
		ctx.HI = ctx.GPR[op.Rs()]
	default:
		ctx.LO = ctx.GPR[op.Rs()]
	}
	return none
}

func execMulDiv(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	rs := ctx.GPR[op.Rs()]
	rt := ctx.GPR[op.Rt()]

	switch op.Funct() {
	case mips.FN_MULT:
		r := int64(int32(rs)) * int64(int32(rt))
		ctx.LO, ctx.HI = sext32(uint64(r)), sext32(uint64(r>>32))
	case mips.FN_MULTU:
		r := uint64(uint32(rs)) * uint64(uint32(rt))
		ctx.LO, ctx.HI = sext32(r), sext32(r>>32)
	case mips.FN_DIV:
		x, y := int32(rs), int32(rt)
		if y != 0 {
			ctx.LO, ctx.HI = uint64(int64(x/y)), uint64(int64(x%y))
		} else if x >= 0 {
			ctx.LO, ctx.HI = ^uint64(0), uint64(int64(x))
		} else {
			ctx.LO, ctx.HI = 1, uint64(int64(x))
		}
	case mips.FN_DIVU:
		x, y := uint32(rs), uint32(rt)
		if y != 0 {
			ctx.LO, ctx.HI = sext32(uint64(x/y)), sext32(uint64(x%y))
		} else {
			ctx.LO, ctx.HI = ^uint64(0), sext32(uint64(x))
		}
	case mips.FN_DMULT:
		hi, lo := bits.Mul64(rs, rt)
		if int64(rs) < 0 {
			hi -= rt
		}
		if int64(rt) < 0 {
			hi -= rs
		}
		ctx.LO, ctx.HI = lo, hi
	case mips.FN_DMULTU:
		ctx.HI, ctx.LO = bits.Mul64(rs, rt)
	case mips.FN_DDIV:
		x, y := int64(rs), int64(rt)
		if y != 0 {
			ctx.LO, ctx.HI = uint64(x/y), uint64(x%y)
		} else if x >= 0 {
			ctx.LO, ctx.HI = ^uint64(0), rs
		} else {
			ctx.LO, ctx.HI = 1, rs
		}
	default:
		if rt != 0 {
			ctx.LO, ctx.HI = rs/rt, rs%rt
		} else {
			ctx.LO, ctx.HI = ^uint64(0), rs
		}
	}
	return none
}

/** Traps **/

func trapCond(cond uint32, rs uint64, rt uint64) bool {
	switch cond {
	case mips.FN_TGE:
		return int64(rs) >= int64(rt)
	case mips.FN_TGEU:
		return rs >= rt
	case mips.FN_TLT:
		return int64(rs) < int64(rt)
	case mips.FN_TLTU:
		return rs < rt
	case mips.FN_TEQ:
		return rs == rt
	default:
		return rs != rt
	}
}

func execTrap(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	if trapCond(op.Funct(), ctx.GPR[op.Rs()], ctx.GPR[op.Rt()]) {
		ctx.RaiseGeneralException(machine.EXC_TR)
	}
	return none
}

func execTrapImm(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	cond := uint32(op.Rt()) - mips.RI_TGEI + mips.FN_TGE
	if trapCond(cond, ctx.GPR[op.Rs()], uint64(op.SImm())) {
		ctx.RaiseGeneralException(machine.EXC_TR)
	}
	return none
}

func execSYSCALL(ctx *machine.Context, _ mips.Instr, _ uint32) _Branch {
	ctx.RaiseGeneralException(machine.EXC_SYS)
	return none
}

func execBREAK(ctx *machine.Context, _ mips.Instr, _ uint32) _Branch {
	ctx.RaiseGeneralException(machine.EXC_BP)
	return none
}

/** Immediates **/

func execADDI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	add32(ctx, op.Rt(), ctx.GPR[op.Rs()], uint64(op.SImm()), true)
	return none
}

func execADDIU(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	add32(ctx, op.Rt(), ctx.GPR[op.Rs()], uint64(op.SImm()), false)
	return none
}

func execDADDI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	add64(ctx, op.Rt(), ctx.GPR[op.Rs()], uint64(op.SImm()), true)
	return none
}

func execDADDIU(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	add64(ctx, op.Rt(), ctx.GPR[op.Rs()], uint64(op.SImm()), false)
	return none
}

func execSLTI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.SetReg(op.Rt(), b2u(int64(ctx.GPR[op.Rs()]) < op.SImm()))
	return none
}

func execSLTIU(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.SetReg(op.Rt(), b2u(ctx.GPR[op.Rs()] < uint64(op.SImm())))
	return none
}

func execANDI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.SetReg(op.Rt(), ctx.GPR[op.Rs()]&op.UImm())
	return none
}

func execORI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.SetReg(op.Rt(), ctx.GPR[op.Rs()]|op.UImm())
	return none
}

func execXORI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.SetReg(op.Rt(), ctx.GPR[op.Rs()]^op.UImm())
	return none
}

func execLUI(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.SetReg(op.Rt(), uint64(op.SImm()<<16))
	return none
}
