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
	"math"

	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
)

/** Coprocessor 0 **/

func execCOP0(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	switch rs := op.Rs(); {
	case rs == mips.CP_MF:
		ctx.SetReg(op.Rt(), sext32(ctx.ReadCOP0(op.Rd())))
	case rs == mips.CP_DMF:
		ctx.SetReg(op.Rt(), ctx.ReadCOP0(op.Rd()))
	case rs == mips.CP_MT:
		ctx.WriteCOP0(op.Rd(), sext32(ctx.GPR[op.Rt()]))
	case rs == mips.CP_DMT:
		ctx.WriteCOP0(op.Rd(), ctx.GPR[op.Rt()])
	case rs >= mips.CP_CO:
		execCOP0Func(ctx, op.Funct())
	default:
		ctx.RaiseGeneralException(machine.EXC_RI)
	}
	return none
}

func execCOP0Func(ctx *machine.Context, fn uint32) {
	switch fn {
	case mips.C0_TLBR:
		ctx.TLBRead()
	case mips.C0_TLBWI:
		ctx.TLBWrite(false)
	case mips.C0_TLBWR:
		ctx.TLBWrite(true)
	case mips.C0_TLBP:
		ctx.TLBProbe()
	case mips.C0_ERET:
		ctx.ERET()
	}
}

/** Coprocessor 1 **/

func execCOP1(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	switch op.Rs() {
	case mips.CP_MF:
		ctx.SetReg(op.Rt(), sext32(uint64(ctx.FS(op.Fs()))))
	case mips.CP_DMF:
		ctx.SetReg(op.Rt(), ctx.FD(op.Fs()))
	case mips.CP_CF:
		ctx.SetReg(op.Rt(), sext32(uint64(readFCR(ctx, op.Fs()))))
	case mips.CP_MT:
		ctx.SetFS(op.Fs(), uint32(ctx.GPR[op.Rt()]))
	case mips.CP_DMT:
		ctx.SetFD(op.Fs(), ctx.GPR[op.Rt()])
	case mips.CP_CT:
		if op.Fs() == 31 {
			ctx.FCR31 = uint32(ctx.GPR[op.Rt()]) & machine.FCR31_MASK
		}
	case mips.CP_BC:
		return branch(op, pc, (ctx.FCR31&machine.FCR31_C != 0) == (op.Rt()&1 != 0))
	case mips.FMT_S:
		execFmtS(ctx, op)
	case mips.FMT_D:
		execFmtD(ctx, op)
	case mips.FMT_W:
		execFmtInt(ctx, op, float64(int32(ctx.FS(op.Fs()))))
	case mips.FMT_L:
		execFmtInt(ctx, op, float64(int64(ctx.FD(op.Fs()))))
	default:
		ctx.RaiseGeneralException(machine.EXC_RI)
	}
	return none
}

func readFCR(ctx *machine.Context, r int) uint32 {
	switch r {
	case 0:
		return ctx.FCR0
	case 31:
		return ctx.FCR31
	default:
		return 0
	}
}

func setCond(ctx *machine.Context, cond uint32, x float64, y float64) {
	un := math.IsNaN(x) || math.IsNaN(y)
	ok := (un && cond&1 != 0) || (!un && x == y && cond&2 != 0) || (!un && x < y && cond&4 != 0)

	/* update the condition bit */
	if ok {
		ctx.FCR31 |= machine.FCR31_C
	} else {
		ctx.FCR31 &^= machine.FCR31_C
	}
}

func execFmtS(ctx *machine.Context, op mips.Instr) {
	fs := math.Float32frombits(ctx.FS(op.Fs()))
	ft := math.Float32frombits(ctx.FS(op.Ft()))

	/* compares */
	if fn := op.Funct(); fn >= mips.F_C {
		setCond(ctx, op.Cond(), float64(fs), float64(ft))
		return
	}

	/* arithmetic, stored as single */
	switch op.Funct() {
	case mips.F_ADD:
		ctx.SetFS(op.Fd(), math.Float32bits(fs+ft))
	case mips.F_SUB:
		ctx.SetFS(op.Fd(), math.Float32bits(fs-ft))
	case mips.F_MUL:
		ctx.SetFS(op.Fd(), math.Float32bits(fs*ft))
	case mips.F_DIV:
		ctx.SetFS(op.Fd(), math.Float32bits(fs/ft))
	case mips.F_SQRT:
		ctx.SetFS(op.Fd(), math.Float32bits(float32(math.Sqrt(float64(fs)))))
	case mips.F_ABS:
		ctx.SetFS(op.Fd(), math.Float32bits(float32(math.Abs(float64(fs)))))
	case mips.F_MOV:
		ctx.SetFS(op.Fd(), ctx.FS(op.Fs()))
	case mips.F_NEG:
		ctx.SetFS(op.Fd(), ctx.FS(op.Fs())^0x80000000)
	default:
		convert(ctx, op, float64(fs))
	}
}

func execFmtD(ctx *machine.Context, op mips.Instr) {
	fs := math.Float64frombits(ctx.FD(op.Fs()))
	ft := math.Float64frombits(ctx.FD(op.Ft()))

	/* compares */
	if fn := op.Funct(); fn >= mips.F_C {
		setCond(ctx, op.Cond(), fs, ft)
		return
	}

	/* arithmetic, stored as double */
	switch op.Funct() {
	case mips.F_ADD:
		ctx.SetFD(op.Fd(), math.Float64bits(fs+ft))
	case mips.F_SUB:
		ctx.SetFD(op.Fd(), math.Float64bits(fs-ft))
	case mips.F_MUL:
		ctx.SetFD(op.Fd(), math.Float64bits(fs*ft))
	case mips.F_DIV:
		ctx.SetFD(op.Fd(), math.Float64bits(fs/ft))
	case mips.F_SQRT:
		ctx.SetFD(op.Fd(), math.Float64bits(math.Sqrt(fs)))
	case mips.F_ABS:
		ctx.SetFD(op.Fd(), math.Float64bits(math.Abs(fs)))
	case mips.F_MOV:
		ctx.SetFD(op.Fd(), ctx.FD(op.Fs()))
	case mips.F_NEG:
		ctx.SetFD(op.Fd(), ctx.FD(op.Fs())^(1<<63))
	default:
		convert(ctx, op, fs)
	}
}

func execFmtInt(ctx *machine.Context, op mips.Instr, v float64) {
	switch op.Funct() {
	case mips.F_CVT_S, mips.F_CVT_D:
		convert(ctx, op, v)
	default:
		ctx.RaiseGeneralException(machine.EXC_RI)
	}
}

// roundMode returns the rounding function of FCR31.RM.
func roundMode(ctx *machine.Context) func(float64) float64 {
	switch ctx.FCR31 & machine.FCR31_RM {
	case machine.RM_ZERO:
		return math.Trunc
	case machine.RM_PLUS:
		return math.Ceil
	case machine.RM_MINUS:
		return math.Floor
	default:
		return math.RoundToEven
	}
}

// toWord converts with the x86 "integer indefinite" result on overflow.
func toWord(v float64) uint32 {
	if math.IsNaN(v) || v >= 1<<31 || v < -(1<<31) {
		return 0x80000000
	} else {
		return uint32(int32(v))
	}
}

func toLong(v float64) uint64 {
	if math.IsNaN(v) || v >= 1<<63 || v < -(1<<63) {
		return 1 << 63
	} else {
		return uint64(int64(v))
	}
}

func convert(ctx *machine.Context, op mips.Instr, v float64) {
	var rnd func(float64) float64

	/* pick the rounding */
	switch op.Funct() {
	case mips.F_ROUND_L, mips.F_ROUND_W:
		rnd = math.RoundToEven
	case mips.F_TRUNC_L, mips.F_TRUNC_W:
		rnd = math.Trunc
	case mips.F_CEIL_L, mips.F_CEIL_W:
		rnd = math.Ceil
	case mips.F_FLOOR_L, mips.F_FLOOR_W:
		rnd = math.Floor
	default:
		rnd = roundMode(ctx)
	}

	/* convert into the destination format */
	switch fn := op.Funct(); fn {
	case mips.F_CVT_S:
		ctx.SetFS(op.Fd(), math.Float32bits(float32(v)))
	case mips.F_CVT_D:
		ctx.SetFD(op.Fd(), math.Float64bits(v))
	case mips.F_CVT_W, mips.F_ROUND_W, mips.F_TRUNC_W, mips.F_CEIL_W, mips.F_FLOOR_W:
		ctx.SetFS(op.Fd(), toWord(rnd(v)))
	case mips.F_CVT_L, mips.F_ROUND_L, mips.F_TRUNC_L, mips.F_CEIL_L, mips.F_FLOOR_L:
		ctx.SetFD(op.Fd(), toLong(rnd(v)))
	default:
		ctx.RaiseGeneralException(machine.EXC_RI)
	}
}
