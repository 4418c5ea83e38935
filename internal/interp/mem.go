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
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
)

type _LoadKind struct {
	size   int
	signed bool
}

var loadKinds = map[uint32]_LoadKind{
	mips.OP_LB:  {machine.SizeByte, true},
	mips.OP_LBU: {machine.SizeByte, false},
	mips.OP_LH:  {machine.SizeHalf, true},
	mips.OP_LHU: {machine.SizeHalf, false},
	mips.OP_LW:  {machine.SizeWord, true},
	mips.OP_LWU: {machine.SizeWord, false},
	mips.OP_LD:  {machine.SizeDouble, false},
}

var storeSizes = map[uint32]int{
	mips.OP_SB: machine.SizeByte,
	mips.OP_SH: machine.SizeHalf,
	mips.OP_SW: machine.SizeWord,
	mips.OP_SD: machine.SizeDouble,
}

func effective(ctx *machine.Context, op mips.Instr) uint32 {
	return uint32(ctx.GPR[op.Rs()]) + uint32(op.SImm())
}

// signExtend sign extends the low size bytes of v.
func signExtend(v uint64, size int) uint64 {
	switch size {
	case machine.SizeByte:
		return uint64(int64(int8(v)))
	case machine.SizeHalf:
		return uint64(int64(int16(v)))
	case machine.SizeWord:
		return uint64(int64(int32(v)))
	default:
		return v
	}
}

func execLoad(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	kind := loadKinds[op.Op()]
	v, ok := ctx.Load(effective(ctx, op), kind.size)

	/* the destination is untouched when the load faults */
	if ok {
		if kind.signed {
			v = signExtend(v, kind.size)
		}
		ctx.SetReg(op.Rt(), v)
	}
	return none
}

func execStore(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.Store(effective(ctx, op), storeSizes[op.Op()], ctx.GPR[op.Rt()])
	return none
}

/** Unaligned accesses **/

func execLWL(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^3, machine.SizeWord)

	/* merge the high bytes of rt with the memory word */
	if ok {
		sh := (addr & 3) * 8
		rt := uint32(ctx.GPR[op.Rt()])
		ctx.SetReg(op.Rt(), sext32(uint64(rt&(1<<sh-1)|uint32(mem)<<sh)))
	}
	return none
}

func execLWR(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^3, machine.SizeWord)

	/* merge the low bytes of rt with the memory word */
	if ok {
		sh := (3 - addr&3) * 8
		rt := uint32(ctx.GPR[op.Rt()])
		ctx.SetReg(op.Rt(), sext32(uint64(rt&^(0xffffffff>>sh)|uint32(mem)>>sh)))
	}
	return none
}

func execSWL(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^3, machine.SizeWord)

	/* read-modify-write of the containing word */
	if ok {
		sh := (addr & 3) * 8
		rt := uint32(ctx.GPR[op.Rt()])
		val := uint32(mem)&^(0xffffffff>>sh) | rt>>sh
		ctx.Store(addr&^3, machine.SizeWord, uint64(val))
	}
	return none
}

func execSWR(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^3, machine.SizeWord)

	/* read-modify-write of the containing word */
	if ok {
		sh := (3 - addr&3) * 8
		rt := uint32(ctx.GPR[op.Rt()])
		val := uint32(mem)&(1<<sh-1) | rt<<sh
		ctx.Store(addr&^3, machine.SizeWord, uint64(val))
	}
	return none
}

func execLDL(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^7, machine.SizeDouble)

	/* 64-bit variant of LWL */
	if ok {
		sh := uint64(addr&7) * 8
		ctx.SetReg(op.Rt(), ctx.GPR[op.Rt()]&(1<<sh-1)|mem<<sh)
	}
	return none
}

func execLDR(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^7, machine.SizeDouble)

	/* 64-bit variant of LWR */
	if ok {
		sh := uint64(7-addr&7) * 8
		ctx.SetReg(op.Rt(), ctx.GPR[op.Rt()]&^(^uint64(0)>>sh)|mem>>sh)
	}
	return none
}

func execSDL(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^7, machine.SizeDouble)

	/* 64-bit variant of SWL */
	if ok {
		sh := uint64(addr&7) * 8
		ctx.Store(addr&^7, machine.SizeDouble, mem&^(^uint64(0)>>sh)|ctx.GPR[op.Rt()]>>sh)
	}
	return none
}

func execSDR(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	addr := effective(ctx, op)
	mem, ok := ctx.Load(addr&^7, machine.SizeDouble)

	/* 64-bit variant of SWR */
	if ok {
		sh := uint64(7-addr&7) * 8
		ctx.Store(addr&^7, machine.SizeDouble, mem&(1<<sh-1)|ctx.GPR[op.Rt()]<<sh)
	}
	return none
}

/** Linked accesses **/

func loadLinked(ctx *machine.Context, op mips.Instr, size int) {
	addr := effective(ctx, op)
	v, ok := ctx.Load(addr, size)

	/* remember the physical line for SC */
	if ok {
		paddr, _ := ctx.Translate(addr, false)
		ctx.SetReg(op.Rt(), signExtend(v, size))
		ctx.COP0[mips.CP0_LLADDR] = uint64(paddr >> 4)
		ctx.LLBit = 1
	}
}

func storeConditional(ctx *machine.Context, op mips.Instr, size int) {
	if ctx.LLBit == 0 {
		ctx.SetReg(op.Rt(), 0)
		return
	}

	/* the link is consumed by the attempt */
	if ctx.Store(effective(ctx, op), size, ctx.GPR[op.Rt()]) {
		ctx.LLBit = 0
		ctx.SetReg(op.Rt(), 1)
	}
}

func execLL(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	loadLinked(ctx, op, machine.SizeWord)
	return none
}

func execLLD(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	loadLinked(ctx, op, machine.SizeDouble)
	return none
}

func execSC(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	storeConditional(ctx, op, machine.SizeWord)
	return none
}

func execSCD(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	storeConditional(ctx, op, machine.SizeDouble)
	return none
}

/** FPU accesses **/

func execLWC1(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	if v, ok := ctx.Load(effective(ctx, op), machine.SizeWord); ok {
		ctx.SetFS(op.Ft(), uint32(v))
	}
	return none
}

func execLDC1(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	if v, ok := ctx.Load(effective(ctx, op), machine.SizeDouble); ok {
		ctx.SetFD(op.Ft(), v)
	}
	return none
}

func execSWC1(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.Store(effective(ctx, op), machine.SizeWord, uint64(ctx.FS(op.Ft())))
	return none
}

func execSDC1(ctx *machine.Context, op mips.Instr, _ uint32) _Branch {
	ctx.Store(effective(ctx, op), machine.SizeDouble, ctx.FD(op.Ft()))
	return none
}
