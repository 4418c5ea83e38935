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

func link(ctx *machine.Context, r int, pc uint32) {
	ctx.SetReg(r, sext32(uint64(pc+8)))
}

func branch(op mips.Instr, pc uint32, taken bool) _Branch {
	return _Branch{
		ok:     true,
		taken:  taken,
		likely: op.IsLikely(),
		target: op.BranchTarget(pc),
	}
}

func execJ(_ *machine.Context, op mips.Instr, pc uint32) _Branch {
	return _Branch{ok: true, taken: true, target: op.JumpTarget(pc)}
}

func execJAL(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	link(ctx, mips.RA, pc)
	return _Branch{ok: true, taken: true, target: op.JumpTarget(pc)}
}

func execJR(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	dst := uint32(ctx.GPR[op.Rs()])

	/* JALR reads rs before writing the link register */
	if op.Funct() == mips.FN_JALR {
		link(ctx, op.Rd(), pc)
	}

	/* jump to the register */
	return _Branch{ok: true, taken: true, target: dst}
}

func execBEQ(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	return branch(op, pc, ctx.GPR[op.Rs()] == ctx.GPR[op.Rt()])
}

func execBNE(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	return branch(op, pc, ctx.GPR[op.Rs()] != ctx.GPR[op.Rt()])
}

func execBLEZ(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	return branch(op, pc, int64(ctx.GPR[op.Rs()]) <= 0)
}

func execBGTZ(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	return branch(op, pc, int64(ctx.GPR[op.Rs()]) > 0)
}

func execRegimmBranch(ctx *machine.Context, op mips.Instr, pc uint32) _Branch {
	rs := int64(ctx.GPR[op.Rs()])
	rt := op.Rt()

	/* bit 0 selects BGEZ over BLTZ */
	taken := rs < 0
	if rt&1 != 0 {
		taken = rs >= 0
	}

	/* the link is written whether or not the branch is taken */
	if rt&0x10 != 0 {
		link(ctx, mips.RA, pc)
	}
	return branch(op, pc, taken)
}
