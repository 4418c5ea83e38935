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
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTrace_EndToEnd(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 5),
		mips.Imm(mips.OP_ADDIU, 2, 0, 3),
		mips.ALU(mips.FN_ADD, 3, 1, 2),
		mips.SYSCALL(),
	}
	ops, n := BuildTrace(raw, 100)
	require.Equal(t, 4, n)
	require.Len(t, ops, 4)
	assert.Equal(t, EndNow, ops[3].Boundary)

	/* r3 is known after the third instruction */
	v, ok := ops[3].Const.Known(3)
	assert.True(t, ok)
	assert.Equal(t, uint64(8), v)
	assert.Equal(t, mips.Imm(mips.OP_ADDIU, 3, 0, 8), ops[2].Instr)
	assert.True(t, ops[3].Width.Is32(3))
}

func TestBuildTrace_DelaySlot(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 5),
		mips.Branch(mips.OP_BEQ, 1, 2, 4),
		mips.Imm(mips.OP_ADDIU, 3, 0, 1),
		mips.Imm(mips.OP_ADDIU, 4, 0, 1),
	}
	ops, n := BuildTrace(raw, 10)
	require.Equal(t, 3, n)
	assert.Equal(t, EndDelay, ops[1].Boundary)
	assert.False(t, ops[1].DelaySlotOmitted)
	assert.True(t, ops[2].InDelaySlot)
}

func TestBuildTrace_DelaySlotOverBudget(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 5),
		mips.Imm(mips.OP_ADDIU, 2, 1, 5),
		mips.Branch(mips.OP_BNE, 1, 2, 4),
		mips.Imm(mips.OP_ADDIU, 3, 0, 1),
	}
	ops, n := BuildTrace(raw, 3)
	require.Equal(t, 3, n)
	assert.True(t, ops[2].DelaySlotOmitted)

	/* the input ends right after the branch */
	ops, n = BuildTrace(raw[:3], 10)
	require.Equal(t, 3, n)
	assert.True(t, ops[2].DelaySlotOmitted)
}

func TestBuildTrace_BranchInDelaySlot(t *testing.T) {
	raw := []mips.Instr{
		mips.Branch(mips.OP_BEQ, 1, 2, 4),
		mips.Branch(mips.OP_BNE, 3, 4, 2),
		mips.NOP,
	}
	ops, n := BuildTrace(raw, 10)
	require.Equal(t, 2, n)
	assert.False(t, ops[0].DelaySlotOmitted)
	assert.True(t, ops[1].InDelaySlot)
	assert.Equal(t, EndDelay, ops[1].Boundary)

	/* a syscall in the delay slot still belongs to the trace */
	raw[1] = mips.SYSCALL()
	ops, n = BuildTrace(raw, 10)
	require.Equal(t, 2, n)
	assert.False(t, ops[0].DelaySlotOmitted)
	assert.True(t, ops[1].InDelaySlot)
	assert.Equal(t, EndNow, ops[1].Boundary)
}

func TestBuildTrace_BoundaryInDelaySlot(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 5),
		mips.Branch(mips.OP_BNE, 1, 2, 4),
		mips.SYSCALL(),
		mips.NOP,
	}
	ops, n := BuildTrace(raw, 4)
	require.Equal(t, 3, n)
	assert.False(t, ops[1].DelaySlotOmitted)
	assert.True(t, ops[2].InDelaySlot)

	/* volatile COP0 writes and reserved encodings too */
	for _, ds := range []mips.Instr{mips.MTC0(4, mips.CP0_STATUS), mips.EncodeR(0x05, 0, 0, 0, 0)} {
		raw[2] = ds
		ops, n = BuildTrace(raw, 4)
		require.Equal(t, 3, n, "%s", ds)
		assert.False(t, ops[1].DelaySlotOmitted, "%s", ds)
	}

	/* only the budget can cut it off */
	ops, n = BuildTrace(raw, 2)
	require.Equal(t, 2, n)
	assert.True(t, ops[1].DelaySlotOmitted)
}

func TestBuildTrace_Budget(t *testing.T) {
	raw := make([]mips.Instr, 64)
	for i := range raw {
		raw[i] = mips.Imm(mips.OP_ADDIU, 1+i%30, 1+(i+1)%30, int32(i))
	}
	for max := 1; max < 70; max++ {
		ops, n := BuildTrace(raw, max)
		require.Equal(t, len(ops), n)
		require.LessOrEqual(t, n, max)
		require.GreaterOrEqual(t, n, 1)
	}
	ops, n := BuildTrace(nil, 10)
	assert.Zero(t, n)
	assert.Empty(t, ops)
}

func TestBuildTrace_RandomBounds(t *testing.T) {
	gofakeit.Seed(20250101)
	for i := 0; i < 2000; i++ {
		raw := make([]mips.Instr, gofakeit.Number(1, 40))
		for j := range raw {
			raw[j] = mips.Instr(gofakeit.Uint32())
		}
		max := gofakeit.Number(1, 48)
		ops, n := BuildTrace(raw, max)
		require.LessOrEqual(t, n, max)
		require.GreaterOrEqual(t, n, 1)
		for k := 0; k < n-1; k++ {
			if ops[k].Boundary == EndDelay {
				require.Equal(t, n, k+2)
				require.True(t, ops[k+1].InDelaySlot)
			}
			require.NotEqual(t, EndNow, ops[k].Boundary)
		}
	}
}

func TestBuildTrace_COP0Writes(t *testing.T) {
	raw := []mips.Instr{
		mips.MTC0(4, mips.CP0_ENTRYHI),
		mips.MTC0(4, mips.CP0_STATUS),
		mips.NOP,
	}
	ops, n := BuildTrace(raw, 10)
	require.Equal(t, 2, n)
	assert.Equal(t, Continue, ops[0].Boundary)
	assert.Equal(t, EndNow, ops[1].Boundary)
	for r, v := range VolatileCOP0 {
		if v {
			assert.Equal(t, EndNow, IsTraceBoundary(mips.MTC0(1, r)))
		} else {
			assert.Equal(t, Continue, IsTraceBoundary(mips.MTC0(1, r)))
		}
	}
}

func TestBoundary_Classes(t *testing.T) {
	assert.Equal(t, EndNow, IsTraceBoundary(mips.SYSCALL()))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.BREAK()))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.ERET()))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.ALU(mips.FN_TEQ, 0, 1, 2)))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.RegImm(mips.RI_TNEI, 1, 2)))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.Imm(mips.OP_CACHE, 0, 4, 0)))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.COP1Move(mips.CP_CT, 4, 31)))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.Instr(mips.OP_COP2<<26)))
	assert.Equal(t, EndNow, IsTraceBoundary(mips.EncodeR(0x01, 1, 2, 3, 0)))
	assert.Equal(t, EndDelay, IsTraceBoundary(mips.Jump(mips.OP_JAL, 0x100)))
	assert.Equal(t, EndDelay, IsTraceBoundary(mips.JR(31)))
	assert.Equal(t, EndDelay, IsTraceBoundary(mips.BC1(mips.BC_TL, 3)))
	assert.Equal(t, Continue, IsTraceBoundary(mips.COP1Move(mips.CP_MT, 4, 2)))
	assert.Equal(t, Continue, IsTraceBoundary(mips.Imm(mips.OP_LW, 1, 2, 0)))
	assert.True(t, IsReserved(mips.EncodeR(0x05, 0, 0, 0, 0)))
	assert.False(t, IsReserved(mips.NOP))
}

func TestConstAnalysis_Rewrites(t *testing.T) {
	var a ConstAnalysis
	InitConstAnalysis(&a)

	/* partially known values */
	op := UpdateConstAnalysis(&a, mips.Imm(mips.OP_ORI, 1, 1, 0xff))
	assert.Equal(t, mips.Imm(mips.OP_ORI, 1, 1, 0xff), op)
	assert.Equal(t, uint64(0xff), a.Mask[1])
	assert.Equal(t, uint64(0xff), a.Bits[1])

	/* zero operands are substituted */
	op = UpdateConstAnalysis(&a, mips.Move(2, 0))
	assert.True(t, a.IsZero(2))
	op = UpdateConstAnalysis(&a, mips.ALU(mips.FN_ADDU, 3, 4, 2))
	assert.Equal(t, mips.ALU(mips.FN_ADDU, 3, 4, 0), op)

	/* redundant definitions vanish */
	UpdateConstAnalysis(&a, mips.Imm(mips.OP_LUI, 5, 0, 0x8000))
	op = UpdateConstAnalysis(&a, mips.Imm(mips.OP_LUI, 5, 0, 0x8000))
	assert.Equal(t, mips.NOP, op)
	v, ok := a.Known(5)
	assert.True(t, ok)
	assert.Equal(t, uint64(0xffffffff80000000), v)

	/* overflow keeps the trapping instruction */
	UpdateConstAnalysis(&a, mips.Imm(mips.OP_LUI, 6, 0, 0x7fff))
	UpdateConstAnalysis(&a, mips.Imm(mips.OP_ORI, 6, 6, 0xffff))
	add := mips.Imm(mips.OP_ADDI, 7, 6, 1)
	assert.Equal(t, add, UpdateConstAnalysis(&a, add))

	/* links are unknown */
	UpdateConstAnalysis(&a, mips.Imm(mips.OP_ADDIU, 31, 0, 4))
	UpdateConstAnalysis(&a, mips.Jump(mips.OP_JAL, 0x1000))
	_, ok = a.Known(31)
	assert.False(t, ok)

	/* reserved encodings forget everything */
	UpdateConstAnalysis(&a, mips.Instr(mips.OP_COP2<<26))
	_, ok = a.Known(5)
	assert.False(t, ok)
	assert.True(t, a.IsZero(0))
}

func TestWidthAnalysis_Rules(t *testing.T) {
	var c ConstAnalysis
	var w WidthAnalysis
	InitConstAnalysis(&c)
	InitWidthAnalysis(&w)
	step := func(op mips.Instr) mips.Instr {
		op = UpdateConstAnalysis(&c, op)
		return UpdateWidthAnalysis(&w, &c, op)
	}

	assert.Equal(t, 1, w.Width(0))
	assert.Equal(t, 64, w.Width(1))
	step(mips.Imm(mips.OP_LB, 1, 2, 0))
	assert.Equal(t, 8, w.Width(1))
	step(mips.Imm(mips.OP_LHU, 3, 2, 0))
	assert.Equal(t, 17, w.Width(3))
	step(mips.Imm(mips.OP_LW, 4, 2, 0))
	assert.Equal(t, 32, w.Width(4))
	step(mips.Imm(mips.OP_LWU, 5, 2, 0))
	assert.Equal(t, 33, w.Width(5))

	/* sign extension of a 32-bit value is a move */
	assert.Equal(t, mips.Move(6, 4), step(mips.Shift(mips.FN_SLL, 6, 4, 0)))
	assert.Equal(t, mips.Shift(mips.FN_SLL, 6, 5, 0), step(mips.Shift(mips.FN_SLL, 6, 5, 0)))
	assert.Equal(t, mips.Move(7, 4), step(mips.Imm(mips.OP_ADDIU, 7, 4, 0)))

	/* multiply unit */
	step(mips.ALU(mips.FN_MULT, 0, 4, 5))
	assert.Equal(t, 32, w.Width(mips.HI))
	step(mips.ALU(mips.FN_DMULTU, 0, 4, 5))
	assert.Equal(t, 64, w.Width(mips.LO))

	/* shifts */
	step(mips.Shift(mips.FN_SRL, 8, 9, 4))
	assert.Equal(t, 29, w.Width(8))
	step(mips.Shift(mips.FN_DSLL32, 8, 9, 0))
	assert.Equal(t, 64, w.Width(8))
}
