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
	"github.com/cloudwego/mipsjit/internal/interp"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/gofuzz"
	"github.com/stretchr/testify/require"
)

var oracleFuncts = []uint32{
	mips.FN_ADD, mips.FN_ADDU, mips.FN_SUB, mips.FN_SUBU,
	mips.FN_AND, mips.FN_OR, mips.FN_XOR, mips.FN_NOR,
	mips.FN_SLT, mips.FN_SLTU,
	mips.FN_DADD, mips.FN_DADDU, mips.FN_DSUB, mips.FN_DSUBU,
	mips.FN_SLLV, mips.FN_SRLV, mips.FN_SRAV,
	mips.FN_DSLLV, mips.FN_DSRLV, mips.FN_DSRAV,
}

var oracleShifts = []uint32{
	mips.FN_SLL, mips.FN_SRL, mips.FN_SRA,
	mips.FN_DSLL, mips.FN_DSRL, mips.FN_DSRA,
	mips.FN_DSLL32, mips.FN_DSRL32, mips.FN_DSRA32,
}

var oracleImms = []uint32{
	mips.OP_ADDI, mips.OP_ADDIU, mips.OP_SLTI, mips.OP_SLTIU,
	mips.OP_ANDI, mips.OP_ORI, mips.OP_XORI, mips.OP_LUI,
	mips.OP_DADDI, mips.OP_DADDIU,
}

var oracleHiLo = []uint32{
	mips.FN_MULT, mips.FN_MULTU, mips.FN_DIV, mips.FN_DIVU,
	mips.FN_MFHI, mips.FN_MFLO, mips.FN_MTHI, mips.FN_MTLO,
}

// randomOp picks a straight-line integer instruction over a small register
// set, so that values flow between instructions.
func randomOp(f *gofakeit.Faker) mips.Instr {
	rd := f.Number(0, 7)
	rs := f.Number(0, 7)
	rt := f.Number(0, 7)
	imm := int32(int16(f.Uint16()))

	/* small immediates make constant folding interesting */
	if f.Bool() {
		imm = int32(f.Number(-4, 4))
	}

	switch f.Number(0, 3) {
	case 0:
		return mips.ALU(oracleFuncts[f.Number(0, len(oracleFuncts)-1)], rd, rs, rt)
	case 1:
		return mips.Shift(oracleShifts[f.Number(0, len(oracleShifts)-1)], rd, rt, uint32(f.Number(0, 31)))
	case 2:
		return mips.Imm(oracleImms[f.Number(0, len(oracleImms)-1)], rt, rs, imm)
	default:
		return mips.ALU(oracleHiLo[f.Number(0, len(oracleHiLo)-1)], rd, rs, rt)
	}
}

func newOracleContext(t *testing.T, regs [34]uint64) *machine.Context {
	mem, err := machine.NewMemory(1 << 16)
	require.NoError(t, err)
	ctx := machine.NewContext(mem)
	ctx.PC = 0x80000000
	for r := 1; r < len(regs); r++ {
		ctx.SetReg(r, regs[r])
	}
	return ctx
}

func sextWidth(v uint64, w int) uint64 {
	return uint64(int64(v<<(64-w)) >> (64 - w))
}

func checkAnalyses(t *testing.T, ctx *machine.Context, op *Op, i int) {
	for r := 0; r < 32; r++ {
		v := ctx.GPR[r]
		m := op.Const.Mask[r]
		require.Equalf(t, op.Const.Bits[r], v&m, "op %d (%s): known bits of r%d, value %#x", i, op, r, v)
	}
	for r := 0; r < 34; r++ {
		v := ctx.Reg(r)
		w := op.Width.Width(r)
		require.Equalf(t, v, sextWidth(v, w), "op %d (%s): r%d = %#x wider than %d bits", i, op, r, v, w)
	}
}

func TestOracle_Analyzers(t *testing.T) {
	var regs [34]uint64
	f := gofakeit.New(20250314)
	z := fuzz.New().NilChance(0)

	for n := 0; n < 500; n++ {
		raw := make([]mips.Instr, f.Number(1, 24))
		for i := range raw {
			raw[i] = randomOp(f)
		}

		/* random but sign-extended-ish register contents */
		z.Fuzz(&regs)
		for r := range regs {
			if f.Bool() {
				regs[r] = uint64(int64(int32(regs[r])))
			}
		}

		/* the trace is straight-line, so it covers the whole input */
		ops, cnt := BuildTrace(raw, len(raw))
		require.Equal(t, len(raw), cnt, spew.Sdump(raw))
		ref := newOracleContext(t, regs)
		sim := newOracleContext(t, regs)

		/* run the raw and the simplified instructions side by side */
		for i := range ops {
			checkAnalyses(t, sim, &ops[i], i)
			okRef := interp.Exec(ref, ops[i].Raw)
			okSim := interp.Exec(sim, ops[i].Instr)
			require.Equalf(t, okRef, okSim, "op %d: %s vs %s", i, ops[i].Raw, ops[i].Instr)
			if !okRef {
				break
			}
			require.Equalf(t, ref.GPR, sim.GPR, "after op %d: %s", i, spew.Sdump(ops[:i+1]))
			require.Equal(t, ref.HI, sim.HI)
			require.Equal(t, ref.LO, sim.LO)
		}
	}
}
