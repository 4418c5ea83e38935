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
	"math"
	"runtime"
	"testing"
	"unsafe"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/interp"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/trace"
	"github.com/davecgh/go-spew/spew"
	"github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testRAM = 1 << 16
)

var (
	testBase uint32 = 0x80000000
	testData uint32 = 0x80001000
)

type _Cells struct {
	max   int
	next  int
	freed []int
}

func (self *_Cells) AllocCell() (int, bool) {
	if self.next >= self.max {
		return 0, false
	}
	self.next++
	return self.next - 1, true
}

func (self *_Cells) FreeCell(cell int) {
	self.freed = append(self.freed, cell)
}

func newTestContext(t *testing.T, raw []mips.Instr) *machine.Context {
	mem, err := machine.NewMemory(testRAM)
	require.NoError(t, err)
	for i, op := range raw {
		mem.WritePhys(uint32(i*4), machine.SizeWord, uint64(op))
	}
	ctx := machine.NewContext(mem)
	ctx.PC = testBase
	return ctx
}

func testConfig(ctx *machine.Context) Config {
	return Config{
		CountPerOp: 2,
		RAMSize:    ctx.RAMSize,
		FR:         ctx.FR(),
	}
}

// execute runs a translated trace, servicing its callouts with the
// interpreter the way the engine does.
func execute(t *testing.T, ctx *machine.Context, res Result) {
	emu := hir.LoadProgram(res.Program, unsafe.Pointer(ctx), unsafe.Pointer(&ctx.Mem.RAM[0]))
	defer emu.Free()

	for emu.Run() == hir.ExitCall {
		switch ctx.Header.CallID {
		case HelperInterp:
			interp.Exec(ctx, mips.Instr(ctx.CallOp))
		case HelperStep:
			interp.Step(ctx)
		default:
			t.Fatalf("unexpected callout %d", ctx.Header.CallID)
		}

		/* exceptions abandon the trace */
		if ctx.Leave != 0 {
			return
		}
	}
}

// reference runs the same instructions one step at a time.
func reference(ctx *machine.Context, ops []trace.Op) {
	for _, op := range ops {
		if op.InDelaySlot {
			continue
		}
		if interp.Step(ctx); ctx.Leave != 0 {
			return
		}
	}
}

func translate(t *testing.T, raw []mips.Instr, setup func(ctx *machine.Context)) (*machine.Context, *machine.Context, []trace.Op) {
	ref := newTestContext(t, raw)
	jit := newTestContext(t, raw)
	setup(ref)
	setup(jit)

	/* analyze and translate */
	ops, _ := trace.BuildTrace(raw, len(raw))
	res, err := Translate(ops, testBase, testConfig(jit))
	require.NoError(t, err, spew.Sdump(raw))
	require.Equal(t, len(ops), res.Count)

	/* run both */
	execute(t, jit, res)
	reference(ref, ops)
	return ref, jit, ops
}

func requireSameState(t *testing.T, ref *machine.Context, jit *machine.Context, msg string) {
	for r := 0; r < 34; r++ {
		require.Equalf(t, ref.Reg(r), jit.Reg(r), "r%d: %s", r, msg)
	}
	require.Equalf(t, ref.PC, jit.PC, "pc: %s", msg)
	require.Equalf(t, ref.COP0[mips.CP0_EPC], jit.COP0[mips.CP0_EPC], "epc: %s", msg)
	require.Equalf(t, ref.COP0[mips.CP0_CAUSE], jit.COP0[mips.CP0_CAUSE], "cause: %s", msg)
	require.Equalf(t, ref.Mem.RAM, jit.Mem.RAM, "ram: %s", msg)
}

func TestTranslate_Empty(t *testing.T) {
	_, err := Translate(nil, testBase, Config{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTranslate_StrayDelaySlot(t *testing.T) {
	ops := []trace.Op{{Instr: mips.NOP, InDelaySlot: true}}
	_, err := Translate(ops, testBase, Config{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestTranslate_Syscall(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 3),
		mips.Imm(mips.OP_ADDIU, 2, 0, 5),
		mips.ALU(mips.FN_ADD, 3, 1, 2),
		mips.SYSCALL(),
	}
	ctx := newTestContext(t, raw)
	ops, n := trace.BuildTrace(raw, len(raw))
	require.Equal(t, 4, n)
	res, err := Translate(ops, testBase, testConfig(ctx))
	require.NoError(t, err)
	execute(t, ctx, res)
	assert.Equal(t, uint64(8), ctx.Reg(3))
	assert.Equal(t, uint32(0x80000180), ctx.PC)
	assert.Equal(t, uint64(testBase+12), ctx.COP0[mips.CP0_EPC]&0xffffffff)
	assert.Equal(t, uint64(machine.EXC_SYS), ctx.COP0[mips.CP0_CAUSE]&machine.CR_CODE>>2)
}

func TestTranslate_ExitAccounting(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 1),
		mips.Imm(mips.OP_ADDIU, 2, 1, 1),
		mips.Imm(mips.OP_ADDIU, 3, 2, 1),
	}
	ctx := newTestContext(t, raw)
	ops, _ := trace.BuildTrace(raw, len(raw))
	res, err := Translate(ops, testBase, testConfig(ctx))
	require.NoError(t, err)
	execute(t, ctx, res)
	assert.Equal(t, uint32(testBase+12), ctx.PC)
	assert.Equal(t, uint32(6), ctx.Cycle)
	assert.Equal(t, uint64(3), ctx.Reg(3))
	assert.Zero(t, ctx.LastCell)
}

var testLinks [4]uintptr

func TestTranslate_Link(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 1),
		mips.Imm(mips.OP_ADDIU, 2, 0, 2),
	}
	ctx := newTestContext(t, raw)
	links := testLinks[:]
	ctx.Header.Links = uintptr(unsafe.Pointer(&links[0]))
	ctx.NextEvent = 1000

	/* one linkable exit */
	cfg := testConfig(ctx)
	cfg.Linker = &_Cells{max: 4}
	ops, _ := trace.BuildTrace(raw, len(raw))
	res, err := Translate(ops, testBase, cfg)
	require.NoError(t, err)
	require.Equal(t, []Exit{{Target: testBase + 8, Cell: 0}}, res.Exits)

	/* an empty cell falls back to the dispatcher */
	execute(t, ctx, res)
	runtime.KeepAlive(links)
	assert.Equal(t, uint32(1), ctx.LastCell)
	assert.Equal(t, uint32(testBase+8), ctx.PC)
	assert.Equal(t, uint64(2), ctx.Reg(2))
}

func TestTranslate_BudgetExhausted(t *testing.T) {
	raw := make([]mips.Instr, 32)
	for i := range raw {
		raw[i] = mips.Imm(mips.OP_ADDIU, i%7+1, i%5, int32(i))
	}
	ctx := newTestContext(t, raw)
	cells := &_Cells{max: 4}
	cfg := testConfig(ctx)
	cfg.Budget = 16
	cfg.Linker = cells

	/* the program does not fit and every link cell is returned */
	ops, _ := trace.BuildTrace(raw, len(raw))
	_, err := Translate(ops, testBase, cfg)
	assert.Equal(t, ErrCodeBufferFull, err)
	assert.Len(t, cells.freed, cells.next)
}

func TestTranslate_Branches(t *testing.T) {
	setup := func(ctx *machine.Context) {
		ctx.SetReg(1, 1)
		ctx.SetReg(2, 0xffffffff_fffffffe)
		ctx.SetReg(3, 0x00000001_00000000)
		ctx.SetReg(5, uint64(int64(int32(testBase+0x100))))
	}
	tests := []struct {
		name string
		br   mips.Instr
	}{
		{"beq-not-taken", mips.Branch(mips.OP_BEQ, 1, 0, 4)},
		{"beq-taken", mips.Branch(mips.OP_BEQ, 0, 0, 4)},
		{"bne-64", mips.Branch(mips.OP_BNE, 3, 0, 4)},
		{"beql-not-taken", mips.Branch(mips.OP_BEQL, 1, 0, 4)},
		{"bnel-taken", mips.Branch(mips.OP_BNEL, 1, 0, 4)},
		{"blez", mips.Branch(mips.OP_BLEZ, 2, 0, 4)},
		{"blez-64", mips.Branch(mips.OP_BLEZ, 3, 0, 4)},
		{"bgtz", mips.Branch(mips.OP_BGTZ, 1, 0, 4)},
		{"bltz", mips.RegImm(mips.RI_BLTZ, 2, 4)},
		{"bgez-64", mips.RegImm(mips.RI_BGEZ, 3, 4)},
		{"bltzal", mips.RegImm(mips.RI_BLTZAL, 1, 4)},
		{"bgezall", mips.RegImm(mips.RI_BGEZALL, 2, 4)},
		{"j", mips.Jump(mips.OP_J, (testBase+0x40)>>2)},
		{"jal", mips.Jump(mips.OP_JAL, (testBase+0x40)>>2)},
		{"jr", mips.JR(5)},
		{"jalr", mips.JALR(4, 5)},
		{"bc1f", mips.BC1(mips.BC_F, 4)},
		{"bc1tl", mips.BC1(mips.BC_TL, 4)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw := []mips.Instr{
				mips.Imm(mips.OP_ADDIU, 6, 1, 1),
				tc.br,
				mips.Imm(mips.OP_ADDIU, 7, 6, 5),
			}
			ref, jit, _ := translate(t, raw, setup)
			requireSameState(t, ref, jit, tc.name)
		})
	}
}

func TestTranslate_DelaySlotOmitted(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 1),
		mips.Branch(mips.OP_BNE, 1, 0, 4),
	}
	ref := newTestContext(t, append(raw, mips.Imm(mips.OP_ADDIU, 2, 0, 9)))
	jit := newTestContext(t, append(raw, mips.Imm(mips.OP_ADDIU, 2, 0, 9)))

	/* the trace stops before the delay slot */
	ops, n := trace.BuildTrace(raw, len(raw))
	require.Equal(t, 2, n)
	require.True(t, ops[1].DelaySlotOmitted)
	res, err := Translate(ops, testBase, testConfig(jit))
	require.NoError(t, err)

	/* the host runs the branch together with its delay slot */
	execute(t, jit, res)
	reference(ref, ops)
	requireSameState(t, ref, jit, "omitted delay slot")
	assert.Equal(t, uint64(9), jit.Reg(2))
	assert.Equal(t, uint32(testBase+4+4+16), jit.PC)
}

func TestTranslate_BoundaryInDelaySlot(t *testing.T) {
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 1),
		mips.Branch(mips.OP_BNE, 1, 0, 4),
		mips.SYSCALL(),
	}
	ref, jit, ops := translate(t, raw, func(*machine.Context) {})
	require.Len(t, ops, 3)
	require.True(t, ops[2].InDelaySlot)

	/* the exception is taken in the delay slot */
	requireSameState(t, ref, jit, "syscall in delay slot")
	assert.Equal(t, uint32(0x80000180), jit.PC)
	assert.Equal(t, uint64(testBase+4), jit.COP0[mips.CP0_EPC]&0xffffffff)
	assert.NotZero(t, jit.COP0[mips.CP0_CAUSE]&machine.CR_BD)
	assert.Equal(t, uint64(machine.EXC_SYS), jit.COP0[mips.CP0_CAUSE]&machine.CR_CODE>>2)
}

func TestTranslate_OverflowIntoZero(t *testing.T) {
	raw := []mips.Instr{
		mips.ALU(mips.FN_ADD, 0, 1, 2),
		mips.Imm(mips.OP_ADDIU, 3, 0, 1),
	}
	ref, jit, ops := translate(t, raw, func(ctx *machine.Context) {
		ctx.SetReg(1, 0x7fffffff)
		ctx.SetReg(2, 1)
	})
	require.Equal(t, raw[0], ops[0].Instr)

	/* the write is discarded but the trap is not */
	requireSameState(t, ref, jit, "add into $0")
	assert.Equal(t, uint32(0x80000180), jit.PC)
	assert.Equal(t, uint64(machine.EXC_OV), jit.COP0[mips.CP0_CAUSE]&machine.CR_CODE>>2)
	assert.Zero(t, jit.Reg(3))
	assert.Zero(t, jit.Reg(0))
}

func TestTranslate_Memory(t *testing.T) {
	setup := func(ctx *machine.Context) {
		ctx.SetReg(8, uint64(int64(int32(testData))))
		ctx.SetReg(9, 0x80000000_fedcba98)
		ctx.SetReg(10, 0xffffffff_a0001000)
		for i := uint32(0); i < 64; i++ {
			ctx.Mem.WritePhys(0x1000+i*4, machine.SizeWord, uint64(i*0x01010101+0x80402010))
		}
	}
	raw := []mips.Instr{
		mips.Imm(mips.OP_LB, 1, 8, 3),
		mips.Imm(mips.OP_LBU, 2, 8, 5),
		mips.Imm(mips.OP_LH, 3, 8, 6),
		mips.Imm(mips.OP_LHU, 4, 8, 10),
		mips.Imm(mips.OP_LW, 5, 8, 12),
		mips.Imm(mips.OP_LWU, 6, 8, 16),
		mips.Imm(mips.OP_LD, 7, 8, 24),
		mips.Imm(mips.OP_SB, 9, 8, 33),
		mips.Imm(mips.OP_SH, 9, 8, 38),
		mips.Imm(mips.OP_SW, 9, 8, 40),
		mips.Imm(mips.OP_SD, 9, 10, 48),
		mips.Imm(mips.OP_LD, 11, 10, 48),
		mips.Imm(mips.OP_LW, 12, 10, 33),
	}
	ref, jit, _ := translate(t, raw, setup)
	requireSameState(t, ref, jit, "memory")
	assert.Equal(t, uint32(0x80000180), jit.PC)
	assert.Equal(t, uint64(0x80000000_fedcba98), jit.Reg(11))
}

func TestTranslate_CodePageStore(t *testing.T) {
	var hits []uint32
	raw := []mips.Instr{
		mips.Imm(mips.OP_ADDIU, 1, 0, 0x77),
		mips.Imm(mips.OP_SW, 1, 8, 0x40),
		mips.Imm(mips.OP_ADDIU, 2, 0, 1),
	}
	ctx := newTestContext(t, raw)
	ctx.SetReg(8, uint64(int64(int32(testBase))))
	ctx.Mem.MarkCode(0, true)
	ctx.Mem.OnCodeWrite = func(paddr uint32) { hits = append(hits, paddr) }

	/* the store takes the slow path */
	ops, _ := trace.BuildTrace(raw, len(raw))
	res, err := Translate(ops, testBase, testConfig(ctx))
	require.NoError(t, err)
	execute(t, ctx, res)
	assert.Equal(t, []uint32{0x40}, hits)
	assert.Equal(t, uint64(0x77), ctx.Mem.ReadPhys(0x40, machine.SizeWord))
	assert.Equal(t, uint64(1), ctx.Reg(2))
}

func TestTranslate_FPU(t *testing.T) {
	setup := func(ctx *machine.Context) {
		ctx.SetFD(0, math.Float64bits(1.5))
		ctx.SetFD(2, math.Float64bits(2.25))
		ctx.SetFS(8, math.Float32bits(-4))
		ctx.SetReg(8, uint64(int64(int32(testData))))
		ctx.SetReg(9, 0x40490fdb)
	}
	raw := []mips.Instr{
		mips.COP1(mips.FMT_D, mips.F_ADD, 4, 0, 2),
		mips.COP1(mips.FMT_D, mips.F_MUL, 6, 4, 2),
		mips.COP1(mips.FMT_D, mips.F_C|mips.C_LT, 0, 0, 2),
		mips.COP1Move(mips.CP_CF, 1, 31),
		mips.COP1Move(mips.CP_MF, 2, 4),
		mips.COP1Move(mips.CP_DMF, 3, 6),
		mips.COP1(mips.FMT_S, mips.F_ABS, 10, 8, 0),
		mips.COP1(mips.FMT_S, mips.F_SQRT, 12, 10, 0),
		mips.COP1Move(mips.CP_MT, 9, 14),
		mips.COP1(mips.FMT_S, mips.F_NEG, 16, 14, 0),
		mips.Imm(mips.OP_SDC1, 6, 8, 0),
		mips.Imm(mips.OP_LWC1, 18, 8, 4),
		mips.COP1(mips.FMT_D, mips.F_CVT_S, 20, 6, 0),
		mips.COP1Move(mips.CP_DMT, 3, 22),
	}
	ref, jit, _ := translate(t, raw, setup)
	requireSameState(t, ref, jit, "fpu")
	require.Equal(t, ref.FPR, jit.FPR)
	require.Equal(t, ref.FCR31, jit.FCR31)
	assert.Equal(t, 3.75, math.Float64frombits(jit.FD(4)))
	assert.Equal(t, float32(2), math.Float32frombits(jit.FS(12)))
	assert.NotZero(t, jit.FCR31&machine.FCR31_C)
}

/** Random Traces **/

var randomFuncts = []uint32{
	mips.FN_ADD, mips.FN_ADDU, mips.FN_SUB, mips.FN_SUBU,
	mips.FN_AND, mips.FN_OR, mips.FN_XOR, mips.FN_NOR,
	mips.FN_SLT, mips.FN_SLTU, mips.FN_DADD, mips.FN_DADDU, mips.FN_DSUB, mips.FN_DSUBU,
	mips.FN_SLLV, mips.FN_SRLV, mips.FN_SRAV, mips.FN_DSLLV, mips.FN_DSRLV, mips.FN_DSRAV,
	mips.FN_MULT, mips.FN_MULTU, mips.FN_DIV, mips.FN_DIVU,
	mips.FN_MFHI, mips.FN_MFLO, mips.FN_MTHI, mips.FN_MTLO,
}

var randomShifts = []uint32{
	mips.FN_SLL, mips.FN_SRL, mips.FN_SRA,
	mips.FN_DSLL, mips.FN_DSRL, mips.FN_DSRA,
	mips.FN_DSLL32, mips.FN_DSRL32, mips.FN_DSRA32,
}

var randomImms = []uint32{
	mips.OP_ADDI, mips.OP_ADDIU, mips.OP_SLTI, mips.OP_SLTIU,
	mips.OP_ANDI, mips.OP_ORI, mips.OP_XORI, mips.OP_LUI,
	mips.OP_DADDI, mips.OP_DADDIU,
}

var randomMems = []uint32{
	mips.OP_LB, mips.OP_LBU, mips.OP_LH, mips.OP_LHU, mips.OP_LW, mips.OP_LWU, mips.OP_LD,
	mips.OP_SB, mips.OP_SH, mips.OP_SW, mips.OP_SD,
}

func randomInstr(f *gofakeit.Faker) mips.Instr {
	rd := f.Number(0, 7)
	rs := f.Number(0, 7)
	rt := f.Number(0, 7)
	imm := int32(int16(f.Uint16()))

	/* small immediates give the analyses something to fold */
	if f.Bool() {
		imm = int32(f.Number(-4, 4))
	}

	switch f.Number(0, 4) {
	case 0:
		return mips.ALU(randomFuncts[f.Number(0, len(randomFuncts)-1)], rd, rs, rt)
	case 1:
		return mips.Shift(randomShifts[f.Number(0, len(randomShifts)-1)], rd, rt, uint32(f.Number(0, 31)))
	case 2:
		return mips.Imm(randomImms[f.Number(0, len(randomImms)-1)], rt, rs, imm)
	default:
		off := int32(f.Number(0, 31) * 8)
		if f.Number(0, 9) == 0 {
			off += int32(f.Number(1, 7))
		}
		return mips.Imm(randomMems[f.Number(0, len(randomMems)-1)], rt, 8, off)
	}
}

func TestTranslate_RandomTraces(t *testing.T) {
	var regs [34]uint64
	f := gofakeit.New(20250317)
	z := fuzz.New().NilChance(0)

	for n := 0; n < 300; n++ {
		raw := make([]mips.Instr, f.Number(1, 40))
		for i := range raw {
			raw[i] = randomInstr(f)
		}

		/* random, often sign extended register contents */
		z.Fuzz(&regs)
		for r := range regs {
			if f.Bool() {
				regs[r] = uint64(int64(int32(regs[r])))
			}
		}

		/* r8 stays the data pointer */
		ref, jit, ops := translate(t, raw, func(ctx *machine.Context) {
			for r := 1; r < len(regs); r++ {
				ctx.SetReg(r, regs[r])
			}
			ctx.SetReg(8, uint64(int64(int32(testData))))
		})
		requireSameState(t, ref, jit, spew.Sdump(ops))
	}
}
