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

package hir

import (
    `math`
    `testing`
    `unsafe`

    `github.com/davecgh/go-spew/spew`
    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

type testContext struct {
    Header
    A   uint32
    B   uint32
    C   uint32
    D   uint32
    F   uint64
    G   uint64
    Tab uintptr
}

var (
    offA   = int32(unsafe.Offsetof(testContext{}.A))
    offB   = int32(unsafe.Offsetof(testContext{}.B))
    offC   = int32(unsafe.Offsetof(testContext{}.C))
    offD   = int32(unsafe.Offsetof(testContext{}.D))
    offF   = int32(unsafe.Offsetof(testContext{}.F))
    offG   = int32(unsafe.Offsetof(testContext{}.G))
    offTab = int32(unsafe.Offsetof(testContext{}.Tab))
)

func runEmulator(ctx *testContext, ram []byte, prog func(p *Builder)) (*Emulator, int) {
    var mp unsafe.Pointer
    pb := CreateBuilder()
    prog(pb)
    if len(ram) != 0 {
        mp = unsafe.Pointer(&ram[0])
    }
    emu := LoadProgram(pb.Build(), unsafe.Pointer(ctx), mp)
    return emu, emu.Run()
}

func TestEmu_ALU(t *testing.T) {
    ctx := new(testContext)
    _, st := runEmulator(ctx, nil, func(p *Builder) {
        p.LI(-5, H0)
        p.LI(3, H1)
        p.ADD(H0, H1, H2)
        p.STC(H2, offA)
        p.SLT(H0, H1, H3)
        p.SLTU(H0, H1, H4)
        p.SLLI(H3, 4, H3)
        p.OR(H3, H4, H3)
        p.STC(H3, offB)
        p.SRAI(H0, 1, H5)
        p.SRLV(H0, H1, H6)
        p.STC(H5, offC)
        p.STC(H6, offD)
        p.EXIT(ExitNext)
    })
    require.Equal(t, ExitNext, st)
    assert.Equal(t, uint32(0xfffffffe), ctx.A)
    assert.Equal(t, uint32(0x10), ctx.B)
    assert.Equal(t, uint32(0xfffffffd), ctx.C)
    assert.Equal(t, uint32(0xfffffffb)>>3, ctx.D)
}

func TestEmu_ZeroRegister(t *testing.T) {
    ctx := new(testContext)
    _, _ = runEmulator(ctx, nil, func(p *Builder) {
        p.LI(7, RZ)
        p.ADDI(RZ, 9, H0)
        p.STC(H0, offA)
        p.STC(RZ, offB)
        p.LI(-1, H1)
        p.STCX(H1, offC)
        p.STCI(42, offD)
        p.EXIT(ExitNext)
    })
    assert.Equal(t, uint32(9), ctx.A)
    assert.Equal(t, uint32(0), ctx.B)
    assert.Equal(t, uint32(0xffffffff), ctx.C)
    assert.Equal(t, uint32(42), ctx.D)
}

func TestEmu_Multiply(t *testing.T) {
    ctx := new(testContext)
    _, _ = runEmulator(ctx, nil, func(p *Builder) {
        p.LI(-3, H0)
        p.LI(0x10000, H1)
        p.MUL(H0, H1, H2, H3)
        p.STC(H2, offA)
        p.STC(H3, offB)
        p.MULU(H0, H1, H2, H3)
        p.STC(H2, offC)
        p.STC(H3, offD)
        p.EXIT(ExitNext)
    })
    assert.Equal(t, uint32(0xfffd0000), ctx.A)
    assert.Equal(t, uint32(0xffffffff), ctx.B)
    assert.Equal(t, uint32(0xfffd0000), ctx.C)
    assert.Equal(t, uint32(0xffff), ctx.D)
}

var testTab = [8]byte{0, 1, 0, 1, 0, 0, 0, 0}

func TestEmu_Memory(t *testing.T) {
    ctx := new(testContext)
    ram := make([]byte, 64)
    ram[5] = 0x80
    ctx.Tab = uintptr(unsafe.Pointer(&testTab[0]))
    _, _ = runEmulator(ctx, ram, func(p *Builder) {
        p.LI(4, H0)
        p.LB(H0, 1, H1)
        p.LBU(H0, 1, H2)
        p.STC(H1, offA)
        p.STC(H2, offB)
        p.LI(0x12345678, H3)
        p.SW(H3, H0, 12)
        p.SH(H3, RZ, 32)
        p.LTAB(offTab, H0, H4)
        p.LI(3, H5)
        p.LTAB(offTab, H5, H5)
        p.ADD(H4, H5, H4)
        p.STC(H4, offC)
        p.EXIT(ExitNext)
    })
    assert.Equal(t, uint32(0xffffff80), ctx.A)
    assert.Equal(t, uint32(0x80), ctx.B)
    assert.Equal(t, uint32(0x12345678), *(*uint32)(unsafe.Pointer(&ram[16])))
    assert.Equal(t, uint16(0x5678), *(*uint16)(unsafe.Pointer(&ram[32])))
    assert.Equal(t, uint32(1), ctx.C, spew.Sdump(testTab))
}

func TestEmu_Branches(t *testing.T) {
    for _, tc := range []struct {
        x, y  int32
        taken []OpCode
    }{
        {1, 2, []OpCode{OP_bne, OP_blt, OP_bltu}},
        {-1, 2, []OpCode{OP_bne, OP_blt, OP_bgeu}},
        {5, 5, []OpCode{OP_beq, OP_bge, OP_bgeu}},
    } {
        for _, op := range []OpCode{OP_beq, OP_bne, OP_blt, OP_bge, OP_bltu, OP_bgeu} {
            ctx := new(testContext)
            _, _ = runEmulator(ctx, nil, func(p *Builder) {
                p.LI(tc.x, H0)
                p.LI(tc.y, H1)
                p.jmp(newInstr(op).rx(H0).ry(H1), "_taken")
                p.STCI(1, offA)
                p.EXIT(ExitNext)
                p.Label("_taken")
                p.STCI(2, offA)
                p.EXIT(ExitNext)
            })
            want := uint32(1)
            for _, v := range tc.taken {
                if v == op {
                    want = 2
                }
            }
            assert.Equal(t, want, ctx.A, "%d %d op=%d", tc.x, tc.y, op)
        }
    }
}

func TestEmu_Overflow(t *testing.T) {
    run := func(x int32, y int32, sub bool) bool {
        ctx := new(testContext)
        _, _ = runEmulator(ctx, nil, func(p *Builder) {
            p.LI(x, H0)
            p.LI(y, H1)
            if sub {
                p.BOVFS(H0, H1, "_ovf")
            } else {
                p.BOVFA(H0, H1, "_ovf")
            }
            p.EXIT(ExitNext)
            p.Label("_ovf")
            p.STCI(1, offA)
            p.EXIT(ExitNext)
        })
        return ctx.A == 1
    }
    assert.True(t, run(math.MaxInt32, 1, false))
    assert.False(t, run(math.MaxInt32, -1, false))
    assert.True(t, run(math.MinInt32, 1, true))
    assert.False(t, run(math.MinInt32, -1, true))
    assert.True(t, run(0, math.MinInt32, true))
}

func TestEmu_Callout(t *testing.T) {
    ctx := new(testContext)
    emu, st := runEmulator(ctx, nil, func(p *Builder) {
        p.LI(11, H0)
        p.STC(H0, offA)
        p.CALLOUT(7, "_resume")
        p.Label("_resume")
        p.LDC(offB, H0)
        p.ADDI(H0, 1, H0)
        p.STC(H0, offC)
        p.EXIT(ExitNext)
    })
    require.Equal(t, ExitCall, st)
    assert.Equal(t, uint32(7), ctx.CallID)
    assert.Equal(t, uint32(_Poison), emu.Gr[H0])

    /* the host services the call, then resumes */
    ctx.B = ctx.A * 2
    require.Equal(t, ExitNext, emu.Run())
    assert.Equal(t, uint32(23), ctx.C)
}

// testLinks lives outside of any goroutine stack since the context only
// keeps its address.
var testLinks [4]uintptr

func TestEmu_Link(t *testing.T) {
    ctx := new(testContext)
    links := testLinks[:]
    for i := range links {
        links[i] = 0
    }
    ctx.Links = uintptr(unsafe.Pointer(&links[0]))

    /* the link target */
    pb := CreateBuilder()
    pb.STCI(99, offB)
    pb.EXIT(ExitNext)
    target := pb.Build()

    /* an empty cell falls through */
    prog := func(p *Builder) {
        p.STCI(1, offA)
        p.LINK(2)
        p.STCI(3, offA)
        p.EXIT(ExitNext)
    }
    _, _ = runEmulator(ctx, nil, prog)
    assert.Equal(t, uint32(3), ctx.A)
    assert.Zero(t, ctx.B)

    /* a filled cell jumps away */
    links[2] = 0x1234
    pb = CreateBuilder()
    prog(pb)
    emu := LoadProgram(pb.Build(), unsafe.Pointer(ctx), nil)
    emu.Resolve = func(entry uintptr) *Instr {
        require.Equal(t, uintptr(0x1234), entry)
        return target.Head
    }
    ctx.A = 0
    require.Equal(t, ExitNext, emu.Run())
    assert.Equal(t, uint32(1), ctx.A)
    assert.Equal(t, uint32(99), ctx.B)
}

func TestEmu_FloatingPoint(t *testing.T) {
    ctx := new(testContext)
    ctx.F = math.Float64bits(2.25)
    ctx.G = math.Float64bits(-4)
    _, _ = runEmulator(ctx, nil, func(p *Builder) {
        p.FLD(8, offF, F0)
        p.FLD(8, offG, F1)
        p.FMUL(8, F0, F1, F2)
        p.FABS(8, F2, F3)
        p.FSQRT(8, F3, F3)
        p.FST(8, F3, offF)
        p.FCMP(8, F1, F0, FC_LT, H0)
        p.STC(H0, offA)
        p.FNEG(8, F1, F1)
        p.FCMP(8, F1, F2, FC_EQ|FC_LT, H1)
        p.STC(H1, offB)
        p.EXIT(ExitNext)
    })
    assert.Equal(t, 3.0, math.Float64frombits(ctx.F))
    assert.Equal(t, uint32(1), ctx.A)
    assert.Equal(t, uint32(0), ctx.B)
}

func TestEmu_FloatingPointSingle(t *testing.T) {
    ctx := new(testContext)
    *(*float32)(unsafe.Pointer(&ctx.C)) = 1.5
    *(*float32)(unsafe.Pointer(&ctx.D)) = float32(math.NaN())
    _, _ = runEmulator(ctx, nil, func(p *Builder) {
        p.FLD(4, offC, F0)
        p.FADD(4, F0, F0, F1)
        p.FST(4, F1, offA)
        p.FLD(4, offD, F2)
        p.FCMP(4, F0, F2, FC_UN, H0)
        p.FCMP(4, F0, F2, FC_EQ|FC_LT, H1)
        p.SLLI(H0, 1, H0)
        p.OR(H0, H1, H0)
        p.STC(H0, offB)
        p.EXIT(ExitNext)
    })
    assert.Equal(t, float32(3), math.Float32frombits(ctx.A))
    assert.Equal(t, uint32(2), ctx.B)
}
