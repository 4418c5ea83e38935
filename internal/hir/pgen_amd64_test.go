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
    `strings`
    `testing`

    `github.com/stretchr/testify/assert`
    `github.com/stretchr/testify/require`
)

func buildAll(regs []Reg) Program {
    p := CreateBuilder()
    for i, x := range regs {
        y := regs[(i+1)%len(regs)]
        z := regs[(i+2)%len(regs)]
        p.Mark()
        p.LI(int32(i)-3, x)
        p.LI(0, y)
        p.MOV(x, y)
        p.LDC(offA, z)
        p.STC(x, offB)
        p.STCI(-7, offC)
        p.STCX(y, offD)
        p.LTAB(offTab, x, y)
        p.ADD(x, y, z)
        p.SUB(y, x, x)
        p.AND(x, y, z)
        p.OR(z, z, z)
        p.XOR(x, y, y)
        p.NOR(x, y, z)
        p.SLT(x, y, z)
        p.SLTU(y, x, x)
        p.SLLV(x, y, z)
        p.SRLV(x, y, x)
        p.SRAV(y, x, z)
        p.ADDI(x, -1, y)
        p.ANDI(x, 0xff, x)
        p.ORI(x, 0x8000, z)
        p.XORI(y, -1, y)
        p.SLTI(x, 5, z)
        p.SLTUI(x, 0xffff0000, z)
        p.SLLI(x, 3, y)
        p.SRLI(y, 0, z)
        p.SRAI(z, 31, z)
        p.MUL(x, y, z, x)
        p.MULU(y, y, RZ, z)
        p.LB(x, 3, y)
        p.LBU(RZ, 7, y)
        p.LH(x, -2, z)
        p.LHU(x, 0, z)
        p.LW(z, 0x1000, x)
        p.SB(y, x, 1)
        p.SH(RZ, x, 2)
        p.SW(y, RZ, 0x400)
        p.BEQ(x, y, "_next_{n}")
        p.BNE(x, RZ, "_next_{n}")
        p.BLT(RZ, y, "_next_{n}")
        p.BGE(y, y, "_next_{n}")
        p.BLTU(x, y, "_next_{n}")
        p.BGEU(y, x, "_next_{n}")
        p.BEQI(x, 0, "_next_{n}")
        p.BNEI(y, -1, "_next_{n}")
        p.BLTI(z, 100, "_next_{n}")
        p.BGEI(z, -100, "_next_{n}")
        p.BLTUI(x, 0x800000, "_next_{n}")
        p.BGEUI(RZ, 0x800000, "_next_{n}")
        p.BOVFA(x, y, "_next_{n}")
        p.BOVFS(y, RZ, "_next_{n}")
        p.CALLOUT(3, "_next_{n}")
        p.Label("_next_{n}")
        p.LINK(i)
        p.FLD(4, offC, F0)
        p.FLD(8, offF, F1)
        p.FADD(4, F0, F0, F2)
        p.FSUB(8, F1, F2, F1)
        p.FMUL(8, F3, F1, F4)
        p.FDIV(4, F4, F5, F5)
        p.FSQRT(8, F5, F6)
        p.FMOV(8, F6, F7)
        p.FABS(4, F7, F7)
        p.FNEG(8, F7, F0)
        p.FCMP(8, F0, F1, FC_LT|FC_EQ, x)
        p.FCMP(4, F2, F3, FC_UN, RZ)
        p.FST(8, F0, offG)
        p.FST(4, F2, offD)
    }
    p.EXIT(ExitNext)
    return p.Build()
}

func TestPGen_AllOpCodes(t *testing.T) {
    for _, regs := range [][]Reg{
        {H0, H1, H2},
        {H3, H4, H5, H6},
        {H7, H8, RZ},
        {RZ, H0, RZ},
    } {
        prog := buildAll(regs)
        code, err := Assemble(prog)
        require.NoError(t, err)
        require.NotEmpty(t, code)
        assert.LessOrEqual(t, len(code), prog.Size)

        /* every byte decodes */
        asm := Listing(code, 0)
        assert.NotContains(t, asm, ".byte")
        lines := strings.Split(asm, "\n")
        assert.Contains(t, lines[len(lines)-1], "ret")
        prog.Free()
    }
}

func TestPGen_Callout(t *testing.T) {
    p := CreateBuilder()
    p.LI(1, H0)
    p.CALLOUT(9, "_resume")
    p.Label("_resume")
    p.STC(H0, offA)
    p.EXIT(ExitNext)
    code, err := Assemble(p.Build())
    require.NoError(t, err)
    asm := Listing(code, 0x1000)
    println(asm)
    assert.Contains(t, asm, "lea ")
    assert.Contains(t, asm, "(%rip)")
    assert.Equal(t, 2, strings.Count(asm, "ret"))
}

func TestPGen_Link(t *testing.T) {
    p := CreateBuilder()
    p.LINK(5)
    p.EXIT(ExitNext)
    code, err := Assemble(p.Build())
    require.NoError(t, err)
    asm := Listing(code, 0)
    assert.Contains(t, asm, "0x28(%rax),%rax")
    assert.Contains(t, asm, "*%rax")
}

func TestPGen_Unterminated(t *testing.T) {
    p := CreateBuilder()
    p.LI(1, H0)
    _, err := Assemble(p.Build())
    assert.Error(t, err)
}

func TestPGen_UnallocatableRegister(t *testing.T) {
    p := CreateBuilder()
    p.LI(1, Reg(12))
    p.EXIT(ExitNext)
    _, err := Assemble(p.Build())
    assert.Error(t, err)
}
