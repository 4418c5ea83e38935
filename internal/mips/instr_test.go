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

package mips

import (
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstr_Fields(t *testing.T) {
	v := Imm(OP_ADDIU, 2, 29, -16)
	assert.Equal(t, uint32(OP_ADDIU), v.Op())
	assert.Equal(t, 29, v.Rs())
	assert.Equal(t, 2, v.Rt())
	assert.Equal(t, int64(-16), v.SImm())
	assert.Equal(t, uint64(0xfff0), v.UImm())
	v = Shift(FN_SRA, 3, 4, 31)
	assert.Equal(t, 3, v.Rd())
	assert.Equal(t, 4, v.Rt())
	assert.Equal(t, uint32(31), v.Sa())
	assert.Equal(t, uint32(FN_SRA), v.Funct())
}

func TestInstr_FieldsRandom(t *testing.T) {
	var rs, rt, rd, sa, fn uint8
	f := fuzz.New().NilChance(0)
	for i := 0; i < 1000; i++ {
		f.Fuzz(&rs)
		f.Fuzz(&rt)
		f.Fuzz(&rd)
		f.Fuzz(&sa)
		f.Fuzz(&fn)
		v := EncodeR(uint32(fn), int(rs), int(rt), int(rd), uint32(sa))
		require.Equal(t, uint32(OP_SPECIAL), v.Op())
		require.Equal(t, int(rs&31), v.Rs())
		require.Equal(t, int(rt&31), v.Rt())
		require.Equal(t, int(rd&31), v.Rd())
		require.Equal(t, uint32(sa&31), v.Sa())
		require.Equal(t, uint32(fn&63), v.Funct())
	}
}

func TestInstr_AnyWordDecodes(t *testing.T) {
	var w uint32
	f := fuzz.New()
	for i := 0; i < 1000; i++ {
		f.Fuzz(&w)
		v := Instr(w)
		require.NotPanics(t, func() { _ = v.String() })
		require.Less(t, v.Rs(), 32)
		require.Less(t, v.Target(), uint32(1<<26))
	}
}

func TestInstr_Targets(t *testing.T) {
	assert.Equal(t, uint32(0x80001008), Branch(OP_BEQ, 1, 2, 1).BranchTarget(0x80001000))
	assert.Equal(t, uint32(0x80000ffc), Branch(OP_BEQ, 1, 2, -2).BranchTarget(0x80001000))
	assert.Equal(t, uint32(0x80123450), Jump(OP_J, 0x00123450).JumpTarget(0x80001000))
}

func TestInstr_Classify(t *testing.T) {
	assert.True(t, Branch(OP_BEQL, 1, 2, 3).IsLikely())
	assert.True(t, Branch(OP_BEQL, 1, 2, 3).IsBranch())
	assert.False(t, Branch(OP_BEQ, 1, 2, 3).IsLikely())
	assert.True(t, RegImm(RI_BGEZALL, 4, 3).IsLikely())
	assert.True(t, BC1(BC_TL, 4).IsLikely())
	assert.True(t, BC1(BC_T, 4).IsBranch())
	assert.False(t, RegImm(RI_TEQI, 4, 3).IsBranch())
	assert.True(t, JR(31).IsJump())

	r, ok := JALR(7, 3).Link()
	assert.True(t, ok)
	assert.Equal(t, 7, r)
	r, ok = Jump(OP_JAL, 0).Link()
	assert.True(t, ok)
	assert.Equal(t, RA, r)

	r, ok = Imm(OP_LW, 5, 6, 0).Dest()
	assert.True(t, ok)
	assert.Equal(t, 5, r)
	_, ok = Imm(OP_SW, 5, 6, 0).Dest()
	assert.False(t, ok)
	assert.True(t, Imm(OP_SW, 5, 6, 0).IsStore())
	assert.True(t, Imm(OP_LDC1, 5, 6, 0).IsLoad())
}

func TestInstr_String(t *testing.T) {
	tests := []struct {
		in  Instr
		out string
	}{
		{NOP, "nop"},
		{Imm(OP_ADDIU, 1, 0, 5), "addiu $1, $0, 5"},
		{ALU(FN_ADD, 3, 1, 2), "add $3, $1, $2"},
		{Move(4, 5), "move $4, $5"},
		{Imm(OP_LW, 2, 29, 16), "lw $2, 16($29)"},
		{Branch(OP_BNE, 1, 0, -3), "bne $1, $0, -3"},
		{SYSCALL(), "syscall 0x0"},
		{ERET(), "eret"},
		{MTC0(4, CP0_COMPARE), "mtc0 $4, $11"},
		{COP1(FMT_D, F_ADD, 0, 2, 4), "add.d $f0, $f2, $f4"},
		{COP1(FMT_S, F_C|C_OLT, 0, 2, 4), "c.olt.s $f2, $f4"},
		{Instr(0x3b << 26), ".word 0xec000000"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.out, tc.in.String())
	}
}
