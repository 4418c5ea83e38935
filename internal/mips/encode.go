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

func EncodeR(funct uint32, rs int, rt int, rd int, sa uint32) Instr {
	return Instr(uint32(rs&31)<<21 | uint32(rt&31)<<16 | uint32(rd&31)<<11 | (sa&31)<<6 | funct&63)
}

func EncodeI(op uint32, rs int, rt int, imm uint16) Instr {
	return Instr((op&63)<<26 | uint32(rs&31)<<21 | uint32(rt&31)<<16 | uint32(imm))
}

func EncodeJ(op uint32, target uint32) Instr {
	return Instr((op&63)<<26 | target&0x03ffffff)
}

// ALU builds a three-register SPECIAL instruction, rd = rs <funct> rt.
func ALU(funct uint32, rd int, rs int, rt int) Instr {
	return EncodeR(funct, rs, rt, rd, 0)
}

// Shift builds a constant shift, rd = rt <funct> sa.
func Shift(funct uint32, rd int, rt int, sa uint32) Instr {
	return EncodeR(funct, 0, rt, rd, sa)
}

// Imm builds an immediate ALU instruction or a load/store, rt = rs <op> imm.
func Imm(op uint32, rt int, rs int, imm int32) Instr {
	return EncodeI(op, rs, rt, uint16(imm))
}

// Branch builds a two-register branch with a word offset.
func Branch(op uint32, rs int, rt int, off int32) Instr {
	return EncodeI(op, rs, rt, uint16(off))
}

// RegImm builds a REGIMM branch or trap.
func RegImm(rt int, rs int, off int32) Instr {
	return EncodeI(OP_REGIMM, rs, rt, uint16(off))
}

func Jump(op uint32, target uint32) Instr {
	return EncodeJ(op, target>>2)
}

func JR(rs int) Instr {
	return EncodeR(FN_JR, rs, 0, 0, 0)
}

func JALR(rd int, rs int) Instr {
	return EncodeR(FN_JALR, rs, 0, rd, 0)
}

// Move is the canonical register move, OR rd, rs, $0.
func Move(rd int, rs int) Instr {
	return ALU(FN_OR, rd, rs, R0)
}

func MTC0(rt int, rd int) Instr {
	return EncodeR(0, CP_MT, rt, rd, 0) | OP_COP0<<26
}

func MFC0(rt int, rd int) Instr {
	return EncodeR(0, CP_MF, rt, rd, 0) | OP_COP0<<26
}

// COP1 builds a COP1 arithmetic instruction, fd = fs <funct> ft.
func COP1(fmt uint32, funct uint32, fd int, fs int, ft int) Instr {
	return Instr(OP_COP1<<26|(fmt&31)<<21|uint32(ft&31)<<16|uint32(fs&31)<<11|uint32(fd&31)<<6) | Instr(funct&63)
}

// COP1Move builds MFC1/MTC1/DMFC1/DMTC1/CFC1/CTC1.
func COP1Move(rs int, rt int, fs int) Instr {
	return Instr(OP_COP1<<26 | uint32(rs&31)<<21 | uint32(rt&31)<<16 | uint32(fs&31)<<11)
}

// BC1 builds BC1F/BC1T/BC1FL/BC1TL.
func BC1(cond int, off int32) Instr {
	return EncodeI(OP_COP1, CP_BC, cond, uint16(off))
}

func SYSCALL() Instr {
	return EncodeR(FN_SYSCALL, 0, 0, 0, 0)
}

func BREAK() Instr {
	return EncodeR(FN_BREAK, 0, 0, 0, 0)
}

func ERET() Instr {
	return Instr(OP_COP0<<26 | CP_CO<<21 | C0_ERET)
}
