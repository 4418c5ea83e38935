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
    `fmt`
)

type Reg uint8

const (
    H0 Reg = iota
    H1
    H2
    H3
    H4
    H5
    H6
    H7
    H8
)

const (
    NumRegs  = 9
    NumFRegs = 8
)

// RZ always reads as zero, writes to it are discarded.
const (
    RZ Reg = 15
)

// FP registers share the Reg type, the opcode decides which file is meant.
const (
    F0 Reg = iota
    F1
    F2
    F3
    F4
    F5
    F6
    F7
)

func (self Reg) String() string {
    if self == RZ {
        return "rz"
    } else {
        return fmt.Sprintf("h%d", self)
    }
}

func (self Reg) fp() string {
    return fmt.Sprintf("f%d", self)
}

// FP compare condition bits, as in the low 3 bits of C.cond.fmt.
const (
    FC_UN = 1 << iota
    FC_EQ
    FC_LT
)

type OpCode byte

const (
    OP_nop    OpCode = iota // no operation
    OP_li                   // i32(Iv) -> Rx
    OP_mov                  // Rx -> Ry
    OP_ldc                  // ctx[Off] -> Rx
    OP_stc                  // Rx -> ctx[Off]
    OP_stci                 // i32(Iv) -> ctx[Off]
    OP_stcx                 // i32(Rx) >> 31 -> ctx[Off]
    OP_ltab                 // (*u8)(ctx[Off])[Rx] -> Ry
    OP_add                  // Rx + Ry -> Rz
    OP_sub                  // Rx - Ry -> Rz
    OP_and                  // Rx & Ry -> Rz
    OP_or                   // Rx | Ry -> Rz
    OP_xor                  // Rx ^ Ry -> Rz
    OP_nor                  // ^(Rx | Ry) -> Rz
    OP_slt                  // i32(Rx) < i32(Ry) -> Rz
    OP_sltu                 // Rx < Ry -> Rz
    OP_sllv                 // Rx << (Ry & 31) -> Rz
    OP_srlv                 // Rx >> (Ry & 31) -> Rz
    OP_srav                 // i32(Rx) >> (Ry & 31) -> Rz
    OP_addi                 // Rx + Iv -> Ry
    OP_andi                 // Rx & Iv -> Ry
    OP_ori                  // Rx | Iv -> Ry
    OP_xori                 // Rx ^ Iv -> Ry
    OP_slti                 // i32(Rx) < i32(Iv) -> Ry
    OP_sltui                // Rx < u32(Iv) -> Ry
    OP_slli                 // Rx << Iv -> Ry
    OP_srli                 // Rx >> Iv -> Ry
    OP_srai                 // i32(Rx) >> Iv -> Ry
    OP_mul                  // i64(Rx) * i64(Ry) -> {Rz, Rw}
    OP_mulu                 // u64(Rx) * u64(Ry) -> {Rz, Rw}
    OP_lb                   // i8(ram[Rx + Off]) -> Ry
    OP_lbu                  // u8(ram[Rx + Off]) -> Ry
    OP_lh                   // i16(ram[Rx + Off]) -> Ry
    OP_lhu                  // u16(ram[Rx + Off]) -> Ry
    OP_lw                   // ram[Rx + Off] -> Ry
    OP_sb                   // u8(Ry) -> ram[Rx + Off]
    OP_sh                   // u16(Ry) -> ram[Rx + Off]
    OP_sw                   // Ry -> ram[Rx + Off]
    OP_beq                  // if (Rx == Ry) Br.PC -> PC
    OP_bne                  // if (Rx != Ry) Br.PC -> PC
    OP_blt                  // if (i32(Rx) < i32(Ry)) Br.PC -> PC
    OP_bge                  // if (i32(Rx) >= i32(Ry)) Br.PC -> PC
    OP_bltu                 // if (Rx < Ry) Br.PC -> PC
    OP_bgeu                 // if (Rx >= Ry) Br.PC -> PC
    OP_beqi                 // if (Rx == Iv) Br.PC -> PC
    OP_bnei                 // if (Rx != Iv) Br.PC -> PC
    OP_blti                 // if (i32(Rx) < i32(Iv)) Br.PC -> PC
    OP_bgei                 // if (i32(Rx) >= i32(Iv)) Br.PC -> PC
    OP_bltui                // if (Rx < u32(Iv)) Br.PC -> PC
    OP_bgeui                // if (Rx >= u32(Iv)) Br.PC -> PC
    OP_bovfa                // if (i32(Rx) + i32(Ry) overflows) Br.PC -> PC
    OP_bovfs                // if (i32(Rx) - i32(Ry) overflows) Br.PC -> PC
    OP_jmp                  // Br.PC -> PC
    OP_callout              // Iv -> ctx.CallID; Br.PC -> ctx.Resume; exit with ExitCall
    OP_link                 // if (links[Iv] != 0) links[Iv] -> PC
    OP_exit                 // exit with Iv
    OP_fld                  // ctx[Off] -> Fx
    OP_fst                  // Fx -> ctx[Off]
    OP_fadd                 // Fx + Fy -> Fz
    OP_fsub                 // Fx - Fy -> Fz
    OP_fmul                 // Fx * Fy -> Fz
    OP_fdiv                 // Fx / Fy -> Fz
    OP_fsqrt                // sqrt(Fx) -> Fy
    OP_fmov                 // Fx -> Fy
    OP_fabs                 // abs(Fx) -> Fy
    OP_fneg                 // -Fx -> Fy
    OP_fcmp                 // cond(Fx, Fy, Iv) -> Rz
)

// Instr is one host IR instruction. Sz is the operand size of FP
// instructions, either 4 or 8.
type Instr struct {
    Op  OpCode
    Sz  uint8
    Rx  Reg
    Ry  Reg
    Rz  Reg
    Rw  Reg
    Off int32
    Iv  int64
    Br  *Instr
    Ln  *Instr
}

func (self *Instr) iv(v int64) *Instr  { self.Iv = v; return self }
func (self *Instr) off(v int32) *Instr { self.Off = v; return self }
func (self *Instr) sz(v uint8) *Instr  { self.Sz = v; return self }
func (self *Instr) rx(v Reg) *Instr    { self.Rx = v; return self }
func (self *Instr) ry(v Reg) *Instr    { self.Ry = v; return self }
func (self *Instr) rz(v Reg) *Instr    { self.Rz = v; return self }
func (self *Instr) rw(v Reg) *Instr    { self.Rw = v; return self }

func (self *Instr) isBranch() bool {
    return (self.Op >= OP_beq && self.Op <= OP_jmp) || self.Op == OP_callout
}

func (self *Instr) fsz() string {
    if self.Sz == 8 {
        return "d"
    } else {
        return "s"
    }
}

func (self *Instr) disassemble(refs map[*Instr]string) string {
    switch self.Op {
    case OP_nop:
        return "nop"
    case OP_li:
        return fmt.Sprintf("li      $%d, %%%s", int32(self.Iv), self.Rx)
    case OP_mov:
        return fmt.Sprintf("mov     %%%s, %%%s", self.Rx, self.Ry)
    case OP_ldc:
        return fmt.Sprintf("ldc     ctx+%d, %%%s", self.Off, self.Rx)
    case OP_stc:
        return fmt.Sprintf("stc     %%%s, ctx+%d", self.Rx, self.Off)
    case OP_stci:
        return fmt.Sprintf("stc     $%d, ctx+%d", int32(self.Iv), self.Off)
    case OP_stcx:
        return fmt.Sprintf("stcx    %%%s, ctx+%d", self.Rx, self.Off)
    case OP_ltab:
        return fmt.Sprintf("ltab    ctx+%d[%%%s], %%%s", self.Off, self.Rx, self.Ry)
    case OP_add:
        return fmt.Sprintf("add     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_sub:
        return fmt.Sprintf("sub     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_and:
        return fmt.Sprintf("and     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_or:
        return fmt.Sprintf("or      %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_xor:
        return fmt.Sprintf("xor     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_nor:
        return fmt.Sprintf("nor     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_slt:
        return fmt.Sprintf("slt     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_sltu:
        return fmt.Sprintf("sltu    %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_sllv:
        return fmt.Sprintf("sll     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_srlv:
        return fmt.Sprintf("srl     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_srav:
        return fmt.Sprintf("sra     %%%s, %%%s, %%%s", self.Rx, self.Ry, self.Rz)
    case OP_addi:
        return fmt.Sprintf("add     %%%s, %d, %%%s", self.Rx, int32(self.Iv), self.Ry)
    case OP_andi:
        return fmt.Sprintf("and     %%%s, %#x, %%%s", self.Rx, uint32(self.Iv), self.Ry)
    case OP_ori:
        return fmt.Sprintf("or      %%%s, %#x, %%%s", self.Rx, uint32(self.Iv), self.Ry)
    case OP_xori:
        return fmt.Sprintf("xor     %%%s, %#x, %%%s", self.Rx, uint32(self.Iv), self.Ry)
    case OP_slti:
        return fmt.Sprintf("slt     %%%s, %d, %%%s", self.Rx, int32(self.Iv), self.Ry)
    case OP_sltui:
        return fmt.Sprintf("sltu    %%%s, %d, %%%s", self.Rx, uint32(self.Iv), self.Ry)
    case OP_slli:
        return fmt.Sprintf("sll     %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
    case OP_srli:
        return fmt.Sprintf("srl     %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
    case OP_srai:
        return fmt.Sprintf("sra     %%%s, %d, %%%s", self.Rx, self.Iv, self.Ry)
    case OP_mul:
        return fmt.Sprintf("mul     %%%s, %%%s, {%%%s, %%%s}", self.Rx, self.Ry, self.Rz, self.Rw)
    case OP_mulu:
        return fmt.Sprintf("mulu    %%%s, %%%s, {%%%s, %%%s}", self.Rx, self.Ry, self.Rz, self.Rw)
    case OP_lb:
        return fmt.Sprintf("lb      %d(%%%s), %%%s", self.Off, self.Rx, self.Ry)
    case OP_lbu:
        return fmt.Sprintf("lbu     %d(%%%s), %%%s", self.Off, self.Rx, self.Ry)
    case OP_lh:
        return fmt.Sprintf("lh      %d(%%%s), %%%s", self.Off, self.Rx, self.Ry)
    case OP_lhu:
        return fmt.Sprintf("lhu     %d(%%%s), %%%s", self.Off, self.Rx, self.Ry)
    case OP_lw:
        return fmt.Sprintf("lw      %d(%%%s), %%%s", self.Off, self.Rx, self.Ry)
    case OP_sb:
        return fmt.Sprintf("sb      %%%s, %d(%%%s)", self.Ry, self.Off, self.Rx)
    case OP_sh:
        return fmt.Sprintf("sh      %%%s, %d(%%%s)", self.Ry, self.Off, self.Rx)
    case OP_sw:
        return fmt.Sprintf("sw      %%%s, %d(%%%s)", self.Ry, self.Off, self.Rx)
    case OP_beq:
        return fmt.Sprintf("beq     %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_bne:
        return fmt.Sprintf("bne     %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_blt:
        return fmt.Sprintf("blt     %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_bge:
        return fmt.Sprintf("bge     %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_bltu:
        return fmt.Sprintf("bltu    %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_bgeu:
        return fmt.Sprintf("bgeu    %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_beqi:
        return fmt.Sprintf("beq     %%%s, $%d, %s", self.Rx, int32(self.Iv), refs[self.Br])
    case OP_bnei:
        return fmt.Sprintf("bne     %%%s, $%d, %s", self.Rx, int32(self.Iv), refs[self.Br])
    case OP_blti:
        return fmt.Sprintf("blt     %%%s, $%d, %s", self.Rx, int32(self.Iv), refs[self.Br])
    case OP_bgei:
        return fmt.Sprintf("bge     %%%s, $%d, %s", self.Rx, int32(self.Iv), refs[self.Br])
    case OP_bltui:
        return fmt.Sprintf("bltu    %%%s, $%#x, %s", self.Rx, uint32(self.Iv), refs[self.Br])
    case OP_bgeui:
        return fmt.Sprintf("bgeu    %%%s, $%#x, %s", self.Rx, uint32(self.Iv), refs[self.Br])
    case OP_bovfa:
        return fmt.Sprintf("bovfa   %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_bovfs:
        return fmt.Sprintf("bovfs   %%%s, %%%s, %s", self.Rx, self.Ry, refs[self.Br])
    case OP_jmp:
        return fmt.Sprintf("jmp     %s", refs[self.Br])
    case OP_callout:
        return fmt.Sprintf("callout $%d, %s", self.Iv, refs[self.Br])
    case OP_link:
        return fmt.Sprintf("link    $%d", self.Iv)
    case OP_exit:
        return fmt.Sprintf("exit    $%d", self.Iv)
    case OP_fld:
        return fmt.Sprintf("fld.%s   ctx+%d, %%%s", self.fsz(), self.Off, self.Rx.fp())
    case OP_fst:
        return fmt.Sprintf("fst.%s   %%%s, ctx+%d", self.fsz(), self.Rx.fp(), self.Off)
    case OP_fadd:
        return fmt.Sprintf("fadd.%s  %%%s, %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp(), self.Rz.fp())
    case OP_fsub:
        return fmt.Sprintf("fsub.%s  %%%s, %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp(), self.Rz.fp())
    case OP_fmul:
        return fmt.Sprintf("fmul.%s  %%%s, %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp(), self.Rz.fp())
    case OP_fdiv:
        return fmt.Sprintf("fdiv.%s  %%%s, %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp(), self.Rz.fp())
    case OP_fsqrt:
        return fmt.Sprintf("fsqrt.%s %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp())
    case OP_fmov:
        return fmt.Sprintf("fmov.%s  %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp())
    case OP_fabs:
        return fmt.Sprintf("fabs.%s  %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp())
    case OP_fneg:
        return fmt.Sprintf("fneg.%s  %%%s, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp())
    case OP_fcmp:
        return fmt.Sprintf("fcmp.%s  %%%s, %%%s, $%d, %%%s", self.fsz(), self.Rx.fp(), self.Ry.fp(), self.Iv, self.Rz)
    default:
        panic(fmt.Sprintf("invalid OpCode: 0x%02x", self.Op))
    }
}
