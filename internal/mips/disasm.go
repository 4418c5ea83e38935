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
	"fmt"
)

type _Form uint8

const (
	_F_none _Form = iota
	_F_rd_rs_rt
	_F_rd_rt_sa
	_F_rd_rt_rs
	_F_rs_rt
	_F_rs
	_F_rd_rs
	_F_rd
	_F_rt_rs_imm
	_F_rt_rs_uimm
	_F_rt_imm
	_F_rt_off_rs
	_F_rs_rt_br
	_F_rs_br
	_F_rs_imm
	_F_jump
	_F_code
)

type _Mnemonic struct {
	name string
	form _Form
}

var specialNames = map[uint32]_Mnemonic{
	FN_SLL:     {"sll", _F_rd_rt_sa},
	FN_SRL:     {"srl", _F_rd_rt_sa},
	FN_SRA:     {"sra", _F_rd_rt_sa},
	FN_SLLV:    {"sllv", _F_rd_rt_rs},
	FN_SRLV:    {"srlv", _F_rd_rt_rs},
	FN_SRAV:    {"srav", _F_rd_rt_rs},
	FN_JR:      {"jr", _F_rs},
	FN_JALR:    {"jalr", _F_rd_rs},
	FN_SYSCALL: {"syscall", _F_code},
	FN_BREAK:   {"break", _F_code},
	FN_SYNC:    {"sync", _F_none},
	FN_MFHI:    {"mfhi", _F_rd},
	FN_MTHI:    {"mthi", _F_rs},
	FN_MFLO:    {"mflo", _F_rd},
	FN_MTLO:    {"mtlo", _F_rs},
	FN_DSLLV:   {"dsllv", _F_rd_rt_rs},
	FN_DSRLV:   {"dsrlv", _F_rd_rt_rs},
	FN_DSRAV:   {"dsrav", _F_rd_rt_rs},
	FN_MULT:    {"mult", _F_rs_rt},
	FN_MULTU:   {"multu", _F_rs_rt},
	FN_DIV:     {"div", _F_rs_rt},
	FN_DIVU:    {"divu", _F_rs_rt},
	FN_DMULT:   {"dmult", _F_rs_rt},
	FN_DMULTU:  {"dmultu", _F_rs_rt},
	FN_DDIV:    {"ddiv", _F_rs_rt},
	FN_DDIVU:   {"ddivu", _F_rs_rt},
	FN_ADD:     {"add", _F_rd_rs_rt},
	FN_ADDU:    {"addu", _F_rd_rs_rt},
	FN_SUB:     {"sub", _F_rd_rs_rt},
	FN_SUBU:    {"subu", _F_rd_rs_rt},
	FN_AND:     {"and", _F_rd_rs_rt},
	FN_OR:      {"or", _F_rd_rs_rt},
	FN_XOR:     {"xor", _F_rd_rs_rt},
	FN_NOR:     {"nor", _F_rd_rs_rt},
	FN_SLT:     {"slt", _F_rd_rs_rt},
	FN_SLTU:    {"sltu", _F_rd_rs_rt},
	FN_DADD:    {"dadd", _F_rd_rs_rt},
	FN_DADDU:   {"daddu", _F_rd_rs_rt},
	FN_DSUB:    {"dsub", _F_rd_rs_rt},
	FN_DSUBU:   {"dsubu", _F_rd_rs_rt},
	FN_TGE:     {"tge", _F_rs_rt},
	FN_TGEU:    {"tgeu", _F_rs_rt},
	FN_TLT:     {"tlt", _F_rs_rt},
	FN_TLTU:    {"tltu", _F_rs_rt},
	FN_TEQ:     {"teq", _F_rs_rt},
	FN_TNE:     {"tne", _F_rs_rt},
	FN_DSLL:    {"dsll", _F_rd_rt_sa},
	FN_DSRL:    {"dsrl", _F_rd_rt_sa},
	FN_DSRA:    {"dsra", _F_rd_rt_sa},
	FN_DSLL32:  {"dsll32", _F_rd_rt_sa},
	FN_DSRL32:  {"dsrl32", _F_rd_rt_sa},
	FN_DSRA32:  {"dsra32", _F_rd_rt_sa},
}

var regimmNames = map[int]_Mnemonic{
	RI_BLTZ:    {"bltz", _F_rs_br},
	RI_BGEZ:    {"bgez", _F_rs_br},
	RI_BLTZL:   {"bltzl", _F_rs_br},
	RI_BGEZL:   {"bgezl", _F_rs_br},
	RI_TGEI:    {"tgei", _F_rs_imm},
	RI_TGEIU:   {"tgeiu", _F_rs_imm},
	RI_TLTI:    {"tlti", _F_rs_imm},
	RI_TLTIU:   {"tltiu", _F_rs_imm},
	RI_TEQI:    {"teqi", _F_rs_imm},
	RI_TNEI:    {"tnei", _F_rs_imm},
	RI_BLTZAL:  {"bltzal", _F_rs_br},
	RI_BGEZAL:  {"bgezal", _F_rs_br},
	RI_BLTZALL: {"bltzall", _F_rs_br},
	RI_BGEZALL: {"bgezall", _F_rs_br},
}

var majorNames = map[uint32]_Mnemonic{
	OP_J:      {"j", _F_jump},
	OP_JAL:    {"jal", _F_jump},
	OP_BEQ:    {"beq", _F_rs_rt_br},
	OP_BNE:    {"bne", _F_rs_rt_br},
	OP_BLEZ:   {"blez", _F_rs_br},
	OP_BGTZ:   {"bgtz", _F_rs_br},
	OP_ADDI:   {"addi", _F_rt_rs_imm},
	OP_ADDIU:  {"addiu", _F_rt_rs_imm},
	OP_SLTI:   {"slti", _F_rt_rs_imm},
	OP_SLTIU:  {"sltiu", _F_rt_rs_imm},
	OP_ANDI:   {"andi", _F_rt_rs_uimm},
	OP_ORI:    {"ori", _F_rt_rs_uimm},
	OP_XORI:   {"xori", _F_rt_rs_uimm},
	OP_LUI:    {"lui", _F_rt_imm},
	OP_BEQL:   {"beql", _F_rs_rt_br},
	OP_BNEL:   {"bnel", _F_rs_rt_br},
	OP_BLEZL:  {"blezl", _F_rs_br},
	OP_BGTZL:  {"bgtzl", _F_rs_br},
	OP_DADDI:  {"daddi", _F_rt_rs_imm},
	OP_DADDIU: {"daddiu", _F_rt_rs_imm},
	OP_LDL:    {"ldl", _F_rt_off_rs},
	OP_LDR:    {"ldr", _F_rt_off_rs},
	OP_LB:     {"lb", _F_rt_off_rs},
	OP_LH:     {"lh", _F_rt_off_rs},
	OP_LWL:    {"lwl", _F_rt_off_rs},
	OP_LW:     {"lw", _F_rt_off_rs},
	OP_LBU:    {"lbu", _F_rt_off_rs},
	OP_LHU:    {"lhu", _F_rt_off_rs},
	OP_LWR:    {"lwr", _F_rt_off_rs},
	OP_LWU:    {"lwu", _F_rt_off_rs},
	OP_SB:     {"sb", _F_rt_off_rs},
	OP_SH:     {"sh", _F_rt_off_rs},
	OP_SWL:    {"swl", _F_rt_off_rs},
	OP_SW:     {"sw", _F_rt_off_rs},
	OP_SDL:    {"sdl", _F_rt_off_rs},
	OP_SDR:    {"sdr", _F_rt_off_rs},
	OP_SWR:    {"swr", _F_rt_off_rs},
	OP_CACHE:  {"cache", _F_rt_off_rs},
	OP_LL:     {"ll", _F_rt_off_rs},
	OP_LWC1:   {"lwc1", _F_rt_off_rs},
	OP_LLD:    {"lld", _F_rt_off_rs},
	OP_LDC1:   {"ldc1", _F_rt_off_rs},
	OP_LD:     {"ld", _F_rt_off_rs},
	OP_SC:     {"sc", _F_rt_off_rs},
	OP_SWC1:   {"swc1", _F_rt_off_rs},
	OP_SCD:    {"scd", _F_rt_off_rs},
	OP_SDC1:   {"sdc1", _F_rt_off_rs},
	OP_SD:     {"sd", _F_rt_off_rs},
}

var fpuNames = map[uint32]string{
	F_ADD:     "add",
	F_SUB:     "sub",
	F_MUL:     "mul",
	F_DIV:     "div",
	F_SQRT:    "sqrt",
	F_ABS:     "abs",
	F_MOV:     "mov",
	F_NEG:     "neg",
	F_ROUND_L: "round.l",
	F_TRUNC_L: "trunc.l",
	F_CEIL_L:  "ceil.l",
	F_FLOOR_L: "floor.l",
	F_ROUND_W: "round.w",
	F_TRUNC_W: "trunc.w",
	F_CEIL_W:  "ceil.w",
	F_FLOOR_W: "floor.w",
	F_CVT_S:   "cvt.s",
	F_CVT_D:   "cvt.d",
	F_CVT_W:   "cvt.w",
	F_CVT_L:   "cvt.l",
}

var condNames = [16]string{
	"f", "un", "eq", "ueq", "olt", "ult", "ole", "ule",
	"sf", "ngle", "seq", "ngl", "lt", "nge", "le", "ngt",
}

var fmtNames = map[uint32]string{
	FMT_S: "s",
	FMT_D: "d",
	FMT_W: "w",
	FMT_L: "l",
}

func (self Instr) String() string {
	if self == NOP {
		return "nop"
	}

	/* decode the mnemonic table */
	switch self.Op() {
	case OP_SPECIAL:
		if m, ok := specialNames[self.Funct()]; ok {
			if self.Funct() == FN_OR && self.Rt() == R0 {
				return fmt.Sprintf("move $%d, $%d", self.Rd(), self.Rs())
			}
			return self.format(m)
		}
	case OP_REGIMM:
		if m, ok := regimmNames[self.Rt()]; ok {
			return self.format(m)
		}
	case OP_COP0:
		return self.cop0()
	case OP_COP1:
		return self.cop1()
	default:
		if m, ok := majorNames[self.Op()]; ok {
			return self.format(m)
		}
	}
	return fmt.Sprintf(".word 0x%08x", uint32(self))
}

func (self Instr) format(m _Mnemonic) string {
	switch m.form {
	case _F_rd_rs_rt:
		return fmt.Sprintf("%s $%d, $%d, $%d", m.name, self.Rd(), self.Rs(), self.Rt())
	case _F_rd_rt_sa:
		return fmt.Sprintf("%s $%d, $%d, %d", m.name, self.Rd(), self.Rt(), self.Sa())
	case _F_rd_rt_rs:
		return fmt.Sprintf("%s $%d, $%d, $%d", m.name, self.Rd(), self.Rt(), self.Rs())
	case _F_rs_rt:
		return fmt.Sprintf("%s $%d, $%d", m.name, self.Rs(), self.Rt())
	case _F_rs:
		return fmt.Sprintf("%s $%d", m.name, self.Rs())
	case _F_rd_rs:
		return fmt.Sprintf("%s $%d, $%d", m.name, self.Rd(), self.Rs())
	case _F_rd:
		return fmt.Sprintf("%s $%d", m.name, self.Rd())
	case _F_rt_rs_imm:
		return fmt.Sprintf("%s $%d, $%d, %d", m.name, self.Rt(), self.Rs(), self.SImm())
	case _F_rt_rs_uimm:
		return fmt.Sprintf("%s $%d, $%d, 0x%x", m.name, self.Rt(), self.Rs(), self.UImm())
	case _F_rt_imm:
		return fmt.Sprintf("%s $%d, 0x%x", m.name, self.Rt(), self.UImm())
	case _F_rt_off_rs:
		return fmt.Sprintf("%s $%d, %d($%d)", m.name, self.Rt(), self.SImm(), self.Rs())
	case _F_rs_rt_br:
		return fmt.Sprintf("%s $%d, $%d, %+d", m.name, self.Rs(), self.Rt(), self.SImm())
	case _F_rs_br:
		return fmt.Sprintf("%s $%d, %+d", m.name, self.Rs(), self.SImm())
	case _F_rs_imm:
		return fmt.Sprintf("%s $%d, %d", m.name, self.Rs(), self.SImm())
	case _F_jump:
		return fmt.Sprintf("%s 0x%07x", m.name, self.Target()<<2)
	case _F_code:
		return fmt.Sprintf("%s 0x%x", m.name, uint32(self>>6)&0xfffff)
	default:
		return m.name
	}
}

func (self Instr) cop0() string {
	switch self.Rs() {
	case CP_MF:
		return fmt.Sprintf("mfc0 $%d, $%d", self.Rt(), self.Rd())
	case CP_DMF:
		return fmt.Sprintf("dmfc0 $%d, $%d", self.Rt(), self.Rd())
	case CP_MT:
		return fmt.Sprintf("mtc0 $%d, $%d", self.Rt(), self.Rd())
	case CP_DMT:
		return fmt.Sprintf("dmtc0 $%d, $%d", self.Rt(), self.Rd())
	case CP_CO:
		switch self.Funct() {
		case C0_TLBR:
			return "tlbr"
		case C0_TLBWI:
			return "tlbwi"
		case C0_TLBWR:
			return "tlbwr"
		case C0_TLBP:
			return "tlbp"
		case C0_ERET:
			return "eret"
		}
	}
	return fmt.Sprintf(".word 0x%08x", uint32(self))
}

func (self Instr) cop1() string {
	switch self.Rs() {
	case CP_MF:
		return fmt.Sprintf("mfc1 $%d, $f%d", self.Rt(), self.Fs())
	case CP_DMF:
		return fmt.Sprintf("dmfc1 $%d, $f%d", self.Rt(), self.Fs())
	case CP_CF:
		return fmt.Sprintf("cfc1 $%d, $%d", self.Rt(), self.Fs())
	case CP_MT:
		return fmt.Sprintf("mtc1 $%d, $f%d", self.Rt(), self.Fs())
	case CP_DMT:
		return fmt.Sprintf("dmtc1 $%d, $f%d", self.Rt(), self.Fs())
	case CP_CT:
		return fmt.Sprintf("ctc1 $%d, $%d", self.Rt(), self.Fs())
	case CP_BC:
		return fmt.Sprintf("%s %+d", [4]string{"bc1f", "bc1t", "bc1fl", "bc1tl"}[self.Rt()&3], self.SImm())
	}

	/* arithmetic formats */
	f, ok := fmtNames[self.Fmt()]
	if !ok {
		return fmt.Sprintf(".word 0x%08x", uint32(self))
	}

	/* compare instructions */
	if self.Funct() >= F_C {
		return fmt.Sprintf("c.%s.%s $f%d, $f%d", condNames[self.Cond()], f, self.Fs(), self.Ft())
	}

	/* regular arithmetic */
	if n, ok := fpuNames[self.Funct()]; ok {
		switch self.Funct() {
		case F_ADD, F_SUB, F_MUL, F_DIV:
			return fmt.Sprintf("%s.%s $f%d, $f%d, $f%d", n, f, self.Fd(), self.Fs(), self.Ft())
		default:
			return fmt.Sprintf("%s.%s $f%d, $f%d", n, f, self.Fd(), self.Fs())
		}
	}
	return fmt.Sprintf(".word 0x%08x", uint32(self))
}
