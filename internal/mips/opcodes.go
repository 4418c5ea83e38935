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

// Major opcodes (bits 31..26).
const (
	OP_SPECIAL = 0x00
	OP_REGIMM  = 0x01
	OP_J       = 0x02
	OP_JAL     = 0x03
	OP_BEQ     = 0x04
	OP_BNE     = 0x05
	OP_BLEZ    = 0x06
	OP_BGTZ    = 0x07
	OP_ADDI    = 0x08
	OP_ADDIU   = 0x09
	OP_SLTI    = 0x0a
	OP_SLTIU   = 0x0b
	OP_ANDI    = 0x0c
	OP_ORI     = 0x0d
	OP_XORI    = 0x0e
	OP_LUI     = 0x0f
	OP_COP0    = 0x10
	OP_COP1    = 0x11
	OP_COP2    = 0x12
	OP_BEQL    = 0x14
	OP_BNEL    = 0x15
	OP_BLEZL   = 0x16
	OP_BGTZL   = 0x17
	OP_DADDI   = 0x18
	OP_DADDIU  = 0x19
	OP_LDL     = 0x1a
	OP_LDR     = 0x1b
	OP_LB      = 0x20
	OP_LH      = 0x21
	OP_LWL     = 0x22
	OP_LW      = 0x23
	OP_LBU     = 0x24
	OP_LHU     = 0x25
	OP_LWR     = 0x26
	OP_LWU     = 0x27
	OP_SB      = 0x28
	OP_SH      = 0x29
	OP_SWL     = 0x2a
	OP_SW      = 0x2b
	OP_SDL     = 0x2c
	OP_SDR     = 0x2d
	OP_SWR     = 0x2e
	OP_CACHE   = 0x2f
	OP_LL      = 0x30
	OP_LWC1    = 0x31
	OP_LLD     = 0x34
	OP_LDC1    = 0x35
	OP_LD      = 0x37
	OP_SC      = 0x38
	OP_SWC1    = 0x39
	OP_SCD     = 0x3c
	OP_SDC1    = 0x3d
	OP_SD      = 0x3f
)

// SPECIAL function codes (bits 5..0).
const (
	FN_SLL     = 0x00
	FN_SRL     = 0x02
	FN_SRA     = 0x03
	FN_SLLV    = 0x04
	FN_SRLV    = 0x06
	FN_SRAV    = 0x07
	FN_JR      = 0x08
	FN_JALR    = 0x09
	FN_SYSCALL = 0x0c
	FN_BREAK   = 0x0d
	FN_SYNC    = 0x0f
	FN_MFHI    = 0x10
	FN_MTHI    = 0x11
	FN_MFLO    = 0x12
	FN_MTLO    = 0x13
	FN_DSLLV   = 0x14
	FN_DSRLV   = 0x16
	FN_DSRAV   = 0x17
	FN_MULT    = 0x18
	FN_MULTU   = 0x19
	FN_DIV     = 0x1a
	FN_DIVU    = 0x1b
	FN_DMULT   = 0x1c
	FN_DMULTU  = 0x1d
	FN_DDIV    = 0x1e
	FN_DDIVU   = 0x1f
	FN_ADD     = 0x20
	FN_ADDU    = 0x21
	FN_SUB     = 0x22
	FN_SUBU    = 0x23
	FN_AND     = 0x24
	FN_OR      = 0x25
	FN_XOR     = 0x26
	FN_NOR     = 0x27
	FN_SLT     = 0x2a
	FN_SLTU    = 0x2b
	FN_DADD    = 0x2c
	FN_DADDU   = 0x2d
	FN_DSUB    = 0x2e
	FN_DSUBU   = 0x2f
	FN_TGE     = 0x30
	FN_TGEU    = 0x31
	FN_TLT     = 0x32
	FN_TLTU    = 0x33
	FN_TEQ     = 0x34
	FN_TNE     = 0x36
	FN_DSLL    = 0x38
	FN_DSRL    = 0x3a
	FN_DSRA    = 0x3b
	FN_DSLL32  = 0x3c
	FN_DSRL32  = 0x3e
	FN_DSRA32  = 0x3f
)

// REGIMM rt codes.
const (
	RI_BLTZ    = 0x00
	RI_BGEZ    = 0x01
	RI_BLTZL   = 0x02
	RI_BGEZL   = 0x03
	RI_TGEI    = 0x08
	RI_TGEIU   = 0x09
	RI_TLTI    = 0x0a
	RI_TLTIU   = 0x0b
	RI_TEQI    = 0x0c
	RI_TNEI    = 0x0e
	RI_BLTZAL  = 0x10
	RI_BGEZAL  = 0x11
	RI_BLTZALL = 0x12
	RI_BGEZALL = 0x13
)

// Coprocessor rs codes, shared by COP0 and COP1 where they overlap.
const (
	CP_MF  = 0x00
	CP_DMF = 0x01
	CP_CF  = 0x02
	CP_MT  = 0x04
	CP_DMT = 0x05
	CP_CT  = 0x06
	CP_BC  = 0x08
	CP_CO  = 0x10
)

// COP0 function codes when rs = CP_CO.
const (
	C0_TLBR  = 0x01
	C0_TLBWI = 0x02
	C0_TLBWR = 0x06
	C0_TLBP  = 0x08
	C0_ERET  = 0x18
)

// COP1 formats (rs field).
const (
	FMT_S = 0x10
	FMT_D = 0x11
	FMT_W = 0x14
	FMT_L = 0x15
)

// COP1 arithmetic function codes.
const (
	F_ADD     = 0x00
	F_SUB     = 0x01
	F_MUL     = 0x02
	F_DIV     = 0x03
	F_SQRT    = 0x04
	F_ABS     = 0x05
	F_MOV     = 0x06
	F_NEG     = 0x07
	F_ROUND_L = 0x08
	F_TRUNC_L = 0x09
	F_CEIL_L  = 0x0a
	F_FLOOR_L = 0x0b
	F_ROUND_W = 0x0c
	F_TRUNC_W = 0x0d
	F_CEIL_W  = 0x0e
	F_FLOOR_W = 0x0f
	F_CVT_S   = 0x20
	F_CVT_D   = 0x21
	F_CVT_W   = 0x24
	F_CVT_L   = 0x25
	F_C       = 0x30
)

// COP1 compare conditions (low 4 bits of a C.cond.fmt function code).
const (
	C_F    = 0x0
	C_UN   = 0x1
	C_EQ   = 0x2
	C_UEQ  = 0x3
	C_OLT  = 0x4
	C_ULT  = 0x5
	C_OLE  = 0x6
	C_ULE  = 0x7
	C_SF   = 0x8
	C_NGLE = 0x9
	C_SEQ  = 0xa
	C_NGL  = 0xb
	C_LT   = 0xc
	C_NGE  = 0xd
	C_LE   = 0xe
	C_NGT  = 0xf
)

// BC1 rt codes.
const (
	BC_F  = 0x0
	BC_T  = 0x1
	BC_FL = 0x2
	BC_TL = 0x3
)

// COP0 register numbers.
const (
	CP0_INDEX    = 0
	CP0_RANDOM   = 1
	CP0_ENTRYLO0 = 2
	CP0_ENTRYLO1 = 3
	CP0_CONTEXT  = 4
	CP0_PAGEMASK = 5
	CP0_WIRED    = 6
	CP0_BADVADDR = 8
	CP0_COUNT    = 9
	CP0_ENTRYHI  = 10
	CP0_COMPARE  = 11
	CP0_STATUS   = 12
	CP0_CAUSE    = 13
	CP0_EPC      = 14
	CP0_PREVID   = 15
	CP0_CONFIG   = 16
	CP0_LLADDR   = 17
	CP0_WATCHLO  = 18
	CP0_WATCHHI  = 19
	CP0_XCONTEXT = 20
	CP0_TAGLO    = 28
	CP0_TAGHI    = 29
	CP0_ERROREPC = 30
)

// Guest GPR conventions used by the link instructions.
const (
	R0 = 0
	RA = 31
)

// Pseudo register indices for the multiply unit, following r0..r31.
const (
	HI = 32
	LO = 33
)
