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
    `math`

    `github.com/chenzhuoyu/iasm/x86_64`
)

type _DeferBlock struct {
    ref *x86_64.Label
    def func(p *x86_64.Program)
}

type _BinaryOp func(v0 interface{}, v1 interface{}) *x86_64.Instruction

/** Execution Environment of the Generated Code
 *
 *  A trace is entered by a near call with the context in RDI and the guest
 *  memory base in RSI, and leaves with a RET and the exit status in EAX.
 *  It keeps nothing on the stack, so a trace may jump straight into another
 *  one through a link cell. Every allocatable register is clobbered between
 *  a callout and the matching resume.
 *
 *      RDI       -> context (starts with a Header)
 *      RSI       -> guest memory
 *      RAX, RCX  -> scratch
 *      XMM8      -> FP scratch
 */

type CodeGen struct {
    arch *x86_64.Arch
    defs []_DeferBlock
    jmps map[string]*x86_64.Label
}

func CreateCodeGen() *CodeGen {
    return &CodeGen{
        arch: x86_64.CreateArch(),
        jmps: make(map[string]*x86_64.Label),
    }
}

func (self *CodeGen) Generate(s Program) *x86_64.Program {
    var v *Instr
    var p *x86_64.Program

    /* must not fall off the end */
    for v = s.Head; v != nil && v.Ln != nil; v = v.Ln {}
    if v == nil {
        panic("pgen: empty program")
    } else if v.Op != OP_exit && v.Op != OP_jmp {
        panic("pgen: program does not end with an exit: " + v.disassemble(nil))
    }

    /* translate the entire program */
    p = self.arch.CreateProgram()
    for v = s.Head; v != nil; v = v.Ln {
        self.translate(p, v)
    }

    /* generate all defered blocks */
    for _, fn := range self.defs {
        p.Link(fn.ref)
        fn.def(p)
    }
    return p
}

func (self *CodeGen) later(ref *x86_64.Label, def func(*x86_64.Program)) {
    self.defs = append(self.defs, _DeferBlock{
        ref: ref,
        def: def,
    })
}

func (self *CodeGen) translate(p *x86_64.Program, v *Instr) {
    if p.Link(self.to(v)); v.Op != OP_nop {
        if fn := translators[v.Op]; fn != nil {
            fn(self, p, v)
        } else {
            panic("pgen: invalid instruction: " + v.disassemble(nil))
        }
    }
}

func (self *CodeGen) to(v *Instr) *x86_64.Label {
    return self.ref(fmt.Sprintf("_PC_%p", v))
}

func (self *CodeGen) ref(s string) *x86_64.Label {
    var k bool
    var p *x86_64.Label

    /* check for existance */
    if p, k = self.jmps[s]; k {
        return p
    }

    /* create a new label if not */
    p = x86_64.CreateLabel(s)
    self.jmps[s] = p
    return p
}

/** Register Access **/

func (self *CodeGen) r(reg Reg) x86_64.Register64 {
    if reg >= NumRegs {
        panic("pgen: access to unallocatable register: " + reg.String())
    } else {
        return nativeRegs[reg]
    }
}

func (self *CodeGen) r32(reg Reg) x86_64.Register32 {
    return x86_64.Register32(self.r(reg))
}

func (self *CodeGen) x(reg Reg) x86_64.XMMRegister {
    if reg >= NumFRegs {
        panic("pgen: access to invalid FP register: " + reg.fp())
    } else {
        return x86_64.XMMRegister(reg)
    }
}

// opnd returns reg as a source operand, the zero register being $0.
func (self *CodeGen) opnd(reg Reg) interface{} {
    if reg == RZ {
        return 0
    } else {
        return self.r32(reg)
    }
}

// src returns a register that holds the value of reg, using tmp for RZ.
func (self *CodeGen) src(p *x86_64.Program, reg Reg, tmp x86_64.Register32) x86_64.Register32 {
    if reg != RZ {
        return self.r32(reg)
    } else {
        p.XORL(tmp, tmp)
        return tmp
    }
}

func (self *CodeGen) mov(p *x86_64.Program, reg Reg, dst x86_64.Register32) {
    if reg == RZ {
        p.XORL(dst, dst)
    } else {
        p.MOVL(self.r32(reg), dst)
    }
}

func (self *CodeGen) ram(reg Reg, off int32) *x86_64.MemoryOperand {
    if reg == RZ {
        return Ptr(RAM, off)
    } else {
        return Sib(RAM, self.r(reg), 1, off)
    }
}

func (self *CodeGen) binop(p *x86_64.Program, v *Instr, op _BinaryOp) {
    if v.Rz != RZ {
        if v.Rz == v.Rx && v.Rz != v.Ry {
            op(self.opnd(v.Ry), self.r32(v.Rz))
        } else {
            self.mov(p, v.Rx, EAX)
            op(self.opnd(v.Ry), EAX)
            p.MOVL(EAX, self.r32(v.Rz))
        }
    }
}

func (self *CodeGen) binopi(p *x86_64.Program, v *Instr, op _BinaryOp) {
    if v.Ry != RZ {
        if v.Ry == v.Rx {
            op(int32(v.Iv), self.r32(v.Ry))
        } else {
            self.mov(p, v.Rx, EAX)
            op(int32(v.Iv), EAX)
            p.MOVL(EAX, self.r32(v.Ry))
        }
    }
}

func (self *CodeGen) shiftv(p *x86_64.Program, v *Instr, op _BinaryOp) {
    if v.Rz != RZ {
        self.mov(p, v.Ry, ECX)
        self.mov(p, v.Rx, EAX)
        op(CL, EAX)
        p.MOVL(EAX, self.r32(v.Rz))
    }
}

func (self *CodeGen) shifti(p *x86_64.Program, v *Instr, op _BinaryOp) {
    if v.Ry != RZ {
        if v.Iv == 0 {
            self.mov(p, v.Rx, self.r32(v.Ry))
        } else if v.Ry == v.Rx {
            op(int(v.Iv), self.r32(v.Ry))
        } else {
            self.mov(p, v.Rx, EAX)
            op(int(v.Iv), EAX)
            p.MOVL(EAX, self.r32(v.Ry))
        }
    }
}

func (self *CodeGen) setcc(p *x86_64.Program, dst Reg, set func(v0 interface{}) *x86_64.Instruction) {
    set(CL)
    p.MOVZBL(CL, ECX)
    p.MOVL(ECX, self.r32(dst))
}

func (self *CodeGen) fop(p *x86_64.Program, v *Instr, ss _BinaryOp, sd _BinaryOp) {
    p.MOVAPS(self.x(v.Rx), XMMScratch)
    if v.Sz == 8 {
        sd(self.x(v.Ry), XMMScratch)
    } else {
        ss(self.x(v.Ry), XMMScratch)
    }
    p.MOVAPS(XMMScratch, self.x(v.Rz))
}

func (self *CodeGen) fmask(p *x86_64.Program, v *Instr, m32 int32, m64 int64, op _BinaryOp) {
    if v.Sz == 8 {
        p.MOVQ(m64, RAX)
        p.MOVQ(RAX, XMMScratch)
    } else {
        p.MOVL(m32, EAX)
        p.MOVD(EAX, XMMScratch)
    }
    if v.Rx != v.Ry {
        p.MOVAPS(self.x(v.Rx), self.x(v.Ry))
    }
    op(XMMScratch, self.x(v.Ry))
}

/** OpCode Generators **/

var translators = [256]func(*CodeGen, *x86_64.Program, *Instr){
    OP_li:      (*CodeGen).translate_OP_li,
    OP_mov:     (*CodeGen).translate_OP_mov,
    OP_ldc:     (*CodeGen).translate_OP_ldc,
    OP_stc:     (*CodeGen).translate_OP_stc,
    OP_stci:    (*CodeGen).translate_OP_stci,
    OP_stcx:    (*CodeGen).translate_OP_stcx,
    OP_ltab:    (*CodeGen).translate_OP_ltab,
    OP_add:     (*CodeGen).translate_OP_add,
    OP_sub:     (*CodeGen).translate_OP_sub,
    OP_and:     (*CodeGen).translate_OP_and,
    OP_or:      (*CodeGen).translate_OP_or,
    OP_xor:     (*CodeGen).translate_OP_xor,
    OP_nor:     (*CodeGen).translate_OP_nor,
    OP_slt:     (*CodeGen).translate_OP_slt,
    OP_sltu:    (*CodeGen).translate_OP_sltu,
    OP_sllv:    (*CodeGen).translate_OP_sllv,
    OP_srlv:    (*CodeGen).translate_OP_srlv,
    OP_srav:    (*CodeGen).translate_OP_srav,
    OP_addi:    (*CodeGen).translate_OP_addi,
    OP_andi:    (*CodeGen).translate_OP_andi,
    OP_ori:     (*CodeGen).translate_OP_ori,
    OP_xori:    (*CodeGen).translate_OP_xori,
    OP_slti:    (*CodeGen).translate_OP_slti,
    OP_sltui:   (*CodeGen).translate_OP_sltui,
    OP_slli:    (*CodeGen).translate_OP_slli,
    OP_srli:    (*CodeGen).translate_OP_srli,
    OP_srai:    (*CodeGen).translate_OP_srai,
    OP_mul:     (*CodeGen).translate_OP_mul,
    OP_mulu:    (*CodeGen).translate_OP_mulu,
    OP_lb:      (*CodeGen).translate_OP_lb,
    OP_lbu:     (*CodeGen).translate_OP_lbu,
    OP_lh:      (*CodeGen).translate_OP_lh,
    OP_lhu:     (*CodeGen).translate_OP_lhu,
    OP_lw:      (*CodeGen).translate_OP_lw,
    OP_sb:      (*CodeGen).translate_OP_sb,
    OP_sh:      (*CodeGen).translate_OP_sh,
    OP_sw:      (*CodeGen).translate_OP_sw,
    OP_beq:     (*CodeGen).translate_OP_beq,
    OP_bne:     (*CodeGen).translate_OP_bne,
    OP_blt:     (*CodeGen).translate_OP_blt,
    OP_bge:     (*CodeGen).translate_OP_bge,
    OP_bltu:    (*CodeGen).translate_OP_bltu,
    OP_bgeu:    (*CodeGen).translate_OP_bgeu,
    OP_beqi:    (*CodeGen).translate_OP_beqi,
    OP_bnei:    (*CodeGen).translate_OP_bnei,
    OP_blti:    (*CodeGen).translate_OP_blti,
    OP_bgei:    (*CodeGen).translate_OP_bgei,
    OP_bltui:   (*CodeGen).translate_OP_bltui,
    OP_bgeui:   (*CodeGen).translate_OP_bgeui,
    OP_bovfa:   (*CodeGen).translate_OP_bovfa,
    OP_bovfs:   (*CodeGen).translate_OP_bovfs,
    OP_jmp:     (*CodeGen).translate_OP_jmp,
    OP_callout: (*CodeGen).translate_OP_callout,
    OP_link:    (*CodeGen).translate_OP_link,
    OP_exit:    (*CodeGen).translate_OP_exit,
    OP_fld:     (*CodeGen).translate_OP_fld,
    OP_fst:     (*CodeGen).translate_OP_fst,
    OP_fadd:    (*CodeGen).translate_OP_fadd,
    OP_fsub:    (*CodeGen).translate_OP_fsub,
    OP_fmul:    (*CodeGen).translate_OP_fmul,
    OP_fdiv:    (*CodeGen).translate_OP_fdiv,
    OP_fsqrt:   (*CodeGen).translate_OP_fsqrt,
    OP_fmov:    (*CodeGen).translate_OP_fmov,
    OP_fabs:    (*CodeGen).translate_OP_fabs,
    OP_fneg:    (*CodeGen).translate_OP_fneg,
    OP_fcmp:    (*CodeGen).translate_OP_fcmp,
}

func (self *CodeGen) translate_OP_li(p *x86_64.Program, v *Instr) {
    if v.Rx != RZ {
        if v.Iv == 0 {
            p.XORL(self.r32(v.Rx), self.r32(v.Rx))
        } else {
            p.MOVL(int32(v.Iv), self.r32(v.Rx))
        }
    }
}

func (self *CodeGen) translate_OP_mov(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ && v.Rx != v.Ry {
        self.mov(p, v.Rx, self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_ldc(p *x86_64.Program, v *Instr) {
    if v.Rx != RZ {
        p.MOVL(Ptr(CTX, v.Off), self.r32(v.Rx))
    }
}

func (self *CodeGen) translate_OP_stc(p *x86_64.Program, v *Instr) {
    p.MOVL(self.opnd(v.Rx), Ptr(CTX, v.Off))
}

func (self *CodeGen) translate_OP_stci(p *x86_64.Program, v *Instr) {
    p.MOVL(int32(v.Iv), Ptr(CTX, v.Off))
}

func (self *CodeGen) translate_OP_stcx(p *x86_64.Program, v *Instr) {
    if v.Rx == RZ {
        p.MOVL(0, Ptr(CTX, v.Off))
    } else {
        p.MOVL(self.r32(v.Rx), EAX)
        p.SARL(31, EAX)
        p.MOVL(EAX, Ptr(CTX, v.Off))
    }
}

func (self *CodeGen) translate_OP_ltab(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.MOVQ(Ptr(CTX, v.Off), RAX)
        self.mov(p, v.Rx, ECX)
        p.MOVZBL(Sib(RAX, RCX, 1, 0), self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_add(p *x86_64.Program, v *Instr) {
    self.binop(p, v, p.ADDL)
}

func (self *CodeGen) translate_OP_sub(p *x86_64.Program, v *Instr) {
    self.binop(p, v, p.SUBL)
}

func (self *CodeGen) translate_OP_and(p *x86_64.Program, v *Instr) {
    self.binop(p, v, p.ANDL)
}

func (self *CodeGen) translate_OP_or(p *x86_64.Program, v *Instr) {
    self.binop(p, v, p.ORL)
}

func (self *CodeGen) translate_OP_xor(p *x86_64.Program, v *Instr) {
    self.binop(p, v, p.XORL)
}

func (self *CodeGen) translate_OP_nor(p *x86_64.Program, v *Instr) {
    if v.Rz != RZ {
        self.mov(p, v.Rx, EAX)
        p.ORL(self.opnd(v.Ry), EAX)
        p.NOTL(EAX)
        p.MOVL(EAX, self.r32(v.Rz))
    }
}

func (self *CodeGen) translate_OP_slt(p *x86_64.Program, v *Instr) {
    if v.Rz != RZ {
        p.CMPL(self.opnd(v.Ry), self.src(p, v.Rx, EAX))
        self.setcc(p, v.Rz, p.SETL)
    }
}

func (self *CodeGen) translate_OP_sltu(p *x86_64.Program, v *Instr) {
    if v.Rz != RZ {
        p.CMPL(self.opnd(v.Ry), self.src(p, v.Rx, EAX))
        self.setcc(p, v.Rz, p.SETB)
    }
}

func (self *CodeGen) translate_OP_sllv(p *x86_64.Program, v *Instr) {
    self.shiftv(p, v, p.SHLL)
}

func (self *CodeGen) translate_OP_srlv(p *x86_64.Program, v *Instr) {
    self.shiftv(p, v, p.SHRL)
}

func (self *CodeGen) translate_OP_srav(p *x86_64.Program, v *Instr) {
    self.shiftv(p, v, p.SARL)
}

func (self *CodeGen) translate_OP_addi(p *x86_64.Program, v *Instr) {
    self.binopi(p, v, p.ADDL)
}

func (self *CodeGen) translate_OP_andi(p *x86_64.Program, v *Instr) {
    self.binopi(p, v, p.ANDL)
}

func (self *CodeGen) translate_OP_ori(p *x86_64.Program, v *Instr) {
    self.binopi(p, v, p.ORL)
}

func (self *CodeGen) translate_OP_xori(p *x86_64.Program, v *Instr) {
    self.binopi(p, v, p.XORL)
}

func (self *CodeGen) translate_OP_slti(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.CMPL(int32(v.Iv), self.src(p, v.Rx, EAX))
        self.setcc(p, v.Ry, p.SETL)
    }
}

func (self *CodeGen) translate_OP_sltui(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.CMPL(int32(v.Iv), self.src(p, v.Rx, EAX))
        self.setcc(p, v.Ry, p.SETB)
    }
}

func (self *CodeGen) translate_OP_slli(p *x86_64.Program, v *Instr) {
    self.shifti(p, v, p.SHLL)
}

func (self *CodeGen) translate_OP_srli(p *x86_64.Program, v *Instr) {
    self.shifti(p, v, p.SHRL)
}

func (self *CodeGen) translate_OP_srai(p *x86_64.Program, v *Instr) {
    self.shifti(p, v, p.SARL)
}

func (self *CodeGen) mulres(p *x86_64.Program, v *Instr) {
    if v.Rz != RZ {
        p.MOVL(EAX, self.r32(v.Rz))
    }
    if v.Rw != RZ {
        p.SHRQ(32, RAX)
        p.MOVL(EAX, self.r32(v.Rw))
    }
}

func (self *CodeGen) translate_OP_mul(p *x86_64.Program, v *Instr) {
    self.mov(p, v.Rx, EAX)
    self.mov(p, v.Ry, ECX)
    p.MOVSLQ(EAX, RAX)
    p.MOVSLQ(ECX, RCX)
    p.IMULQ(RCX, RAX)
    self.mulres(p, v)
}

func (self *CodeGen) translate_OP_mulu(p *x86_64.Program, v *Instr) {
    self.mov(p, v.Rx, EAX)
    self.mov(p, v.Ry, ECX)
    p.IMULQ(RCX, RAX)
    self.mulres(p, v)
}

func (self *CodeGen) translate_OP_lb(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.MOVSBL(self.ram(v.Rx, v.Off), self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_lbu(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.MOVZBL(self.ram(v.Rx, v.Off), self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_lh(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.MOVSWL(self.ram(v.Rx, v.Off), self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_lhu(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.MOVZWL(self.ram(v.Rx, v.Off), self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_lw(p *x86_64.Program, v *Instr) {
    if v.Ry != RZ {
        p.MOVL(self.ram(v.Rx, v.Off), self.r32(v.Ry))
    }
}

func (self *CodeGen) translate_OP_sb(p *x86_64.Program, v *Instr) {
    if v.Ry == RZ {
        p.MOVB(0, self.ram(v.Rx, v.Off))
    } else {
        p.MOVB(x86_64.Register8(self.r(v.Ry)), self.ram(v.Rx, v.Off))
    }
}

func (self *CodeGen) translate_OP_sh(p *x86_64.Program, v *Instr) {
    if v.Ry == RZ {
        p.MOVW(0, self.ram(v.Rx, v.Off))
    } else {
        p.MOVW(x86_64.Register16(self.r(v.Ry)), self.ram(v.Rx, v.Off))
    }
}

func (self *CodeGen) translate_OP_sw(p *x86_64.Program, v *Instr) {
    p.MOVL(self.opnd(v.Ry), self.ram(v.Rx, v.Off))
}

func (self *CodeGen) branch(p *x86_64.Program, v *Instr, y interface{}, jcc func(v0 interface{}) *x86_64.Instruction) {
    p.CMPL(y, self.src(p, v.Rx, EAX))
    jcc(self.to(v.Br))
}

func (self *CodeGen) translate_OP_beq(p *x86_64.Program, v *Instr) {
    if v.Rx == v.Ry {
        p.JMP(self.to(v.Br))
    } else {
        self.branch(p, v, self.opnd(v.Ry), p.JE)
    }
}

func (self *CodeGen) translate_OP_bne(p *x86_64.Program, v *Instr) {
    if v.Rx != v.Ry {
        self.branch(p, v, self.opnd(v.Ry), p.JNE)
    }
}

func (self *CodeGen) translate_OP_blt(p *x86_64.Program, v *Instr) {
    if v.Rx != v.Ry {
        self.branch(p, v, self.opnd(v.Ry), p.JL)
    }
}

func (self *CodeGen) translate_OP_bge(p *x86_64.Program, v *Instr) {
    if v.Rx == v.Ry {
        p.JMP(self.to(v.Br))
    } else {
        self.branch(p, v, self.opnd(v.Ry), p.JGE)
    }
}

func (self *CodeGen) translate_OP_bltu(p *x86_64.Program, v *Instr) {
    if v.Rx != v.Ry {
        self.branch(p, v, self.opnd(v.Ry), p.JB)
    }
}

func (self *CodeGen) translate_OP_bgeu(p *x86_64.Program, v *Instr) {
    if v.Rx == v.Ry {
        p.JMP(self.to(v.Br))
    } else {
        self.branch(p, v, self.opnd(v.Ry), p.JAE)
    }
}

func (self *CodeGen) translate_OP_beqi(p *x86_64.Program, v *Instr) {
    self.branch(p, v, int32(v.Iv), p.JE)
}

func (self *CodeGen) translate_OP_bnei(p *x86_64.Program, v *Instr) {
    self.branch(p, v, int32(v.Iv), p.JNE)
}

func (self *CodeGen) translate_OP_blti(p *x86_64.Program, v *Instr) {
    self.branch(p, v, int32(v.Iv), p.JL)
}

func (self *CodeGen) translate_OP_bgei(p *x86_64.Program, v *Instr) {
    self.branch(p, v, int32(v.Iv), p.JGE)
}

func (self *CodeGen) translate_OP_bltui(p *x86_64.Program, v *Instr) {
    self.branch(p, v, int32(v.Iv), p.JB)
}

func (self *CodeGen) translate_OP_bgeui(p *x86_64.Program, v *Instr) {
    self.branch(p, v, int32(v.Iv), p.JAE)
}

func (self *CodeGen) translate_OP_bovfa(p *x86_64.Program, v *Instr) {
    self.mov(p, v.Rx, EAX)
    p.ADDL(self.opnd(v.Ry), EAX)
    p.JO(self.to(v.Br))
}

func (self *CodeGen) translate_OP_bovfs(p *x86_64.Program, v *Instr) {
    self.mov(p, v.Rx, EAX)
    p.SUBL(self.opnd(v.Ry), EAX)
    p.JO(self.to(v.Br))
}

func (self *CodeGen) translate_OP_jmp(p *x86_64.Program, v *Instr) {
    p.JMP(self.to(v.Br))
}

func (self *CodeGen) translate_OP_callout(p *x86_64.Program, v *Instr) {
    p.LEAQ(x86_64.Ref(self.to(v.Br)), RAX)
    p.MOVQ(RAX, Ptr(CTX, OffResume))
    p.MOVL(int32(v.Iv), Ptr(CTX, OffCallID))
    p.MOVL(ExitCall, EAX)
    p.RET()
}

func (self *CodeGen) translate_OP_link(p *x86_64.Program, v *Instr) {
    skip := self.ref(fmt.Sprintf("_link_%p", v))
    p.MOVQ(Ptr(CTX, OffLinks), RAX)
    p.MOVQ(Ptr(RAX, int32(v.Iv*8)), RAX)
    p.TESTQ(RAX, RAX)
    p.JZ(skip)
    p.JMPQ(RAX)
    p.Link(skip)
}

func (self *CodeGen) translate_OP_exit(p *x86_64.Program, v *Instr) {
    p.MOVL(int32(v.Iv), EAX)
    p.RET()
}

func (self *CodeGen) translate_OP_fld(p *x86_64.Program, v *Instr) {
    if v.Sz == 8 {
        p.MOVSD(Ptr(CTX, v.Off), self.x(v.Rx))
    } else {
        p.MOVSS(Ptr(CTX, v.Off), self.x(v.Rx))
    }
}

func (self *CodeGen) translate_OP_fst(p *x86_64.Program, v *Instr) {
    if v.Sz == 8 {
        p.MOVSD(self.x(v.Rx), Ptr(CTX, v.Off))
    } else {
        p.MOVSS(self.x(v.Rx), Ptr(CTX, v.Off))
    }
}

func (self *CodeGen) translate_OP_fadd(p *x86_64.Program, v *Instr) {
    self.fop(p, v, p.ADDSS, p.ADDSD)
}

func (self *CodeGen) translate_OP_fsub(p *x86_64.Program, v *Instr) {
    self.fop(p, v, p.SUBSS, p.SUBSD)
}

func (self *CodeGen) translate_OP_fmul(p *x86_64.Program, v *Instr) {
    self.fop(p, v, p.MULSS, p.MULSD)
}

func (self *CodeGen) translate_OP_fdiv(p *x86_64.Program, v *Instr) {
    self.fop(p, v, p.DIVSS, p.DIVSD)
}

func (self *CodeGen) translate_OP_fsqrt(p *x86_64.Program, v *Instr) {
    if v.Sz == 8 {
        p.SQRTSD(self.x(v.Rx), self.x(v.Ry))
    } else {
        p.SQRTSS(self.x(v.Rx), self.x(v.Ry))
    }
}

func (self *CodeGen) translate_OP_fmov(p *x86_64.Program, v *Instr) {
    if v.Rx != v.Ry {
        p.MOVAPS(self.x(v.Rx), self.x(v.Ry))
    }
}

func (self *CodeGen) translate_OP_fabs(p *x86_64.Program, v *Instr) {
    self.fmask(p, v, math.MaxInt32, math.MaxInt64, p.ANDPS)
}

func (self *CodeGen) translate_OP_fneg(p *x86_64.Program, v *Instr) {
    self.fmask(p, v, math.MinInt32, math.MinInt64, p.XORPS)
}

func (self *CodeGen) translate_OP_fcmp(p *x86_64.Program, v *Instr) {
    if v.Rz == RZ {
        return
    }

    /* outcome labels */
    un := self.ref(fmt.Sprintf("_fcmp_un_%p", v))
    lt := self.ref(fmt.Sprintf("_fcmp_lt_%p", v))
    eq := self.ref(fmt.Sprintf("_fcmp_eq_%p", v))
    ok := self.ref(fmt.Sprintf("_fcmp_ok_%p", v))

    /* compare x with y */
    if v.Sz == 8 {
        p.UCOMISD(self.x(v.Ry), self.x(v.Rx))
    } else {
        p.UCOMISS(self.x(v.Ry), self.x(v.Rx))
    }

    /* unordered sets every flag, so it is checked first */
    p.JP(un)
    p.JB(lt)
    p.JE(eq)
    p.XORL(EAX, EAX)
    p.JMP(ok)

    /* each outcome selects one condition bit */
    for _, c := range []struct {
        lb  *x86_64.Label
        bit int64
    }{
        {un, FC_UN},
        {lt, FC_LT},
        {eq, FC_EQ},
    } {
        p.Link(c.lb)
        if v.Iv&c.bit != 0 {
            p.MOVL(1, EAX)
        } else {
            p.XORL(EAX, EAX)
        }
        p.JMP(ok)
    }

    /* store the result */
    p.Link(ok)
    p.MOVL(EAX, self.r32(v.Rz))
}

// Assemble generates the native code of s, positioned at address 0. The
// code is position independent.
func Assemble(s Program) (ret []byte, err error) {
    defer func() {
        if v := recover(); v != nil {
            err = fmt.Errorf("%v", v)
        }
    }()
    ret = CreateCodeGen().Generate(s).AssembleAndFree(0)
    return
}
