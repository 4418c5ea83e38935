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
    `strconv`
    `strings`
)

// Upper bounds of the native encoding size of each instruction, in bytes.
// The budget is charged with these before anything is assembled.
var maxBytes = [...]int{
    OP_nop:     0,
    OP_li:      6,
    OP_mov:     6,
    OP_ldc:     7,
    OP_stc:     11,
    OP_stci:    11,
    OP_stcx:    16,
    OP_ltab:    20,
    OP_add:     12,
    OP_sub:     12,
    OP_and:     12,
    OP_or:      12,
    OP_xor:     12,
    OP_nor:     14,
    OP_slt:     20,
    OP_sltu:    20,
    OP_sllv:    16,
    OP_srlv:    16,
    OP_srav:    16,
    OP_addi:    16,
    OP_andi:    16,
    OP_ori:     16,
    OP_xori:    16,
    OP_slti:    20,
    OP_sltui:   20,
    OP_slli:    10,
    OP_srli:    10,
    OP_srai:    10,
    OP_mul:     32,
    OP_mulu:    24,
    OP_lb:      12,
    OP_lbu:     12,
    OP_lh:      12,
    OP_lhu:     12,
    OP_lw:      12,
    OP_sb:      12,
    OP_sh:      12,
    OP_sw:      12,
    OP_beq:     12,
    OP_bne:     12,
    OP_blt:     12,
    OP_bge:     12,
    OP_bltu:    12,
    OP_bgeu:    12,
    OP_beqi:    16,
    OP_bnei:    16,
    OP_blti:    16,
    OP_bgei:    16,
    OP_bltui:   16,
    OP_bgeui:   16,
    OP_bovfa:   18,
    OP_bovfs:   18,
    OP_jmp:     5,
    OP_callout: 32,
    OP_link:    28,
    OP_exit:    6,
    OP_fld:     10,
    OP_fst:     10,
    OP_fadd:    16,
    OP_fsub:    16,
    OP_fmul:    16,
    OP_fdiv:    16,
    OP_fsqrt:   8,
    OP_fmov:    8,
    OP_fabs:    28,
    OP_fneg:    28,
    OP_fcmp:    80,
}

// Builder assembles a host IR program with symbolic labels. A builder may
// carry a byte budget, once the budget runs out every further instruction
// is dropped and Exhausted reports true.
type Builder struct {
    i     int
    head  *Instr
    tail  *Instr
    bytes int
    limit int
    full  bool
    refs  map[string]*Instr
    pends map[string][]*Instr
}

func CreateBuilder() *Builder {
    return newBuilder()
}

// SetBudget limits the estimated native size of the program to n bytes, or
// removes the limit if n is negative.
func (self *Builder) SetBudget(n int) {
    self.limit = n
    self.full = n >= 0 && self.bytes > n
}

// Bytes is the estimated native size of the instructions added so far.
func (self *Builder) Bytes() int {
    return self.bytes
}

// Exhausted reports whether any instruction was dropped for the budget.
func (self *Builder) Exhausted() bool {
    return self.full
}

// Available is the remaining budget, or -1 if the builder is unlimited.
func (self *Builder) Available() int {
    if self.limit < 0 {
        return -1
    } else if self.full {
        return 0
    } else {
        return self.limit - self.bytes
    }
}

func (self *Builder) add(ins *Instr) *Instr {
    n := maxBytes[ins.Op]

    /* budget check, labels are always kept */
    if ins.Op != OP_nop && self.limit >= 0 {
        if self.full || self.bytes+n > self.limit {
            self.full = true
            return ins
        }
    }

    /* charge the budget */
    self.bytes += n
    self.push(ins)
    return ins
}

func (self *Builder) jmp(p *Instr, to string) *Instr {
    var ok bool
    var lb *Instr

    /* placeholder substitution */
    if strings.Contains(to, "{n}") {
        to = strings.ReplaceAll(to, "{n}", strconv.Itoa(self.i))
    }

    /* check for backward jumps */
    if lb, ok = self.refs[to]; !ok {
        self.pends[to] = append(self.pends[to], p)
    }

    /* add to instruction buffer */
    p.Br = lb
    return self.add(p)
}

func (self *Builder) push(ins *Instr) {
    if self.head == nil {
        self.head = ins
        self.tail = ins
    } else {
        self.tail.Ln = ins
        self.tail = ins
    }
}

// Mark starts a new scope for "{n}" placeholders in label names.
func (self *Builder) Mark() {
    self.i++
}

func (self *Builder) Label(to string) {
    var p *Instr
    var v []*Instr

    /* placeholder substitution */
    if strings.Contains(to, "{n}") {
        to = strings.ReplaceAll(to, "{n}", strconv.Itoa(self.i))
    }

    /* check for duplications */
    if _, ok := self.refs[to]; ok {
        panic("label " + to + " has already been linked")
    }

    /* get the pending links */
    p = self.NOP()
    v = self.pends[to]

    /* patch all the pending jumps */
    for _, q := range v {
        q.Br = p
    }

    /* mark the label as resolved */
    self.refs[to] = p
    delete(self.pends, to)
}

func (self *Builder) Build() (r Program) {
    var p *Instr
    var q *Instr

    /* check for unresolved labels */
    for key := range self.pends {
        panic("labels are not fully resolved: " + key)
    }

    /* adjust jumps to point at actual instructions */
    for p = self.head; p != nil; p = p.Ln {
        if p.isBranch() {
            for p.Br.Ln != nil && p.Br.Op == OP_nop {
                p.Br = p.Br.Ln
            }
        }
    }

    /* remove NOPs at the front */
    for self.head != nil && self.head.Op == OP_nop {
        self.head = self.head.Ln
    }

    /* no instructions left, the program was composed entirely by NOPs */
    if self.head == nil {
        self.tail = nil
        freeBuilder(self)
        return
    }

    /* remove all the NOPs, there should be no jumps pointing to any NOPs */
    for p = self.head; p != nil; p = p.Ln {
        for p.Ln != nil && p.Ln.Op == OP_nop {
            q = p.Ln
            p.Ln = q.Ln
            freeInstr(q)
        }
    }

    /* the Builder's life-time ends here */
    r = Program{Head: self.head, Size: self.bytes}
    freeBuilder(self)
    return
}

// Discard releases a builder whose program will never be built.
func (self *Builder) Discard() {
    for p := self.head; p != nil; {
        q := p.Ln
        freeInstr(p)
        p = q
    }
    freeBuilder(self)
}

func (self *Builder) NOP() *Instr {
    return self.add(newInstr(OP_nop))
}

func (self *Builder) LI(v int32, rx Reg) *Instr {
    return self.add(newInstr(OP_li).iv(int64(v)).rx(rx))
}

func (self *Builder) MOV(rx Reg, ry Reg) *Instr {
    return self.add(newInstr(OP_mov).rx(rx).ry(ry))
}

func (self *Builder) LDC(off int32, rx Reg) *Instr {
    return self.add(newInstr(OP_ldc).off(off).rx(rx))
}

func (self *Builder) STC(rx Reg, off int32) *Instr {
    return self.add(newInstr(OP_stc).rx(rx).off(off))
}

func (self *Builder) STCI(v int32, off int32) *Instr {
    return self.add(newInstr(OP_stci).iv(int64(v)).off(off))
}

func (self *Builder) STCX(rx Reg, off int32) *Instr {
    return self.add(newInstr(OP_stcx).rx(rx).off(off))
}

func (self *Builder) LTAB(off int32, rx Reg, ry Reg) *Instr {
    return self.add(newInstr(OP_ltab).off(off).rx(rx).ry(ry))
}

func (self *Builder) ADD(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_add).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SUB(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_sub).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) AND(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_and).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) OR(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_or).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) XOR(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_xor).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) NOR(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_nor).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SLT(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_slt).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SLTU(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_sltu).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SLLV(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_sllv).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SRLV(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_srlv).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) SRAV(rx Reg, ry Reg, rz Reg) *Instr {
    return self.add(newInstr(OP_srav).rx(rx).ry(ry).rz(rz))
}

func (self *Builder) ADDI(rx Reg, v int32, ry Reg) *Instr {
    return self.add(newInstr(OP_addi).rx(rx).iv(int64(v)).ry(ry))
}

func (self *Builder) ANDI(rx Reg, v int32, ry Reg) *Instr {
    return self.add(newInstr(OP_andi).rx(rx).iv(int64(v)).ry(ry))
}

func (self *Builder) ORI(rx Reg, v int32, ry Reg) *Instr {
    return self.add(newInstr(OP_ori).rx(rx).iv(int64(v)).ry(ry))
}

func (self *Builder) XORI(rx Reg, v int32, ry Reg) *Instr {
    return self.add(newInstr(OP_xori).rx(rx).iv(int64(v)).ry(ry))
}

func (self *Builder) SLTI(rx Reg, v int32, ry Reg) *Instr {
    return self.add(newInstr(OP_slti).rx(rx).iv(int64(v)).ry(ry))
}

func (self *Builder) SLTUI(rx Reg, v uint32, ry Reg) *Instr {
    return self.add(newInstr(OP_sltui).rx(rx).iv(int64(int32(v))).ry(ry))
}

func (self *Builder) SLLI(rx Reg, v uint32, ry Reg) *Instr {
    return self.add(newInstr(OP_slli).rx(rx).iv(int64(v & 31)).ry(ry))
}

func (self *Builder) SRLI(rx Reg, v uint32, ry Reg) *Instr {
    return self.add(newInstr(OP_srli).rx(rx).iv(int64(v & 31)).ry(ry))
}

func (self *Builder) SRAI(rx Reg, v uint32, ry Reg) *Instr {
    return self.add(newInstr(OP_srai).rx(rx).iv(int64(v & 31)).ry(ry))
}

func (self *Builder) MUL(rx Reg, ry Reg, lo Reg, hi Reg) *Instr {
    return self.add(newInstr(OP_mul).rx(rx).ry(ry).rz(lo).rw(hi))
}

func (self *Builder) MULU(rx Reg, ry Reg, lo Reg, hi Reg) *Instr {
    return self.add(newInstr(OP_mulu).rx(rx).ry(ry).rz(lo).rw(hi))
}

func (self *Builder) LB(rx Reg, off int32, ry Reg) *Instr {
    return self.add(newInstr(OP_lb).rx(rx).off(off).ry(ry))
}

func (self *Builder) LBU(rx Reg, off int32, ry Reg) *Instr {
    return self.add(newInstr(OP_lbu).rx(rx).off(off).ry(ry))
}

func (self *Builder) LH(rx Reg, off int32, ry Reg) *Instr {
    return self.add(newInstr(OP_lh).rx(rx).off(off).ry(ry))
}

func (self *Builder) LHU(rx Reg, off int32, ry Reg) *Instr {
    return self.add(newInstr(OP_lhu).rx(rx).off(off).ry(ry))
}

func (self *Builder) LW(rx Reg, off int32, ry Reg) *Instr {
    return self.add(newInstr(OP_lw).rx(rx).off(off).ry(ry))
}

func (self *Builder) SB(ry Reg, rx Reg, off int32) *Instr {
    return self.add(newInstr(OP_sb).ry(ry).rx(rx).off(off))
}

func (self *Builder) SH(ry Reg, rx Reg, off int32) *Instr {
    return self.add(newInstr(OP_sh).ry(ry).rx(rx).off(off))
}

func (self *Builder) SW(ry Reg, rx Reg, off int32) *Instr {
    return self.add(newInstr(OP_sw).ry(ry).rx(rx).off(off))
}

func (self *Builder) BEQ(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_beq).rx(rx).ry(ry), to)
}

func (self *Builder) BNE(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_bne).rx(rx).ry(ry), to)
}

func (self *Builder) BLT(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_blt).rx(rx).ry(ry), to)
}

func (self *Builder) BGE(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_bge).rx(rx).ry(ry), to)
}

func (self *Builder) BLTU(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_bltu).rx(rx).ry(ry), to)
}

func (self *Builder) BGEU(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_bgeu).rx(rx).ry(ry), to)
}

func (self *Builder) BEQI(rx Reg, v int32, to string) *Instr {
    return self.jmp(newInstr(OP_beqi).rx(rx).iv(int64(v)), to)
}

func (self *Builder) BNEI(rx Reg, v int32, to string) *Instr {
    return self.jmp(newInstr(OP_bnei).rx(rx).iv(int64(v)), to)
}

func (self *Builder) BLTI(rx Reg, v int32, to string) *Instr {
    return self.jmp(newInstr(OP_blti).rx(rx).iv(int64(v)), to)
}

func (self *Builder) BGEI(rx Reg, v int32, to string) *Instr {
    return self.jmp(newInstr(OP_bgei).rx(rx).iv(int64(v)), to)
}

func (self *Builder) BLTUI(rx Reg, v uint32, to string) *Instr {
    return self.jmp(newInstr(OP_bltui).rx(rx).iv(int64(int32(v))), to)
}

func (self *Builder) BGEUI(rx Reg, v uint32, to string) *Instr {
    return self.jmp(newInstr(OP_bgeui).rx(rx).iv(int64(int32(v))), to)
}

func (self *Builder) BOVFA(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_bovfa).rx(rx).ry(ry), to)
}

func (self *Builder) BOVFS(rx Reg, ry Reg, to string) *Instr {
    return self.jmp(newInstr(OP_bovfs).rx(rx).ry(ry), to)
}

func (self *Builder) JMP(to string) *Instr {
    return self.jmp(newInstr(OP_jmp), to)
}

// CALLOUT leaves the program with ExitCall and helper id. The host resumes
// the program at label to, with every allocatable register clobbered.
func (self *Builder) CALLOUT(id int, to string) *Instr {
    return self.jmp(newInstr(OP_callout).iv(int64(id)), to)
}

func (self *Builder) LINK(cell int) *Instr {
    return self.add(newInstr(OP_link).iv(int64(cell)))
}

func (self *Builder) EXIT(status int) *Instr {
    return self.add(newInstr(OP_exit).iv(int64(status)))
}

func (self *Builder) FLD(sz uint8, off int32, fx Reg) *Instr {
    return self.add(newInstr(OP_fld).sz(sz).off(off).rx(fx))
}

func (self *Builder) FST(sz uint8, fx Reg, off int32) *Instr {
    return self.add(newInstr(OP_fst).sz(sz).rx(fx).off(off))
}

func (self *Builder) FADD(sz uint8, fx Reg, fy Reg, fz Reg) *Instr {
    return self.add(newInstr(OP_fadd).sz(sz).rx(fx).ry(fy).rz(fz))
}

func (self *Builder) FSUB(sz uint8, fx Reg, fy Reg, fz Reg) *Instr {
    return self.add(newInstr(OP_fsub).sz(sz).rx(fx).ry(fy).rz(fz))
}

func (self *Builder) FMUL(sz uint8, fx Reg, fy Reg, fz Reg) *Instr {
    return self.add(newInstr(OP_fmul).sz(sz).rx(fx).ry(fy).rz(fz))
}

func (self *Builder) FDIV(sz uint8, fx Reg, fy Reg, fz Reg) *Instr {
    return self.add(newInstr(OP_fdiv).sz(sz).rx(fx).ry(fy).rz(fz))
}

func (self *Builder) FSQRT(sz uint8, fx Reg, fy Reg) *Instr {
    return self.add(newInstr(OP_fsqrt).sz(sz).rx(fx).ry(fy))
}

func (self *Builder) FMOV(sz uint8, fx Reg, fy Reg) *Instr {
    return self.add(newInstr(OP_fmov).sz(sz).rx(fx).ry(fy))
}

func (self *Builder) FABS(sz uint8, fx Reg, fy Reg) *Instr {
    return self.add(newInstr(OP_fabs).sz(sz).rx(fx).ry(fy))
}

func (self *Builder) FNEG(sz uint8, fx Reg, fy Reg) *Instr {
    return self.add(newInstr(OP_fneg).sz(sz).rx(fx).ry(fy))
}

func (self *Builder) FCMP(sz uint8, fx Reg, fy Reg, cond int, rz Reg) *Instr {
    return self.add(newInstr(OP_fcmp).sz(sz).rx(fx).ry(fy).iv(int64(cond & 7)).rz(rz))
}
