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
    `unsafe`
)

// Registers hold this after a callout, so that programs relying on
// registers surviving a callout fail loudly.
const _Poison = 0xdeadbeef

// Emulator executes host IR programs directly. Ctx points at a structure
// that starts with a Header, Ram at the guest memory. Resolve maps the
// value found in a link cell back to the program it refers to.
type Emulator struct {
    PC      *Instr
    Gr      [16]uint32
    Fr      [NumFRegs]uint64
    Ctx     unsafe.Pointer
    Ram     unsafe.Pointer
    Ln      bool
    St      int
    Resolve func(entry uintptr) *Instr
}

func LoadProgram(p Program, ctx unsafe.Pointer, ram unsafe.Pointer) (e *Emulator) {
    e = newEmulator()
    e.PC = p.Head
    e.Ctx = ctx
    e.Ram = ram
    return
}

func (self *Emulator) Free() {
    freeEmulator(self)
}

var dispatchTab = [...]func(e *Emulator, p *Instr){
    OP_nop:     (*Emulator).emu_OP_nop,
    OP_li:      (*Emulator).emu_OP_li,
    OP_mov:     (*Emulator).emu_OP_mov,
    OP_ldc:     (*Emulator).emu_OP_ldc,
    OP_stc:     (*Emulator).emu_OP_stc,
    OP_stci:    (*Emulator).emu_OP_stci,
    OP_stcx:    (*Emulator).emu_OP_stcx,
    OP_ltab:    (*Emulator).emu_OP_ltab,
    OP_add:     (*Emulator).emu_OP_add,
    OP_sub:     (*Emulator).emu_OP_sub,
    OP_and:     (*Emulator).emu_OP_and,
    OP_or:      (*Emulator).emu_OP_or,
    OP_xor:     (*Emulator).emu_OP_xor,
    OP_nor:     (*Emulator).emu_OP_nor,
    OP_slt:     (*Emulator).emu_OP_slt,
    OP_sltu:    (*Emulator).emu_OP_sltu,
    OP_sllv:    (*Emulator).emu_OP_sllv,
    OP_srlv:    (*Emulator).emu_OP_srlv,
    OP_srav:    (*Emulator).emu_OP_srav,
    OP_addi:    (*Emulator).emu_OP_addi,
    OP_andi:    (*Emulator).emu_OP_andi,
    OP_ori:     (*Emulator).emu_OP_ori,
    OP_xori:    (*Emulator).emu_OP_xori,
    OP_slti:    (*Emulator).emu_OP_slti,
    OP_sltui:   (*Emulator).emu_OP_sltui,
    OP_slli:    (*Emulator).emu_OP_slli,
    OP_srli:    (*Emulator).emu_OP_srli,
    OP_srai:    (*Emulator).emu_OP_srai,
    OP_mul:     (*Emulator).emu_OP_mul,
    OP_mulu:    (*Emulator).emu_OP_mulu,
    OP_lb:      (*Emulator).emu_OP_lb,
    OP_lbu:     (*Emulator).emu_OP_lbu,
    OP_lh:      (*Emulator).emu_OP_lh,
    OP_lhu:     (*Emulator).emu_OP_lhu,
    OP_lw:      (*Emulator).emu_OP_lw,
    OP_sb:      (*Emulator).emu_OP_sb,
    OP_sh:      (*Emulator).emu_OP_sh,
    OP_sw:      (*Emulator).emu_OP_sw,
    OP_beq:     (*Emulator).emu_OP_beq,
    OP_bne:     (*Emulator).emu_OP_bne,
    OP_blt:     (*Emulator).emu_OP_blt,
    OP_bge:     (*Emulator).emu_OP_bge,
    OP_bltu:    (*Emulator).emu_OP_bltu,
    OP_bgeu:    (*Emulator).emu_OP_bgeu,
    OP_beqi:    (*Emulator).emu_OP_beqi,
    OP_bnei:    (*Emulator).emu_OP_bnei,
    OP_blti:    (*Emulator).emu_OP_blti,
    OP_bgei:    (*Emulator).emu_OP_bgei,
    OP_bltui:   (*Emulator).emu_OP_bltui,
    OP_bgeui:   (*Emulator).emu_OP_bgeui,
    OP_bovfa:   (*Emulator).emu_OP_bovfa,
    OP_bovfs:   (*Emulator).emu_OP_bovfs,
    OP_jmp:     (*Emulator).emu_OP_jmp,
    OP_callout: (*Emulator).emu_OP_callout,
    OP_link:    (*Emulator).emu_OP_link,
    OP_exit:    (*Emulator).emu_OP_exit,
    OP_fld:     (*Emulator).emu_OP_fld,
    OP_fst:     (*Emulator).emu_OP_fst,
    OP_fadd:    (*Emulator).emu_OP_fadd,
    OP_fsub:    (*Emulator).emu_OP_fsub,
    OP_fmul:    (*Emulator).emu_OP_fmul,
    OP_fdiv:    (*Emulator).emu_OP_fdiv,
    OP_fsqrt:   (*Emulator).emu_OP_fsqrt,
    OP_fmov:    (*Emulator).emu_OP_fmov,
    OP_fabs:    (*Emulator).emu_OP_fabs,
    OP_fneg:    (*Emulator).emu_OP_fneg,
    OP_fcmp:    (*Emulator).emu_OP_fcmp,
}

func (self *Emulator) cp(off int32) unsafe.Pointer {
    return unsafe.Add(self.Ctx, off)
}

func (self *Emulator) mp(rx Reg, off int32) unsafe.Pointer {
    return unsafe.Add(self.Ram, uintptr(self.Gr[rx])+uintptr(int64(off)))
}

func (self *Emulator) set(r Reg, v uint32) {
    if r != RZ {
        self.Gr[r] = v
    }
}

func (self *Emulator) jump(to *Instr) {
    self.PC = to
    self.Ln = false
}

func (self *Emulator) f32(r Reg) float32 {
    return math.Float32frombits(uint32(self.Fr[r]))
}

func (self *Emulator) f64(r Reg) float64 {
    return math.Float64frombits(self.Fr[r])
}

func (self *Emulator) fset(p *Instr, r Reg, v float64) {
    if p.Sz == 8 {
        self.Fr[r] = math.Float64bits(v)
    } else {
        self.Fr[r] = uint64(math.Float32bits(float32(v)))
    }
}

func (self *Emulator) fget(p *Instr, r Reg) float64 {
    if p.Sz == 8 {
        return self.f64(r)
    } else {
        return float64(self.f32(r))
    }
}

func b2u(v bool) uint32 {
    if v {
        return 1
    } else {
        return 0
    }
}

func (self *Emulator) emu_OP_nop(_ *Instr) {
    /* no operation */
}

func (self *Emulator) emu_OP_li(p *Instr) {
    self.set(p.Rx, uint32(p.Iv))
}

func (self *Emulator) emu_OP_mov(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx])
}

func (self *Emulator) emu_OP_ldc(p *Instr) {
    self.set(p.Rx, *(*uint32)(self.cp(p.Off)))
}

func (self *Emulator) emu_OP_stc(p *Instr) {
    *(*uint32)(self.cp(p.Off)) = self.Gr[p.Rx]
}

func (self *Emulator) emu_OP_stci(p *Instr) {
    *(*uint32)(self.cp(p.Off)) = uint32(p.Iv)
}

func (self *Emulator) emu_OP_stcx(p *Instr) {
    *(*uint32)(self.cp(p.Off)) = uint32(int32(self.Gr[p.Rx]) >> 31)
}

func (self *Emulator) emu_OP_ltab(p *Instr) {
    tab := *(*unsafe.Pointer)(self.cp(p.Off))
    self.set(p.Ry, uint32(*(*uint8)(unsafe.Add(tab, uintptr(self.Gr[p.Rx])))))
}

func (self *Emulator) emu_OP_add(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]+self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_sub(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]-self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_and(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]&self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_or(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]|self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_xor(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]^self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_nor(p *Instr) {
    self.set(p.Rz, ^(self.Gr[p.Rx] | self.Gr[p.Ry]))
}

func (self *Emulator) emu_OP_slt(p *Instr) {
    self.set(p.Rz, b2u(int32(self.Gr[p.Rx]) < int32(self.Gr[p.Ry])))
}

func (self *Emulator) emu_OP_sltu(p *Instr) {
    self.set(p.Rz, b2u(self.Gr[p.Rx] < self.Gr[p.Ry]))
}

func (self *Emulator) emu_OP_sllv(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]<<(self.Gr[p.Ry]&31))
}

func (self *Emulator) emu_OP_srlv(p *Instr) {
    self.set(p.Rz, self.Gr[p.Rx]>>(self.Gr[p.Ry]&31))
}

func (self *Emulator) emu_OP_srav(p *Instr) {
    self.set(p.Rz, uint32(int32(self.Gr[p.Rx])>>(self.Gr[p.Ry]&31)))
}

func (self *Emulator) emu_OP_addi(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx]+uint32(p.Iv))
}

func (self *Emulator) emu_OP_andi(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx]&uint32(p.Iv))
}

func (self *Emulator) emu_OP_ori(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx]|uint32(p.Iv))
}

func (self *Emulator) emu_OP_xori(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx]^uint32(p.Iv))
}

func (self *Emulator) emu_OP_slti(p *Instr) {
    self.set(p.Ry, b2u(int32(self.Gr[p.Rx]) < int32(p.Iv)))
}

func (self *Emulator) emu_OP_sltui(p *Instr) {
    self.set(p.Ry, b2u(self.Gr[p.Rx] < uint32(p.Iv)))
}

func (self *Emulator) emu_OP_slli(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx]<<uint(p.Iv))
}

func (self *Emulator) emu_OP_srli(p *Instr) {
    self.set(p.Ry, self.Gr[p.Rx]>>uint(p.Iv))
}

func (self *Emulator) emu_OP_srai(p *Instr) {
    self.set(p.Ry, uint32(int32(self.Gr[p.Rx])>>uint(p.Iv)))
}

func (self *Emulator) emu_OP_mul(p *Instr) {
    v := uint64(int64(int32(self.Gr[p.Rx])) * int64(int32(self.Gr[p.Ry])))
    self.set(p.Rz, uint32(v))
    self.set(p.Rw, uint32(v>>32))
}

func (self *Emulator) emu_OP_mulu(p *Instr) {
    v := uint64(self.Gr[p.Rx]) * uint64(self.Gr[p.Ry])
    self.set(p.Rz, uint32(v))
    self.set(p.Rw, uint32(v>>32))
}

func (self *Emulator) emu_OP_lb(p *Instr) {
    self.set(p.Ry, uint32(int32(*(*int8)(self.mp(p.Rx, p.Off)))))
}

func (self *Emulator) emu_OP_lbu(p *Instr) {
    self.set(p.Ry, uint32(*(*uint8)(self.mp(p.Rx, p.Off))))
}

func (self *Emulator) emu_OP_lh(p *Instr) {
    self.set(p.Ry, uint32(int32(*(*int16)(self.mp(p.Rx, p.Off)))))
}

func (self *Emulator) emu_OP_lhu(p *Instr) {
    self.set(p.Ry, uint32(*(*uint16)(self.mp(p.Rx, p.Off))))
}

func (self *Emulator) emu_OP_lw(p *Instr) {
    self.set(p.Ry, *(*uint32)(self.mp(p.Rx, p.Off)))
}

func (self *Emulator) emu_OP_sb(p *Instr) {
    *(*uint8)(self.mp(p.Rx, p.Off)) = uint8(self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_sh(p *Instr) {
    *(*uint16)(self.mp(p.Rx, p.Off)) = uint16(self.Gr[p.Ry])
}

func (self *Emulator) emu_OP_sw(p *Instr) {
    *(*uint32)(self.mp(p.Rx, p.Off)) = self.Gr[p.Ry]
}

func (self *Emulator) emu_OP_beq(p *Instr) {
    if self.Gr[p.Rx] == self.Gr[p.Ry] {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bne(p *Instr) {
    if self.Gr[p.Rx] != self.Gr[p.Ry] {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_blt(p *Instr) {
    if int32(self.Gr[p.Rx]) < int32(self.Gr[p.Ry]) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bge(p *Instr) {
    if int32(self.Gr[p.Rx]) >= int32(self.Gr[p.Ry]) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bltu(p *Instr) {
    if self.Gr[p.Rx] < self.Gr[p.Ry] {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bgeu(p *Instr) {
    if self.Gr[p.Rx] >= self.Gr[p.Ry] {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_beqi(p *Instr) {
    if self.Gr[p.Rx] == uint32(p.Iv) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bnei(p *Instr) {
    if self.Gr[p.Rx] != uint32(p.Iv) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_blti(p *Instr) {
    if int32(self.Gr[p.Rx]) < int32(p.Iv) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bgei(p *Instr) {
    if int32(self.Gr[p.Rx]) >= int32(p.Iv) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bltui(p *Instr) {
    if self.Gr[p.Rx] < uint32(p.Iv) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bgeui(p *Instr) {
    if self.Gr[p.Rx] >= uint32(p.Iv) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bovfa(p *Instr) {
    x := int32(self.Gr[p.Rx])
    y := int32(self.Gr[p.Ry])
    if r := x + y; (x >= 0) == (y >= 0) && (r >= 0) != (x >= 0) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_bovfs(p *Instr) {
    x := int32(self.Gr[p.Rx])
    y := int32(self.Gr[p.Ry])
    if r := x - y; (x >= 0) != (y >= 0) && (r >= 0) != (x >= 0) {
        self.jump(p.Br)
    }
}

func (self *Emulator) emu_OP_jmp(p *Instr) {
    self.jump(p.Br)
}

func (self *Emulator) emu_OP_callout(p *Instr) {
    (*Header)(self.Ctx).CallID = uint32(p.Iv)
    (*Header)(self.Ctx).Resume = 0

    /* allocatable registers do not survive a callout */
    for i := Reg(0); i < NumRegs; i++ {
        self.Gr[i] = _Poison
    }

    /* stop here, continue from the resume label */
    self.St = ExitCall
    self.jump(p.Br)
}

func (self *Emulator) emu_OP_link(p *Instr) {
    links := (*Header)(self.Ctx).Links
    entry := *(*uintptr)(unsafe.Pointer(links + uintptr(p.Iv)*8))

    /* an empty cell falls through */
    if entry == 0 {
        return
    }

    /* resolve the linked program */
    if self.Resolve == nil {
        panic("link: no resolver installed")
    } else if to := self.Resolve(entry); to == nil {
        panic(fmt.Sprintf("link: cell %d refers to a dead trace: %#x", p.Iv, entry))
    } else {
        self.jump(to)
    }
}

func (self *Emulator) emu_OP_exit(p *Instr) {
    self.St = int(p.Iv)
    self.PC = nil
    self.Ln = false
}

func (self *Emulator) emu_OP_fld(p *Instr) {
    if p.Sz == 8 {
        self.Fr[p.Rx] = *(*uint64)(self.cp(p.Off))
    } else {
        self.Fr[p.Rx] = uint64(*(*uint32)(self.cp(p.Off)))
    }
}

func (self *Emulator) emu_OP_fst(p *Instr) {
    if p.Sz == 8 {
        *(*uint64)(self.cp(p.Off)) = self.Fr[p.Rx]
    } else {
        *(*uint32)(self.cp(p.Off)) = uint32(self.Fr[p.Rx])
    }
}

func (self *Emulator) emu_OP_fadd(p *Instr) {
    if p.Sz == 8 {
        self.fset(p, p.Rz, self.f64(p.Rx)+self.f64(p.Ry))
    } else {
        self.fset(p, p.Rz, float64(self.f32(p.Rx)+self.f32(p.Ry)))
    }
}

func (self *Emulator) emu_OP_fsub(p *Instr) {
    if p.Sz == 8 {
        self.fset(p, p.Rz, self.f64(p.Rx)-self.f64(p.Ry))
    } else {
        self.fset(p, p.Rz, float64(self.f32(p.Rx)-self.f32(p.Ry)))
    }
}

func (self *Emulator) emu_OP_fmul(p *Instr) {
    if p.Sz == 8 {
        self.fset(p, p.Rz, self.f64(p.Rx)*self.f64(p.Ry))
    } else {
        self.fset(p, p.Rz, float64(self.f32(p.Rx)*self.f32(p.Ry)))
    }
}

func (self *Emulator) emu_OP_fdiv(p *Instr) {
    if p.Sz == 8 {
        self.fset(p, p.Rz, self.f64(p.Rx)/self.f64(p.Ry))
    } else {
        self.fset(p, p.Rz, float64(self.f32(p.Rx)/self.f32(p.Ry)))
    }
}

func (self *Emulator) emu_OP_fsqrt(p *Instr) {
    self.fset(p, p.Ry, math.Sqrt(self.fget(p, p.Rx)))
}

func (self *Emulator) emu_OP_fmov(p *Instr) {
    self.Fr[p.Ry] = self.Fr[p.Rx]
}

func (self *Emulator) emu_OP_fabs(p *Instr) {
    if p.Sz == 8 {
        self.Fr[p.Ry] = self.Fr[p.Rx] &^ (1 << 63)
    } else {
        self.Fr[p.Ry] = uint64(uint32(self.Fr[p.Rx]) &^ (1 << 31))
    }
}

func (self *Emulator) emu_OP_fneg(p *Instr) {
    if p.Sz == 8 {
        self.Fr[p.Ry] = self.Fr[p.Rx] ^ (1 << 63)
    } else {
        self.Fr[p.Ry] = uint64(uint32(self.Fr[p.Rx]) ^ (1 << 31))
    }
}

func (self *Emulator) emu_OP_fcmp(p *Instr) {
    x := self.fget(p, p.Rx)
    y := self.fget(p, p.Ry)
    un := math.IsNaN(x) || math.IsNaN(y)
    self.set(p.Rz, b2u((p.Iv&FC_UN != 0 && un) || (p.Iv&FC_EQ != 0 && x == y) || (p.Iv&FC_LT != 0 && x < y)))
}

// Run executes until the program exits or calls out, and returns the exit
// status. After ExitCall the emulator resumes where it stopped on the next
// call to Run.
func (self *Emulator) Run() int {
    var ip *Instr
    var fn func(e *Emulator, p *Instr)

    /* reset the status */
    self.St = ExitNext

    /* run until end */
    for self.PC != nil {
        ip = self.PC
        fn = dispatchTab[ip.Op]

        /* move cold path outside of the loop */
        if fn == nil {
            break
        }

        /* writes to the zero register are discarded */
        self.Ln = true
        self.Gr[RZ] = 0

        /* execute and advance the PC if needed */
        if fn(self, ip); self.Ln {
            self.PC = ip.Ln
        }

        /* callouts suspend the program */
        if ip.Op == OP_callout {
            return self.St
        }
    }

    /* check for exceptions */
    if self.PC != nil {
        panic(fmt.Sprintf("illegal OpCode: %#02x", self.PC.Op))
    } else {
        return self.St
    }
}
