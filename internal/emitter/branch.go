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

package emitter

import (
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/regcache"
	"github.com/cloudwego/mipsjit/internal/trace"
	"github.com/pkg/errors"
)

// branch emits the branch at ops[i] together with its delay slot, and the
// exits of the trace.
func (self *Emitter) branch(ops []trace.Op, i int) error {
	op := &ops[i]
	pc := self.addr(i)
	self.cur, self.index, self.delay = op, i, false

	/* the host runs both the branch and its delay slot */
	if op.DelaySlotOmitted || (i+1 < len(ops) && ops[i+1].Boundary != trace.Continue) {
		self.c.StartOpcode()
		self.callout(HelperStep, op.Instr)
		self.c.EndOpcode()
		self.exitHost(i + 2)
		return nil
	}

	/* the delay slot must follow */
	if i+1 >= len(ops) || !ops[i+1].InDelaySlot {
		return errors.Wrapf(ErrUnsupported, "missing delay slot at %#08x", pc)
	}

	/* the branch and its delay slot form a single scope */
	self.c.StartOpcode()
	defer self.c.EndOpcode()

	/* the target of register jumps is read before the delay slot */
	ins := op.Instr
	dst := hir.RZ
	cond := hir.RZ

	/* evaluate the branch */
	switch {
	case ins.Op() == mips.OP_SPECIAL:
		dst = self.c.AllocTemp()
		self.p.MOV(self.c.AllocInLo(ins.Rs()), dst)
	case !ins.IsJump():
		cond = self.condition(ins)
	}

	/* the link register is written even when the branch is not taken */
	if r, ok := ins.Link(); ok && r != 0 {
		d := self.c.AllocOutExt(r, regcache.MEM_LO32_SEX)
		self.p.LI(int32(pc+8), d)
		self.c.SetConst(d, pc+8)
	}

	/* the delay slot may use every register the branch did not pin */
	for _, r := range self.busy() {
		if s := self.c.Slot(r); s.Kind != regcache.TEMP {
			self.c.Unpin(r)
		}
	}

	/* unconditional jumps */
	if ins.IsJump() {
		self.instr(&ops[i+1], i+1, true)
		self.retire(dst)
		if ins.Op() == mips.OP_SPECIAL {
			self.exitReg(dst, i+2)
		} else {
			self.exitDirect(ins.JumpTarget(pc), i+2, true)
		}
		return nil
	}

	/* likely branches skip the delay slot when not taken */
	if ins.IsLikely() {
		skip := self.label("skip")
		self.p.BEQI(cond, 0, skip)
		st := self.c.Snapshot()
		self.instr(&ops[i+1], i+1, true)
		self.retire(hir.RZ)
		self.exitDirect(ins.BranchTarget(pc), i+2, true)
		self.c.Restore(st)
		self.p.Label(skip)
		self.exitDirect(pc+8, i+1, true)
		return nil
	}

	/* ordinary branches always run the delay slot */
	nt := self.label("nt")
	self.instr(&ops[i+1], i+1, true)
	self.retire(cond)
	self.p.BEQI(cond, 0, nt)
	st := self.c.Snapshot()
	self.exitDirect(ins.BranchTarget(pc), i+2, true)
	self.c.Restore(st)
	self.p.Label(nt)
	self.exitDirect(pc+8, i+2, true)
	return nil
}

// retire releases the temporaries left by the delay slot, except keep.
func (self *Emitter) retire(keep hir.Reg) {
	for _, r := range self.c.Temps() {
		if r != keep {
			self.c.Drop(r)
		}
	}
}

func (self *Emitter) busy() (ret []hir.Reg) {
	for i := hir.Reg(0); i < hir.NumRegs; i++ {
		if self.c.Slot(i).Busy {
			ret = append(ret, i)
		}
	}
	return
}

// condition computes into a temporary a value that is non-zero exactly
// when the branch is taken.
func (self *Emitter) condition(op mips.Instr) hir.Reg {
	c := self.c
	p := self.p
	t := c.AllocTemp()

	/* BC1F, BC1T and their likely forms */
	if op.Op() == mips.OP_COP1 {
		p.ANDI(c.AllocIn32(machine.OffFCR31), machine.FCR31_C, t)
		if op.Rt()&1 == 0 {
			p.SLTUI(t, 1, t)
		}
		return t
	}

	/* two register compares */
	switch op.Op() {
	case mips.OP_BEQ, mips.OP_BEQL, mips.OP_BNE, mips.OP_BNEL:
		self.differ(op.Rs(), op.Rt(), t)
		if op.Op() == mips.OP_BEQ || op.Op() == mips.OP_BEQL {
			p.SLTUI(t, 1, t)
		}
		return t
	case mips.OP_BLEZ, mips.OP_BLEZL:
		self.lessThanOne(op.Rs(), t)
		return t
	case mips.OP_BGTZ, mips.OP_BGTZL:
		self.lessThanOne(op.Rs(), t)
		p.XORI(t, 1, t)
		return t
	}

	/* REGIMM sign tests */
	switch op.Rt() {
	case mips.RI_BLTZ, mips.RI_BLTZL, mips.RI_BLTZAL, mips.RI_BLTZALL:
		p.SRLI(self.sign(op.Rs()), 31, t)
	default:
		p.SRLI(self.sign(op.Rs()), 31, t)
		p.XORI(t, 1, t)
	}
	return t
}

// sign returns the register holding the sign bit of guest register r.
func (self *Emitter) sign(r int) hir.Reg {
	if self.is32(r) {
		return self.c.AllocInLo(r)
	} else {
		return self.c.AllocInHi(r)
	}
}

// differ sets t to a non-zero value when rs and rt differ.
func (self *Emitter) differ(rs int, rt int, t hir.Reg) {
	c := self.c
	p := self.p
	p.XOR(c.AllocInLo(rs), c.AllocInLo(rt), t)

	/* sign extended values differ in the low words if at all */
	if self.is32(rs) && self.is32(rt) {
		return
	}

	/* fold in the high words */
	u := c.AllocTemp()
	p.XOR(c.AllocInHi(rs), c.AllocInHi(rt), u)
	p.OR(t, u, t)
}

// lessThanOne sets t to 1 when r is less than or equal to zero.
func (self *Emitter) lessThanOne(r int, t hir.Reg) {
	if self.is32(r) {
		self.p.SLTI(self.c.AllocInLo(r), 1, t)
		return
	}

	/* full 64-bit compare */
	xh := self.c.AllocInHi(r)
	xl := self.c.AllocInLo(r)
	self.compare64(true, xh, xl, hir.RZ, self.c.AllocConst(1), t)
}
