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

// Package regcache maps 64-bit guest registers onto the 32-bit host
// registers of a trace program while it is being emitted.
package regcache

import (
	"fmt"

	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/machine"
)

type Kind uint8

const (
	UNUSED Kind = iota
	TEMP
	MEM_HI32
	MEM_LO32
	MEM_LO32_SEX
	MEM_LO32_ZEX
	MEM_LO32_OEX
	MEM_32
)

var kindNames = [...]string{
	UNUSED:       "unused",
	TEMP:         "temp",
	MEM_HI32:     "hi32",
	MEM_LO32:     "lo32",
	MEM_LO32_SEX: "lo32.sex",
	MEM_LO32_ZEX: "lo32.zex",
	MEM_LO32_OEX: "lo32.oex",
	MEM_32:       "mem32",
}

func (self Kind) String() string {
	if int(self) < len(kindNames) {
		return kindNames[self]
	} else {
		return fmt.Sprintf("kind(%d)", self)
	}
}

// IsLo reports whether the slot holds the low word of a guest register.
func (self Kind) IsLo() bool {
	return self >= MEM_LO32 && self <= MEM_LO32_OEX
}

// IsExt reports whether the high word of the register is implied by the
// slot rather than held anywhere.
func (self Kind) IsExt() bool {
	return self >= MEM_LO32_SEX && self <= MEM_LO32_OEX
}

// Slot is the state of one host register.
type Slot struct {
	Kind  Kind
	Guest int
	Off   int32
	Dirty bool
	Const bool
	Value uint32
	Stamp uint64
	Busy  bool
}

// allocOrder lists the host registers in allocation preference. The first
// five are callee-saved in the native backend.
var allocOrder = [hir.NumRegs]hir.Reg{
	hir.H0, hir.H1, hir.H2, hir.H3, hir.H4, hir.H5, hir.H6, hir.H7, hir.H8,
}

// State is a copy of the cache, taken where a slow path branches off.
type State struct {
	Slots [hir.NumRegs]Slot
	Float [hir.NumFRegs]FSlot
}

// Cache is the register cache of one trace.
type Cache struct {
	p     *hir.Builder
	clock uint64
	depth int
	slots [hir.NumRegs]Slot
	float [hir.NumFRegs]FSlot
}

func CreateCache(p *hir.Builder) *Cache {
	return &Cache{p: p}
}

// Builder returns the program builder the cache emits into.
func (self *Cache) Builder() *hir.Builder {
	return self.p
}

// Exhausted reports whether the code buffer budget has run out, after
// which every emission is dropped.
func (self *Cache) Exhausted() bool {
	return self.p.Exhausted()
}

func (self *Cache) Slot(r hir.Reg) Slot {
	return self.slots[r]
}

func (self *Cache) Snapshot() State {
	return State{Slots: self.slots, Float: self.float}
}

func (self *Cache) Restore(s State) {
	self.slots = s.Slots
	self.float = s.Float
}

/** Instruction Scopes **/

// StartOpcode opens the scope of one guest instruction. Scopes nest, so a
// branch and its delay slot allocate as a single instruction.
func (self *Cache) StartOpcode() {
	self.depth++
}

// EndOpcode closes a scope. Leaving the outermost scope releases the
// temporaries and unpins every register.
func (self *Cache) EndOpcode() {
	if self.depth--; self.depth < 0 {
		panic("regcache: unbalanced EndOpcode")
	}

	/* still inside another instruction */
	if self.depth != 0 {
		return
	}

	/* temporaries die with the instruction */
	for i := range self.slots {
		if self.slots[i].Busy = false; self.slots[i].Kind == TEMP {
			self.slots[i] = Slot{}
		}
	}

	/* so do the FP pins */
	for i := range self.float {
		self.float[i].Busy = false
	}
}

func (self *Cache) touch(r hir.Reg) hir.Reg {
	self.clock++
	self.slots[r].Stamp = self.clock
	self.slots[r].Busy = true
	return r
}

/** Slot Lookup and Eviction **/

func (self *Cache) findLo(g int) (hir.Reg, bool) {
	for i, s := range self.slots {
		if s.Kind.IsLo() && s.Guest == g {
			return hir.Reg(i), true
		}
	}
	return 0, false
}

func (self *Cache) findHi(g int) (hir.Reg, bool) {
	for i, s := range self.slots {
		if s.Kind == MEM_HI32 && s.Guest == g {
			return hir.Reg(i), true
		}
	}
	return 0, false
}

func (self *Cache) find32(off int32) (hir.Reg, bool) {
	for i, s := range self.slots {
		if s.Kind == MEM_32 && s.Off == off {
			return hir.Reg(i), true
		}
	}
	return 0, false
}

// alloc picks a free register, evicting the least recently used one that
// the current instruction does not use.
func (self *Cache) alloc() hir.Reg {
	victim := -1

	/* free registers first */
	for _, r := range allocOrder {
		if self.slots[r].Kind == UNUSED {
			return r
		}
	}

	/* otherwise the oldest unpinned one, temporaries have no home to spill to */
	for _, r := range allocOrder {
		if s := self.slots[r]; !s.Busy && s.Kind != TEMP && (victim < 0 || s.Stamp < self.slots[victim].Stamp) {
			victim = int(r)
		}
	}

	/* every register is used by this instruction */
	if victim < 0 {
		panic("regcache: out of host registers")
	}

	/* spill the victim */
	self.Free(hir.Reg(victim))
	return hir.Reg(victim)
}

func (self *Cache) claim(s Slot) hir.Reg {
	r := self.alloc()
	self.slots[r] = s
	return self.touch(r)
}

/** Write Back **/

func (self *Cache) writeback(r hir.Reg) {
	s := &self.slots[r]
	if !s.Dirty {
		return
	}

	/* store the slot to its backing memory */
	switch s.Kind {
	case MEM_HI32, MEM_LO32, MEM_32:
		self.p.STC(r, s.Off)
	case MEM_LO32_SEX:
		self.p.STC(r, s.Off)
		self.p.STCX(r, machine.GPRHi(s.Guest))
	case MEM_LO32_ZEX:
		self.p.STC(r, s.Off)
		self.p.STCI(0, machine.GPRHi(s.Guest))
	case MEM_LO32_OEX:
		self.p.STC(r, s.Off)
		self.p.STCI(-1, machine.GPRHi(s.Guest))
	}

	/* the slot now mirrors memory */
	s.Dirty = false
}

// Free writes r back if needed and releases it.
func (self *Cache) Free(r hir.Reg) {
	if r < hir.NumRegs {
		self.writeback(r)
		self.slots[r] = Slot{}
	}
}

// Drop releases r without writing it back.
func (self *Cache) Drop(r hir.Reg) {
	if r < hir.NumRegs {
		self.slots[r] = Slot{}
	}
}

// FlushAll writes every dirty register back, then releases every slot that
// does not carry a constant.
func (self *Cache) FlushAll() {
	self.FlushAllExcept(0)
}

// FlushAllExcept is FlushAll for every register not in mask, a bit set
// indexed by host register.
func (self *Cache) FlushAllExcept(mask uint32) {
	self.flushPass(mask, false)
	self.flushPass(mask, true)
	self.FlushFloat()

	/* clean slots without a constant are cheap to reload */
	for i := range self.slots {
		if mask&(1<<i) == 0 && self.slots[i].Kind != TEMP && !self.slots[i].Const {
			self.slots[i] = Slot{}
		}
	}
}

// flushPass stores plain slots first, and extension-derived slots last.
func (self *Cache) flushPass(mask uint32, ext bool) {
	for i := range self.slots {
		if mask&(1<<i) == 0 && self.slots[i].Kind.IsExt() == ext {
			self.writeback(hir.Reg(i))
		}
	}
}

// Invalidate forgets every mapping, dirty or not. Used after host code has
// clobbered the registers.
func (self *Cache) Invalidate() {
	self.slots = [hir.NumRegs]Slot{}
	self.float = [hir.NumFRegs]FSlot{}
}

// DropAll forgets every guest mapping but keeps the temporaries. Used after
// host code may have changed any guest register behind the cache's back.
func (self *Cache) DropAll() {
	for i := range self.slots {
		if self.slots[i].Kind != TEMP {
			self.slots[i] = Slot{}
		}
	}
	self.float = [hir.NumFRegs]FSlot{}
}

// Temps returns the registers holding temporaries.
func (self *Cache) Temps() (ret []hir.Reg) {
	for i, s := range self.slots {
		if s.Kind == TEMP {
			ret = append(ret, hir.Reg(i))
		}
	}
	return
}

// Clean reports whether nothing needs to be written back.
func (self *Cache) Clean() bool {
	for _, s := range self.slots {
		if s.Dirty {
			return false
		}
	}
	for _, s := range self.float {
		if s.Dirty {
			return false
		}
	}
	return true
}

// Live returns the registers that hold a value, as a bit set.
func (self *Cache) Live() (ret uint32) {
	for i, s := range self.slots {
		if s.Kind != UNUSED {
			ret |= 1 << i
		}
	}
	return
}

/** Guest Register Allocation **/

// AllocInLo maps the low word of guest register g for reading.
func (self *Cache) AllocInLo(g int) hir.Reg {
	if g == 0 {
		return hir.RZ
	}

	/* already cached */
	if r, ok := self.findLo(g); ok {
		return self.touch(r)
	}

	/* load it */
	r := self.claim(Slot{Kind: MEM_LO32, Guest: g, Off: machine.GPRLo(g)})
	self.p.LDC(machine.GPRLo(g), r)
	return r
}

// AllocInHi maps the high word of guest register g for reading.
func (self *Cache) AllocInHi(g int) hir.Reg {
	if g == 0 {
		return hir.RZ
	}

	/* already cached */
	if r, ok := self.findHi(g); ok {
		return self.touch(r)
	}

	/* derive it from an extension-tagged low word */
	if lo, ok := self.findLo(g); ok && self.slots[lo].Kind.IsExt() {
		return self.materialize(g, lo)
	}

	/* load it */
	r := self.claim(Slot{Kind: MEM_HI32, Guest: g, Off: machine.GPRHi(g)})
	self.p.LDC(machine.GPRHi(g), r)
	return r
}

// materialize moves the implied high word of an extension-tagged slot into
// a register of its own. The low slot becomes a plain one.
func (self *Cache) materialize(g int, lo hir.Reg) hir.Reg {
	self.touch(lo)
	kind := self.slots[lo].Kind
	dirty := self.slots[lo].Dirty
	r := self.claim(Slot{Kind: MEM_HI32, Guest: g, Off: machine.GPRHi(g), Dirty: dirty})

	/* compute the high word */
	switch kind {
	case MEM_LO32_SEX:
		self.p.SRAI(lo, 31, r)
	case MEM_LO32_ZEX:
		self.p.LI(0, r)
		self.slots[r].Const, self.slots[r].Value = true, 0
	default:
		self.p.LI(-1, r)
		self.slots[r].Const, self.slots[r].Value = true, 0xffffffff
	}

	/* the high word now has a home of its own */
	self.slots[lo].Kind = MEM_LO32
	return r
}

// AllocOutLo maps the low word of g for writing, leaving the high word as
// it is.
func (self *Cache) AllocOutLo(g int) hir.Reg {
	if g == 0 {
		return hir.RZ
	}

	/* a dirty extension must survive the low word being replaced */
	if r, ok := self.findLo(g); ok {
		if self.slots[r].Kind.IsExt() {
			if _, hi := self.findHi(g); !hi && self.slots[r].Dirty {
				self.materialize(g, r)
			}
		}
		return self.dirty(r, MEM_LO32)
	}

	/* a new slot, nothing to load */
	return self.claim(Slot{Kind: MEM_LO32, Guest: g, Off: machine.GPRLo(g), Dirty: true})
}

// AllocOutHi maps the high word of g for writing.
func (self *Cache) AllocOutHi(g int) hir.Reg {
	if g == 0 {
		return hir.RZ
	}

	/* the low word stops implying the high word */
	if lo, ok := self.findLo(g); ok && self.slots[lo].Kind.IsExt() {
		self.slots[lo].Kind = MEM_LO32
	}

	/* reuse or create the slot */
	if r, ok := self.findHi(g); ok {
		return self.dirty(r, MEM_HI32)
	} else {
		return self.claim(Slot{Kind: MEM_HI32, Guest: g, Off: machine.GPRHi(g), Dirty: true})
	}
}

// AllocOutExt maps g for writing a 32-bit result whose high word is implied
// by kind, one of MEM_LO32_SEX, MEM_LO32_ZEX or MEM_LO32_OEX.
func (self *Cache) AllocOutExt(g int, kind Kind) hir.Reg {
	if !kind.IsExt() {
		panic("regcache: not an extension kind: " + kind.String())
	}

	/* writes to r0 are discarded */
	if g == 0 {
		return hir.RZ
	}

	/* any cached high word is superseded */
	if hi, ok := self.findHi(g); ok {
		self.Drop(hi)
	}

	/* reuse or create the slot */
	if r, ok := self.findLo(g); ok {
		return self.dirty(r, kind)
	} else {
		return self.claim(Slot{Kind: kind, Guest: g, Off: machine.GPRLo(g), Dirty: true})
	}
}

func (self *Cache) dirty(r hir.Reg, kind Kind) hir.Reg {
	s := &self.slots[r]
	s.Kind = kind
	s.Dirty = true
	s.Const = false
	return self.touch(r)
}

// AllocIn32 maps a 32-bit context word for reading.
func (self *Cache) AllocIn32(off int32) hir.Reg {
	if r, ok := self.find32(off); ok {
		return self.touch(r)
	}

	/* load it */
	r := self.claim(Slot{Kind: MEM_32, Guest: -1, Off: off})
	self.p.LDC(off, r)
	return r
}

// AllocOut32 maps a 32-bit context word for writing.
func (self *Cache) AllocOut32(off int32) hir.Reg {
	if r, ok := self.find32(off); ok {
		return self.dirty(r, MEM_32)
	} else {
		return self.claim(Slot{Kind: MEM_32, Guest: -1, Off: off, Dirty: true})
	}
}

// AllocTemp returns a scratch register that lives until the end of the
// current instruction.
func (self *Cache) AllocTemp() hir.Reg {
	return self.claim(Slot{Kind: TEMP, Guest: -1})
}

// AllocConst returns a register holding v, reusing one that already does.
func (self *Cache) AllocConst(v uint32) hir.Reg {
	if v == 0 {
		return hir.RZ
	}

	/* look for the literal */
	for i, s := range self.slots {
		if s.Const && s.Value == v {
			return self.touch(hir.Reg(i))
		}
	}

	/* load it into a temporary */
	r := self.AllocTemp()
	self.p.LI(int32(v), r)
	self.SetConst(r, v)
	return r
}

// SetConst records that r holds v. Writing r through the cache clears it.
func (self *Cache) SetConst(r hir.Reg, v uint32) {
	if r < hir.NumRegs {
		self.slots[r].Const = true
		self.slots[r].Value = v
	}
}

// Unpin lets r be evicted again within the current instruction.
func (self *Cache) Unpin(r hir.Reg) {
	if r < hir.NumRegs {
		self.slots[r].Busy = false
	}
}

// Invalidate32 forgets a cached context word that host code is about to
// modify behind the cache's back, writing it back first.
func (self *Cache) Invalidate32(off int32) {
	if r, ok := self.find32(off); ok {
		self.Free(r)
	}
}

// InvalidateGuest writes back and forgets every slot of guest register g.
func (self *Cache) InvalidateGuest(g int) {
	if r, ok := self.findHi(g); ok {
		self.Free(r)
	}
	if r, ok := self.findLo(g); ok {
		self.Free(r)
	}
}
