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

package machine

import (
	"github.com/cloudwego/mipsjit/internal/mips"
)

const (
	NumTLB = 32
)

// EntryLo bits.
const (
	TLB_G = 1 << 0
	TLB_V = 1 << 1
	TLB_D = 1 << 2
)

// TLBEntry is one joint TLB entry as written by TLBWI/TLBWR.
type TLBEntry struct {
	PageMask uint32
	EntryHi  uint32
	EntryLo0 uint32
	EntryLo1 uint32
}

func (self *TLBEntry) global() bool {
	return self.EntryLo0&self.EntryLo1&TLB_G != 0
}

// Range returns the virtual address range [lo, hi) covered by the pair of
// pages of this entry.
func (self TLBEntry) Range() (lo uint32, hi uint32) {
	mask := self.PageMask | 0x1fff
	lo = self.EntryHi &^ mask
	return lo, lo + mask + 1
}

// Valid reports whether either page of the entry is mapped.
func (self TLBEntry) Valid() bool {
	return (self.EntryLo0|self.EntryLo1)&TLB_V != 0
}

// match reports whether vaddr falls in the pair of pages of this entry, and
// if so which of the two.
func (self *TLBEntry) match(vaddr uint32, asid uint32) (odd bool, ok bool) {
	mask := self.PageMask | 0x1fff
	vpn2 := self.EntryHi &^ mask

	/* VPN2 and ASID must both match */
	if vaddr&^mask != vpn2 {
		return false, false
	} else if !self.global() && self.EntryHi&0xff != asid {
		return false, false
	} else {
		return vaddr&((mask+1)>>1) != 0, true
	}
}

// Translation outcomes.
const (
	TLB_OK = iota
	TLB_MISS
	TLB_INVALID
	TLB_MODIFIED
)

// Quirk remaps addresses ahead of the general translation path for the
// titles that depend on it.
type Quirk interface {
	Translate(vaddr uint32) (paddr uint32, ok bool)
}

// GoldenEyeQuirk maps the 0x7f000000 window straight into cartridge space,
// the way the cartridge's TLB setup would have if it were emulated fully.
type GoldenEyeQuirk struct {
	Base uint32
}

func NewGoldenEyeQuirk() GoldenEyeQuirk {
	return GoldenEyeQuirk{Base: 0x10034b30}
}

func (self GoldenEyeQuirk) Translate(vaddr uint32) (uint32, bool) {
	if vaddr >= 0x7f000000 && vaddr < 0x80000000 {
		return self.Base + vaddr&0x00ffffff, true
	} else {
		return 0, false
	}
}

// IsUnmapped reports whether vaddr is in KSEG0 or KSEG1.
func IsUnmapped(vaddr uint32) bool {
	return vaddr >= 0x80000000 && vaddr < 0xc0000000
}

func (self *Context) lookup(vaddr uint32, write bool) (uint32, int) {
	if self.Quirk != nil {
		if p, ok := self.Quirk.Translate(vaddr); ok {
			return p, TLB_OK
		}
	}

	/* KSEG0 and KSEG1 bypass the TLB */
	if IsUnmapped(vaddr) {
		return vaddr & 0x1fffffff, TLB_OK
	}

	/* search the joint TLB */
	asid := uint32(self.COP0[mips.CP0_ENTRYHI]) & 0xff
	for i := range self.TLB {
		e := &self.TLB[i]
		odd, ok := e.match(vaddr, asid)

		/* not this one */
		if !ok {
			continue
		}

		/* select the even or odd page */
		lo := e.EntryLo0
		if odd {
			lo = e.EntryLo1
		}

		/* check the page flags */
		if lo&TLB_V == 0 {
			return 0, TLB_INVALID
		} else if write && lo&TLB_D == 0 {
			return 0, TLB_MODIFIED
		}

		/* build the physical address */
		mask := (e.PageMask | 0x1fff) >> 1
		return (lo>>6<<12)&^mask | vaddr&mask, TLB_OK
	}
	return 0, TLB_MISS
}

// Translate maps a virtual address to a physical one without side effects.
func (self *Context) Translate(vaddr uint32, write bool) (uint32, bool) {
	p, st := self.lookup(vaddr, write)
	return p, st == TLB_OK
}

// TranslateOrRaise is Translate that raises the matching exception on
// failure.
func (self *Context) TranslateOrRaise(vaddr uint32, write bool) (uint32, bool) {
	switch p, st := self.lookup(vaddr, write); st {
	case TLB_OK:
		return p, true
	case TLB_MISS:
		self.RaiseTLBRefill(vaddr, write)
	case TLB_INVALID:
		self.raiseTLB(vaddr, write, false)
	default:
		self.raiseTLB(vaddr, write, true)
	}
	return 0, false
}

// TLBRead implements TLBR.
func (self *Context) TLBRead() {
	e := &self.TLB[self.COP0[mips.CP0_INDEX]&(NumTLB-1)]
	g := uint64(0)

	/* the G bit is reported in both EntryLo registers */
	if e.global() {
		g = TLB_G
	}

	/* copy the entry out */
	self.COP0[mips.CP0_PAGEMASK] = uint64(e.PageMask)
	self.COP0[mips.CP0_ENTRYHI] = uint64(int32(e.EntryHi &^ e.PageMask))
	self.COP0[mips.CP0_ENTRYLO0] = uint64(e.EntryLo0&^TLB_G) | g
	self.COP0[mips.CP0_ENTRYLO1] = uint64(e.EntryLo1&^TLB_G) | g
}

// TLBWrite implements TLBWI and TLBWR.
func (self *Context) TLBWrite(random bool) {
	i := self.COP0[mips.CP0_INDEX] & (NumTLB - 1)
	if random {
		i = uint64(self.Random())
	}

	/* copy the entry in */
	old := self.TLB[i]
	mask := uint32(self.COP0[mips.CP0_PAGEMASK]) & 0x01ffe000
	self.TLB[i] = TLBEntry{
		PageMask: mask,
		EntryHi:  uint32(self.COP0[mips.CP0_ENTRYHI]) &^ mask &^ 0x1f00,
		EntryLo0: uint32(self.COP0[mips.CP0_ENTRYLO0]) & 0x3fffffff,
		EntryLo1: uint32(self.COP0[mips.CP0_ENTRYLO1]) & 0x3fffffff,
	}

	/* both the old and the new mapping are stale in the code cache */
	if self.Hooks != nil {
		self.Hooks.TLBWritten(old, self.TLB[i])
	}
}

// TLBProbe implements TLBP.
func (self *Context) TLBProbe() {
	hi := uint32(self.COP0[mips.CP0_ENTRYHI])
	self.COP0[mips.CP0_INDEX] = 0x80000000

	/* look for the matching entry */
	for i := range self.TLB {
		if _, ok := self.TLB[i].match(hi&^0x1fff, hi&0xff); ok {
			self.COP0[mips.CP0_INDEX] = uint64(i)
			return
		}
	}
}

// Random returns the COP0 Random register, derived from the cycle counter
// and bounded below by Wired.
func (self *Context) Random() uint32 {
	wired := uint32(self.COP0[mips.CP0_WIRED]) & (NumTLB - 1)
	if wired >= NumTLB-1 {
		return NumTLB - 1
	} else {
		return NumTLB - 1 - self.Cycle%(NumTLB-wired)
	}
}
