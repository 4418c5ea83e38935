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

package regcache

import (
	"github.com/cloudwego/mipsjit/internal/hir"
)

type FKind uint8

const (
	FP_UNUSED FKind = iota
	FP_SINGLE
	FP_DOUBLE
)

func (self FKind) size() int32 {
	switch self {
	case FP_SINGLE:
		return 4
	case FP_DOUBLE:
		return 8
	default:
		return 0
	}
}

// FSlot is the state of one host FP register. Off is the context offset of
// the guest value, as returned by machine.FPRSingle or machine.FPRDouble.
type FSlot struct {
	Kind  FKind
	Off   int32
	Dirty bool
	Stamp uint64
	Busy  bool
}

func (self FSlot) overlaps(off int32, kind FKind) bool {
	return self.Kind != FP_UNUSED && self.Off < off+kind.size() && off < self.Off+self.Kind.size()
}

func (self *Cache) fwriteback(r hir.Reg) {
	if s := &self.float[r]; s.Dirty {
		self.p.FST(uint8(s.Kind.size()), r, s.Off)
		s.Dirty = false
	}
}

func (self *Cache) ftouch(r hir.Reg) hir.Reg {
	self.clock++
	self.float[r].Stamp = self.clock
	self.float[r].Busy = true
	return r
}

// fresolve finds the slot holding off in the given shape. Slots that only
// overlap it are written back and dropped.
func (self *Cache) fresolve(off int32, kind FKind) (hir.Reg, bool) {
	hit := -1

	/* scan for exact and partial matches */
	for i, s := range self.float {
		if s.Kind == kind && s.Off == off {
			hit = i
		} else if s.overlaps(off, kind) {
			if s.Busy {
				panic("regcache: FP register aliased in a single instruction")
			}
			self.fwriteback(hir.Reg(i))
			self.float[i] = FSlot{}
		}
	}

	/* found it in the right shape */
	if hit >= 0 {
		return hir.Reg(hit), true
	} else {
		return 0, false
	}
}

func (self *Cache) falloc(s FSlot) hir.Reg {
	victim := -1

	/* free registers first */
	for i := range self.float {
		if self.float[i].Kind == FP_UNUSED {
			self.float[i] = s
			return self.ftouch(hir.Reg(i))
		}
	}

	/* otherwise the oldest unpinned one */
	for i, v := range self.float {
		if !v.Busy && (victim < 0 || v.Stamp < self.float[victim].Stamp) {
			victim = i
		}
	}

	/* every register is used by this instruction */
	if victim < 0 {
		panic("regcache: out of host FP registers")
	}

	/* spill and reuse it */
	self.fwriteback(hir.Reg(victim))
	self.float[victim] = s
	return self.ftouch(hir.Reg(victim))
}

func fkind(double bool) FKind {
	if double {
		return FP_DOUBLE
	} else {
		return FP_SINGLE
	}
}

// AllocInF maps the FP value at context offset off for reading.
func (self *Cache) AllocInF(off int32, double bool) hir.Reg {
	kind := fkind(double)

	/* already cached */
	if r, ok := self.fresolve(off, kind); ok {
		return self.ftouch(r)
	}

	/* load it */
	r := self.falloc(FSlot{Kind: kind, Off: off})
	self.p.FLD(uint8(kind.size()), off, r)
	return r
}

// AllocOutF maps the FP value at context offset off for writing.
func (self *Cache) AllocOutF(off int32, double bool) hir.Reg {
	kind := fkind(double)

	/* reuse the slot */
	if r, ok := self.fresolve(off, kind); ok {
		self.float[r].Dirty = true
		return self.ftouch(r)
	}

	/* a new slot, nothing to load */
	return self.falloc(FSlot{Kind: kind, Off: off, Dirty: true})
}

// ClobberF makes the context bytes [off, off+size) current and forgets any
// FP register holding them. Called before integer code reads or writes an
// FPR through the context.
func (self *Cache) ClobberF(off int32, size int32) {
	for i, s := range self.float {
		if s.Kind != FP_UNUSED && s.Off < off+size && off < s.Off+s.Kind.size() {
			self.fwriteback(hir.Reg(i))
			self.float[i] = FSlot{}
		}
	}
}

// FlushFloat writes every dirty FP register back and releases them all.
func (self *Cache) FlushFloat() {
	for i := range self.float {
		self.fwriteback(hir.Reg(i))
		self.float[i] = FSlot{}
	}
}

func (self *Cache) FSlot(r hir.Reg) FSlot {
	return self.float[r]
}
