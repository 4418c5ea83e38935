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
	"github.com/pkg/errors"
)

// Access sizes, used to index the accessor tables.
const (
	SizeByte = iota
	SizeHalf
	SizeWord
	SizeDouble
)

// SizeBytes is the width of each access size in bytes.
var SizeBytes = [4]uint32{1, 2, 4, 8}

const (
	PageBits = 12
	PageSize = 1 << PageBits
	MaxRAM   = 64 << 20
)

type (
	ReadFunc  func(m *Memory, paddr uint32, size int) uint64
	WriteFunc func(m *Memory, paddr uint32, size int, v uint64)
)

// Memory is the physical address space. RAM words are stored in host byte
// order, the accessor tables dispatch every other region on the high 16
// bits of the physical address.
type Memory struct {
	RAM       []uint32
	CodePages []byte
	Read      [4][65536]ReadFunc
	Write     [4][65536]WriteFunc

	// OnCodeWrite is called after a write lands in a RAM page whose
	// CodePages mark is set.
	OnCodeWrite func(paddr uint32)
}

// NewMemory creates a physical address space with size bytes of RAM at
// physical address 0. Everything else reads as zero and ignores writes
// until Map installs a handler.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 || size > MaxRAM {
		return nil, errors.Errorf("invalid RAM size: %d", size)
	} else if size%PageSize != 0 {
		return nil, errors.Errorf("RAM size is not page aligned: %#x", size)
	}

	/* allocate RAM and the code page marks */
	ret := new(Memory)
	ret.RAM = make([]uint32, size/4)
	ret.CodePages = make([]byte, size/PageSize)

	/* install the default handlers */
	ret.Map(0, 0xffffffff, readUnmapped, writeUnmapped)
	ret.Map(0, uint32(size-1), readRAM, writeRAM)
	return ret, nil
}

// Map installs r and w for the 64 KiB regions covering [lo, hi].
func (self *Memory) Map(lo uint32, hi uint32, r ReadFunc, w WriteFunc) {
	for i := lo >> 16; i <= hi>>16; i++ {
		for s := 0; s < 4; s++ {
			self.Read[s][i] = r
			self.Write[s][i] = w
		}
	}
}

// ReadPhys reads an aligned value of the given size.
func (self *Memory) ReadPhys(paddr uint32, size int) uint64 {
	return self.Read[size][paddr>>16](self, paddr, size)
}

// WritePhys writes an aligned value of the given size.
func (self *Memory) WritePhys(paddr uint32, size int, v uint64) {
	self.Write[size][paddr>>16](self, paddr, size, v)
}

// InRAM reports whether an access of n bytes at paddr stays inside RAM.
func (self *Memory) InRAM(paddr uint32, n uint32) bool {
	return uint64(paddr)+uint64(n) <= uint64(len(self.RAM))*4
}

// MarkCode sets or clears the code mark of the RAM page holding paddr.
func (self *Memory) MarkCode(paddr uint32, v bool) {
	if i := paddr >> PageBits; int(i) < len(self.CodePages) {
		if v {
			self.CodePages[i] = 1
		} else {
			self.CodePages[i] = 0
		}
	}
}

// IsCode reports whether the RAM page holding paddr is marked.
func (self *Memory) IsCode(paddr uint32) bool {
	i := paddr >> PageBits
	return int(i) < len(self.CodePages) && self.CodePages[i] != 0
}

// Fetch reads the instruction word at a physical address.
func (self *Memory) Fetch(paddr uint32) uint32 {
	return uint32(self.ReadPhys(paddr&^3, SizeWord))
}

func readUnmapped(_ *Memory, _ uint32, _ int) uint64 {
	return 0
}

func writeUnmapped(_ *Memory, _ uint32, _ int, _ uint64) {}

func readRAM(m *Memory, p uint32, size int) uint64 {
	if !m.InRAM(p, SizeBytes[size]) {
		return 0
	}

	/* words are big endian inside, whatever the host order is */
	switch w := m.RAM[p>>2]; size {
	case SizeByte:
		return uint64(uint8(w >> ((3 - p&3) * 8)))
	case SizeHalf:
		return uint64(uint16(w >> ((2 - p&2) * 8)))
	case SizeWord:
		return uint64(w)
	default:
		return uint64(w)<<32 | uint64(m.RAM[p>>2+1])
	}
}

func writeRAM(m *Memory, p uint32, size int, v uint64) {
	if !m.InRAM(p, SizeBytes[size]) {
		return
	}

	/* merge the value into its word */
	switch i := p >> 2; size {
	case SizeByte:
		sh := (3 - p&3) * 8
		m.RAM[i] = m.RAM[i]&^(0xff<<sh) | uint32(uint8(v))<<sh
	case SizeHalf:
		sh := (2 - p&2) * 8
		m.RAM[i] = m.RAM[i]&^(0xffff<<sh) | uint32(uint16(v))<<sh
	case SizeWord:
		m.RAM[i] = uint32(v)
	default:
		m.RAM[i] = uint32(v >> 32)
		m.RAM[i+1] = uint32(v)
	}

	/* self-modifying code */
	if m.OnCodeWrite != nil && m.CodePages[p>>PageBits] != 0 {
		m.OnCodeWrite(p)
	}
}
