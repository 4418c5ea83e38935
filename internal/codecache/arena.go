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

package codecache

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Arena is the memory blocks are written into. A loader.Region serves
// native code, a heap arena serves programs run by the IR emulator.
type Arena interface {
	Base() uintptr
	Size() int
	Bytes(off int, n int) []byte
	Write(off int, code []byte) error
	Close() error
}

type _HeapArena struct {
	mem []byte
}

// NewHeapArena creates an arena of size bytes on the Go heap. Its addresses
// are only used as keys, nothing is ever executed from it.
func NewHeapArena(size int) Arena {
	return &_HeapArena{mem: make([]byte, size)}
}

func (self *_HeapArena) Base() uintptr {
	return uintptr(unsafe.Pointer(&self.mem[0]))
}

func (self *_HeapArena) Size() int {
	return len(self.mem)
}

func (self *_HeapArena) Bytes(off int, n int) []byte {
	return self.mem[off : off+n : off+n]
}

func (self *_HeapArena) Write(off int, code []byte) error {
	if off < 0 || off+len(code) > len(self.mem) {
		return errors.Errorf("codecache: write of %d bytes at %d is out of bounds", len(code), off)
	}
	copy(self.mem[off:], code)
	return nil
}

func (self *_HeapArena) Close() error {
	self.mem = nil
	return nil
}
