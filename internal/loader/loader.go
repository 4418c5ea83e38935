//go:build !windows

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

package loader

import (
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const (
	_AP = unix.MAP_ANON | unix.MAP_PRIVATE
	_RX = unix.PROT_READ | unix.PROT_EXEC
	_RW = unix.PROT_READ | unix.PROT_WRITE
)

var (
	FnCount  uint32
	LoadSize uintptr
)

func alignUp(n uintptr, a int) uintptr {
	return (n + uintptr(a) - 1) &^ (uintptr(a) - 1)
}

func alignDown(n uintptr, a int) uintptr {
	return n &^ (uintptr(a) - 1)
}

// Region is a block of executable memory that traces are written into. It
// is never writable and executable at the same time.
type Region struct {
	mem []byte
}

// NewRegion maps a new executable region of at least size bytes.
func NewRegion(size int) (*Region, error) {
	nb := alignUp(uintptr(size), os.Getpagesize())
	mm, err := unix.Mmap(-1, 0, int(nb), _RW, _AP)

	/* allocate a block of memory */
	if err != nil {
		return nil, errors.Wrapf(err, "loader: cannot map %d bytes", nb)
	}

	/* make it executable */
	if err = unix.Mprotect(mm, _RX); err != nil {
		_ = unix.Munmap(mm)
		return nil, errors.Wrap(err, "loader: cannot protect region")
	}

	/* record statistics */
	atomic.AddUintptr(&LoadSize, nb)
	return &Region{mem: mm}, nil
}

// Base returns the address of the first byte of the region.
func (self *Region) Base() uintptr {
	return uintptr(unsafe.Pointer(&self.mem[0]))
}

func (self *Region) Size() int {
	return len(self.mem)
}

// Bytes returns a read-only view of n bytes at off.
func (self *Region) Bytes(off int, n int) []byte {
	return self.mem[off : off+n : off+n]
}

// Write copies code into the region at off. Only the pages it touches are
// made writable, and only for the duration of the copy.
func (self *Region) Write(off int, code []byte) error {
	if len(code) == 0 {
		return nil
	}

	/* bounds check */
	if off < 0 || off+len(code) > len(self.mem) {
		return errors.Errorf("loader: write of %d bytes at %d is out of bounds", len(code), off)
	}

	/* the page range covering the code */
	ps := os.Getpagesize()
	lo := int(alignDown(uintptr(off), ps))
	hi := int(alignUp(uintptr(off+len(code)), ps))
	pg := self.mem[lo:hi]

	/* unprotect, copy, then protect again */
	if err := unix.Mprotect(pg, _RW); err != nil {
		return errors.Wrap(err, "loader: cannot unprotect region")
	}

	/* copy the code */
	copy(self.mem[off:], code)
	atomic.AddUint32(&FnCount, 1)

	/* make it executable again */
	if err := unix.Mprotect(pg, _RX); err != nil {
		return errors.Wrap(err, "loader: cannot protect region")
	} else {
		return nil
	}
}

// Close unmaps the region.
func (self *Region) Close() error {
	if self.mem == nil {
		return nil
	}

	/* release the memory */
	nb := uintptr(len(self.mem))
	err := unix.Munmap(self.mem)
	self.mem = nil

	/* record statistics */
	if err == nil {
		atomic.AddUintptr(&LoadSize, ^(nb - 1))
	}
	return errors.Wrap(err, "loader: cannot unmap region")
}
