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

// Load reads size bytes at a virtual address. On failure the matching
// exception has been raised and ok is false.
func (self *Context) Load(vaddr uint32, size int) (v uint64, ok bool) {
	var p uint32

	/* natural alignment */
	if vaddr&(SizeBytes[size]-1) != 0 {
		self.RaiseAddressError(vaddr, false)
		return 0, false
	}

	/* translate and read */
	if p, ok = self.TranslateOrRaise(vaddr, false); ok {
		v = self.Mem.ReadPhys(p, size)
	}
	return
}

// Store writes size bytes at a virtual address.
func (self *Context) Store(vaddr uint32, size int, v uint64) bool {
	if vaddr&(SizeBytes[size]-1) != 0 {
		self.RaiseAddressError(vaddr, true)
		return false
	}

	/* translate and write */
	if p, ok := self.TranslateOrRaise(vaddr, true); !ok {
		return false
	} else {
		self.Mem.WritePhys(p, size, v)
		return true
	}
}

// Fetch reads the instruction word at a virtual address.
func (self *Context) Fetch(vaddr uint32) (uint32, bool) {
	v, ok := self.Load(vaddr, SizeWord)
	return uint32(v), ok
}
