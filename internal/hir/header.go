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
    `unsafe`
)

// Exit statuses returned by a trace program.
const (
    ExitNext = 0 // the trace ended, ctx.PC holds the next guest address
    ExitCall = 1 // the host must service CallID, then resume the trace
)

// Header is the part of the machine context that trace programs address
// directly. It must be the first field of the context structure.
type Header struct {
    Resume uintptr
    Links  uintptr
    CallID uint32
    _      uint32
    Save   [NumRegs]uint32
}

var (
    OffResume = int32(unsafe.Offsetof(Header{}.Resume))
    OffLinks  = int32(unsafe.Offsetof(Header{}.Links))
    OffCallID = int32(unsafe.Offsetof(Header{}.CallID))
    OffSave   = int32(unsafe.Offsetof(Header{}.Save))
)

// SaveSlot returns the context offset of the save area slot for r.
func SaveSlot(r Reg) int32 {
    if r >= NumRegs {
        panic("hir: save slot of an unallocatable register: " + r.String())
    } else {
        return OffSave + int32(r)*4
    }
}
