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
	"unsafe"
)

//go:noescape
//goland:noinspection GoUnusedParameter
func callTrace(ctx unsafe.Pointer, ram unsafe.Pointer, entry uintptr) uint32

// Call enters native code at entry with the context in RDI and guest memory
// in RSI, and returns the exit status the trace leaves with. Every register
// except the stack pointer may be clobbered by the trace.
func Call(ctx unsafe.Pointer, ram unsafe.Pointer, entry uintptr) uint32 {
	return callTrace(ctx, ram, entry)
}

// Supported reports whether Call can run native code on this host.
func Supported() bool {
	return true
}
