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

package engine

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/cloudwego/mipsjit/internal/codecache"
	"github.com/cloudwego/mipsjit/internal/emitter"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/interp"
	"github.com/cloudwego/mipsjit/internal/loader"
	"github.com/cloudwego/mipsjit/internal/mips"
)

// execute runs b, and whatever traces it links to, until one of them
// returns to the dispatcher.
func (self *Engine) execute(b *codecache.Block) {
	if self.backend == hir.BackendNative {
		self.executeNative(b)
	} else {
		self.executeEmulated(b)
	}

	/* traces leave between instructions */
	self.ctx.Delay = 0
}

func (self *Engine) executeNative(b *codecache.Block) {
	ctx := unsafe.Pointer(self.ctx)
	entry := b.Entry

	/* resume where the trace called out */
	for loader.Call(ctx, self.ram(), entry) == hir.ExitCall {
		if !self.service() {
			return
		}
		entry = self.ctx.Header.Resume
	}
}

func (self *Engine) executeEmulated(b *codecache.Block) {
	emu := hir.LoadProgram(b.Program, unsafe.Pointer(self.ctx), self.ram())
	emu.Resolve = self.cache.Resolve
	defer emu.Free()

	/* the emulator keeps its position across callouts */
	for emu.Run() == hir.ExitCall {
		if !self.service() {
			return
		}
	}
}

// service runs the instruction a trace called out for. It reports whether
// the trace may continue.
func (self *Engine) service() bool {
	ctx := self.ctx
	id := ctx.Header.CallID

	/* the counter includes every instruction retired so far */
	d := ctx.CallCount * uint32(self.opts.CountPerOp)
	ctx.Cycle += d
	self.stale = false

	/* call the interpreter */
	switch id {
	case emitter.HelperInterp:
		interp.Exec(ctx, mips.Instr(ctx.CallOp))
	case emitter.HelperStep:
		interp.Step(ctx)
	default:
		panic(fmt.Sprintf("engine: invalid callout %d at %#08x", id, ctx.PC))
	}

	/* exceptions abandon the trace, the counter stays */
	if ctx.Leave != 0 {
		return false
	}

	/* so does overwriting the trace itself, unless only its exit is left */
	if self.stale && id == emitter.HelperInterp && ctx.Delay == 0 {
		ctx.PC += 4
		return false
	}

	/* the exits add the cycles again */
	ctx.Cycle -= d
	return true
}

// interpret executes the instruction at PC, or a branch together with its
// delay slot.
func (self *Engine) interpret() {
	atomic.AddUint64(&InterpCount, 1)
	n := interp.Step(self.ctx)
	self.ctx.Cycle += uint32(n) * uint32(self.opts.CountPerOp)
}
