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

// Package engine runs guest code, translating it trace by trace and falling
// back to the interpreter where a trace cannot be built.
package engine

import (
	"sync/atomic"
	"unsafe"

	"github.com/cloudwego/mipsjit/internal/codecache"
	"github.com/cloudwego/mipsjit/internal/eventq"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/loader"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/opts"
	mapset "github.com/deckarep/golang-set/v2"
	"github.com/pkg/errors"
)

const (
	_PollInterval = 1 << 16 // the longest a chain of linked traces runs unchecked
	_FarAway      = 1 << 30
)

// Engine drives one guest CPU. Only Stop may be called concurrently with
// Run.
type Engine struct {
	ctx     *machine.Context
	mem     *machine.Memory
	cache   *codecache.Cache
	queue   *eventq.Queue
	opts    opts.Options
	backend hir.Backend
	aliases map[uint32]mapset.Set[uint32]
	stop    int32
	stale   bool
	bounded bool
	end     uint32
}

// New creates an engine running a freshly reset CPU attached to mem.
func New(mem *machine.Memory, o opts.Options) (*Engine, error) {
	var err error
	var arena codecache.Arena

	/* pick the backend */
	backend := o.Backend.Resolve()
	if backend == hir.BackendNative && !loader.Supported() {
		backend = hir.BackendEmulator
	}

	/* native code needs executable memory */
	if backend == hir.BackendNative {
		if arena, err = loader.NewRegion(o.CacheSize); err != nil {
			return nil, errors.Wrap(err, "engine: cannot create the code cache")
		}
	} else {
		arena = codecache.NewHeapArena(o.CacheSize)
	}

	/* create the engine */
	ret := &Engine{
		mem:     mem,
		opts:    o,
		backend: backend,
		aliases: make(map[uint32]mapset.Set[uint32]),
		cache:   codecache.New(arena, codecache.Config{MaxPages: o.MaxPages}),
	}

	/* the CPU and its timers */
	ret.ctx = machine.NewContext(mem)
	ret.queue = eventq.New(o.EventSlots, ret.now)
	ret.attach()
	ret.install()
	return ret, nil
}

// attach connects the context to the engine, again after every reset.
func (self *Engine) attach() {
	self.ctx.Hooks = _Hooks{self}
	self.ctx.Header.Links = self.cache.Links()
	self.mem.OnCodeWrite = self.codeWritten

	/* game specific address remapping */
	if self.opts.GoldenEye {
		self.ctx.Quirk = machine.NewGoldenEyeQuirk()
	}

	/* the timer runs from power on */
	self.armCompare(uint32(self.ctx.COP0[mips.CP0_COMPARE]))
}

func (self *Engine) Context() *machine.Context {
	return self.ctx
}

func (self *Engine) Queue() *eventq.Queue {
	return self.queue
}

func (self *Engine) Cache() *codecache.Cache {
	return self.cache
}

func (self *Engine) Backend() hir.Backend {
	return self.backend
}

func (self *Engine) Close() error {
	self.mem.OnCodeWrite = nil
	return self.cache.Close()
}

func (self *Engine) now() uint32 {
	return self.ctx.Cycle
}

func (self *Engine) ram() unsafe.Pointer {
	return unsafe.Pointer(&self.mem.RAM[0])
}

/** Running **/

// Run executes guest code until Stop is called.
func (self *Engine) Run() {
	self.bounded = false
	self.run()
}

// RunCycles executes guest code for about n cycles of the counter. It may
// overshoot by the length of one trace.
func (self *Engine) RunCycles(n uint32) {
	self.bounded = true
	self.end = self.ctx.Cycle + n
	self.run()
}

// Stop makes Run return at the next trace boundary.
func (self *Engine) Stop() {
	atomic.StoreInt32(&self.stop, 1)
}

func (self *Engine) run() {
	atomic.StoreInt32(&self.stop, 0)
	for atomic.LoadInt32(&self.stop) == 0 {
		if self.bounded && int32(self.ctx.Cycle-self.end) >= 0 {
			return
		}
		self.step()
	}
}

func (self *Engine) step() {
	self.events()
	self.deadline()

	/* run the trace at PC, or a single instruction */
	if b := self.lookup(self.ctx.PC); b != nil {
		self.execute(b)
	} else {
		self.interpret()
	}
}

// deadline makes linked traces return in time for the end of the run and
// for the next stop check.
func (self *Engine) deadline() {
	end := self.ctx.Cycle + _PollInterval
	if self.bounded && int32(self.end-end) < 0 {
		end = self.end
	}

	/* the earlier of the two */
	if int32(end-self.ctx.NextEvent) < 0 {
		self.ctx.NextEvent = end
	}
}

// InvalidateAll drops every translation, for when the assumptions they
// were built on no longer hold.
func (self *Engine) InvalidateAll() {
	self.cache.InvalidateAll()
	for pg := range self.aliases {
		self.mem.MarkCode(pg<<machine.PageBits, false)
	}
	self.aliases = make(map[uint32]mapset.Set[uint32])
}
