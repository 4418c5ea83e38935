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

// Package mipsjit runs MIPS R4300i guest code by translating it, one trace
// at a time, into host code.
package mipsjit

import (
	"github.com/cloudwego/mipsjit/internal/engine"
	"github.com/cloudwego/mipsjit/internal/eventq"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/opts"
)

type (
	Memory  = machine.Memory
	Context = machine.Context
	Backend = hir.Backend
	Event   = eventq.Type
	Handler = eventq.Handler
)

const (
	BackendAuto     = hir.BackendAuto
	BackendNative   = hir.BackendNative
	BackendEmulator = hir.BackendEmulator
)

const (
	EventVI      = eventq.VI
	EventCompare = eventq.Compare
	EventCheck   = eventq.Check
	EventSI      = eventq.SI
	EventPI      = eventq.PI
	EventSpecial = eventq.Special
	EventAI      = eventq.AI
	EventSP      = eventq.SP
	EventDP      = eventq.DP
	EventHW2     = eventq.HW2
	EventNMI     = eventq.NMI
	EventReset   = eventq.Reset
)

// NewMemory allocates size bytes of guest RAM.
func NewMemory(size int) (*Memory, error) {
	return machine.NewMemory(size)
}

// Engine runs a single guest CPU.
type Engine struct {
	e *engine.Engine
}

// NewEngine creates an engine for a CPU attached to mem, in its power on
// state.
func NewEngine(mem *Memory, options ...Option) (*Engine, error) {
	o := opts.GetDefaultOptions()
	for _, fn := range options {
		fn(&o)
	}

	/* create the engine */
	e, err := engine.New(mem, o)
	if err != nil {
		return nil, err
	} else {
		return &Engine{e}, nil
	}
}

// Context returns the CPU state. It must not be modified while the engine
// is running.
func (self *Engine) Context() *Context {
	return self.e.Context()
}

// Backend reports how translated traces are run.
func (self *Engine) Backend() Backend {
	return self.e.Backend()
}

// Run executes guest code until Stop is called.
func (self *Engine) Run() {
	self.e.Run()
}

// RunCycles executes guest code for about n counter cycles.
func (self *Engine) RunCycles(n uint32) {
	self.e.RunCycles(n)
}

// Stop makes Run return. It is safe to call from any goroutine.
func (self *Engine) Stop() {
	self.e.Stop()
}

// Compile translates the trace starting at pc ahead of time.
func (self *Engine) Compile(pc uint32) error {
	if _, err := self.e.Compile(pc); err != nil {
		return CompileError{PC: pc, Err: err}
	} else {
		return nil
	}
}

// InvalidateAll drops every translated trace.
func (self *Engine) InvalidateAll() {
	self.e.InvalidateAll()
}

// Schedule arranges for the handler of typ to run when the counter reaches
// at. It returns false if typ is already pending.
func (self *Engine) Schedule(typ Event, at uint32) bool {
	return self.e.Queue().Schedule(typ, at)
}

// ScheduleAfter arranges for the handler of typ to run delay cycles from
// now.
func (self *Engine) ScheduleAfter(typ Event, delay uint32) bool {
	return self.e.Queue().ScheduleAfter(typ, delay)
}

// Cancel removes the pending event of typ, and reports whether there was one.
func (self *Engine) Cancel(typ Event) bool {
	return self.e.Queue().Cancel(typ)
}

// Pending returns the cycle typ is scheduled at.
func (self *Engine) Pending(typ Event) (uint32, bool) {
	return self.e.Queue().Pending(typ)
}

// Handle installs the handler of a device event.
func (self *Engine) Handle(typ Event, fn Handler) {
	self.e.Handle(typ, fn)
}

// SaveEvents serializes the pending events.
func (self *Engine) SaveEvents() []byte {
	return self.e.Queue().Serialize()
}

// LoadEvents replaces the pending events with the ones in buf.
func (self *Engine) LoadEvents(buf []byte) error {
	return self.e.Queue().Deserialize(buf)
}

// Close releases the code cache. The engine cannot be used afterwards.
func (self *Engine) Close() error {
	return self.e.Close()
}
