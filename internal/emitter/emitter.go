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

// Package emitter translates analyzed traces into host IR programs.
//
// A program runs from the first instruction of the trace to one of its
// exits. Every exit adds the cycles of the instructions it executed to
// ctx.Cycle, writes ctx.PC and returns hir.ExitNext, or jumps straight
// into the next trace through a link cell when no event is due.
//
// Instructions that cannot be translated inline, and the slow paths of
// those that can, hand the instruction to the host with a HelperInterp
// callout. All guest registers are written back before a callout, so the
// host may abandon the program there when the instruction raised an
// exception.
package emitter

import (
	"fmt"

	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/regcache"
	"github.com/cloudwego/mipsjit/internal/trace"
	"github.com/oleiade/lane"
	"github.com/pkg/errors"
)

var (
	ErrCodeBufferFull = errors.New("code buffer full")
	ErrUnsupported    = errors.New("unsupported trace")
)

// Callout ids. The host reads the instruction from ctx.CallOp, its address
// from ctx.PC and the delay slot flag from ctx.Delay. ctx.CallCount is the
// number of trace instructions retired up to and including it.
const (
	HelperInterp = iota + 1 // execute one instruction
	HelperStep              // execute a branch together with its delay slot, then leave
)

// Linker hands out the link cells of direct exits.
type Linker interface {
	AllocCell() (int, bool)
	FreeCell(cell int)
}

// Exit is a direct exit of a trace that may be linked to the trace at
// Target through Cell.
type Exit struct {
	Target uint32
	Cell   int
}

type Config struct {
	CountPerOp uint32
	RAMSize    uint32
	FR         bool
	Budget     int
	Linker     Linker
}

// Result is a translated trace. Count is the number of guest instructions
// it covers.
type Result struct {
	Program hir.Program
	Exits   []Exit
	Count   int
}

type _Stub struct {
	id    int
	pc    uint32
	op    mips.Instr
	index int
	delay bool
	addr  hir.Reg
	enter regcache.State
	leave regcache.State
}

func (self *_Stub) entry() string {
	return fmt.Sprintf("_slow_%d", self.id)
}

func (self *_Stub) resume() string {
	return fmt.Sprintf("_resume_%d", self.id)
}

func (self *_Stub) join() string {
	return fmt.Sprintf("_join_%d", self.id)
}

// Emitter holds the translation state of one trace.
type Emitter struct {
	p     *hir.Builder
	c     *regcache.Cache
	cfg   Config
	base  uint32
	nl    int
	stubs *lane.Queue
	exits []Exit

	/* the instruction being translated */
	cur   *trace.Op
	index int
	delay bool
}

func newEmitter(p *hir.Builder, pc uint32, cfg Config) *Emitter {
	return &Emitter{
		p:     p,
		c:     regcache.CreateCache(p),
		cfg:   cfg,
		base:  pc,
		stubs: lane.NewQueue(),
	}
}

// Translate emits the program of a trace starting at guest address pc. It
// returns ErrCodeBufferFull when the program does not fit cfg.Budget, and an
// error wrapping ErrUnsupported when the trace is malformed. The partial
// program is discarded in both cases.
func Translate(ops []trace.Op, pc uint32, cfg Config) (Result, error) {
	if len(ops) == 0 {
		return Result{}, errors.Wrapf(ErrUnsupported, "empty trace at %#08x", pc)
	}

	/* create the emitter */
	p := hir.CreateBuilder()
	e := newEmitter(p, pc, cfg)

	/* limit the native size if needed */
	if cfg.Budget > 0 {
		p.SetBudget(cfg.Budget)
	}

	/* the trace body, then the slow paths */
	err := e.body(ops)
	if err == nil {
		e.emitStubs()
	}

	/* hard failures */
	if err != nil {
		e.release()
		p.Discard()
		return Result{}, err
	}

	/* the buffer ran out */
	if p.Exhausted() {
		e.release()
		p.Discard()
		return Result{}, ErrCodeBufferFull
	}

	/* build the program */
	return Result{
		Program: p.Build(),
		Exits:   e.exits,
		Count:   len(ops),
	}, nil
}

func (self *Emitter) release() {
	for _, x := range self.exits {
		self.cfg.Linker.FreeCell(x.Cell)
	}
	self.exits = nil
}

func (self *Emitter) addr(i int) uint32 {
	return self.base + uint32(i)*4
}

func (self *Emitter) label(name string) string {
	self.nl++
	return fmt.Sprintf("_%s_%d", name, self.nl)
}

func (self *Emitter) body(ops []trace.Op) error {
	for i := range ops {
		op := &ops[i]

		/* delay slots are emitted together with their branches */
		if op.InDelaySlot {
			return errors.Wrapf(ErrUnsupported, "stray delay slot at %#08x", self.addr(i))
		}

		/* emit the instruction */
		switch op.Boundary {
		case trace.EndDelay:
			return self.branch(ops, i)
		case trace.EndNow:
			self.instr(op, i, false)
			self.exitDirect(self.addr(i+1), i+1, false)
			return nil
		default:
			self.instr(op, i, false)
		}
	}

	/* the trace ran out of budget, continue with the next one */
	self.exitDirect(self.addr(len(ops)), len(ops), true)
	return nil
}

// instr emits one non-branch instruction.
func (self *Emitter) instr(op *trace.Op, i int, delay bool) {
	self.cur = op
	self.index = i
	self.delay = delay

	/* the canonical NOP has no effects at all */
	if op.Instr.IsNop() {
		return
	}

	/* translate or interpret */
	self.c.StartOpcode()
	if fn := lookup(op.Instr); fn != nil {
		fn(self, op.Instr)
	} else {
		self.interpret(op.Instr)
	}
	self.c.EndOpcode()
}

/** Host Callouts **/

// shadow writes what the host needs to know about the current instruction.
func (self *Emitter) shadow(op mips.Instr) {
	self.p.STCI(int32(self.addr(self.index)), machine.OffPC)
	self.p.STCI(int32(b2i(self.delay)), machine.OffDelay)
	self.p.STCI(int32(op), machine.OffCallOp)
	self.p.STCI(int32(self.index+1), machine.OffCallCount)
}

// callout hands op to the host. Guest registers are written back first
// and reloaded on demand afterwards, temporaries survive in the save area.
func (self *Emitter) callout(id int, op mips.Instr) {
	resume := self.label("resume")
	self.c.FlushAll()
	temps := self.c.Temps()

	/* spill the temporaries */
	for _, r := range temps {
		self.p.STC(r, hir.SaveSlot(r))
	}

	/* call the host */
	self.shadow(op)
	self.p.CALLOUT(id, resume)
	self.p.Label(resume)

	/* the host may have changed any guest register */
	for _, r := range temps {
		self.p.LDC(hir.SaveSlot(r), r)
	}
	self.c.DropAll()
}

// interpret executes op on the host.
func (self *Emitter) interpret(op mips.Instr) {
	self.callout(HelperInterp, op)
}

/** Slow Paths **/

// stub defers a slow path that interprets op. It must be created after the
// fast path has allocated everything it uses before its guards, addr is
// the register holding the effective address, or RZ.
func (self *Emitter) stub(op mips.Instr, addr hir.Reg) *_Stub {
	self.nl++
	s := &_Stub{
		id:    self.nl,
		pc:    self.addr(self.index),
		op:    op,
		index: self.index,
		delay: self.delay,
		addr:  addr,
		enter: self.c.Snapshot(),
	}

	/* defer the stub */
	self.stubs.Enqueue(s)
	return s
}

// join marks the end of the fast path, where the stub returns to.
func (self *Emitter) join(s *_Stub) {
	s.leave = self.c.Snapshot()
	self.p.Label(s.join())
}

func (self *Emitter) emitStubs() {
	for !self.stubs.Empty() {
		self.emitStub(self.stubs.Dequeue().(*_Stub))
	}
}

func (self *Emitter) emitStub(s *_Stub) {
	p := self.p
	c := self.c

	/* the state on entry of the stub */
	p.Label(s.entry())
	c.Restore(s.enter)
	c.FlushAll()
	temps := c.Temps()

	/* spill the temporaries */
	for _, r := range temps {
		p.STC(r, hir.SaveSlot(r))
	}

	/* call the host */
	p.STC(s.addr, machine.OffCallAddr)
	p.STCI(int32(s.pc), machine.OffPC)
	p.STCI(int32(b2i(s.delay)), machine.OffDelay)
	p.STCI(int32(s.op), machine.OffCallOp)
	p.STCI(int32(s.index+1), machine.OffCallCount)
	p.CALLOUT(HelperInterp, s.resume())
	p.Label(s.resume())

	/* rebuild the state the fast path leaves */
	for i, v := range s.leave.Slots {
		r := hir.Reg(i)
		switch v.Kind {
		case regcache.UNUSED:
			break
		case regcache.TEMP:
			if contains(temps, r) {
				p.LDC(hir.SaveSlot(r), r)
			}
		default:
			p.LDC(v.Off, r)
		}
	}

	/* the FP registers as well */
	for i, v := range s.leave.Float {
		switch v.Kind {
		case regcache.FP_SINGLE:
			p.FLD(4, v.Off, hir.Reg(i))
		case regcache.FP_DOUBLE:
			p.FLD(8, v.Off, hir.Reg(i))
		}
	}

	/* back to the fast path */
	p.JMP(s.join())
}

func contains(v []hir.Reg, r hir.Reg) bool {
	for _, x := range v {
		if x == r {
			return true
		}
	}
	return false
}

/** Trace Exits **/

// account adds the cycles of n instructions and writes every register back.
func (self *Emitter) account(n int) {
	c := self.c
	c.StartOpcode()

	/* ctx.Cycle += n * CountPerOp */
	if d := uint32(n) * self.cfg.CountPerOp; d != 0 {
		cy := c.AllocIn32(machine.OffCycle)
		c.AllocOut32(machine.OffCycle)
		self.p.ADDI(cy, int32(d), cy)
	}

	/* commit everything */
	c.EndOpcode()
	c.FlushAll()
}

// exitDirect leaves the trace for a statically known address. Linkable
// exits get a link cell, which is taken unless an event is due.
func (self *Emitter) exitDirect(to uint32, n int, linkable bool) {
	p := self.p
	c := self.c
	self.account(n)
	p.STCI(int32(to), machine.OffPC)

	/* grab a link cell */
	cell, ok := -1, false
	if linkable && self.cfg.Linker != nil {
		cell, ok = self.cfg.Linker.AllocCell()
	}

	/* unlinkable exits return to the dispatcher */
	if !ok {
		p.STCI(0, machine.OffLastCell)
		p.EXIT(hir.ExitNext)
		return
	}

	/* remember which cell to patch once the target is compiled */
	due := self.label("due")
	p.STCI(int32(cell+1), machine.OffLastCell)
	self.exits = append(self.exits, Exit{Target: to, Cell: cell})

	/* chain into the next trace unless an event is due */
	c.StartOpcode()
	now := c.AllocIn32(machine.OffCycle)
	next := c.AllocIn32(machine.OffNextEvent)
	diff := c.AllocTemp()
	p.SUB(now, next, diff)
	p.BGEI(diff, 0, due)
	p.LINK(cell)
	p.Label(due)
	c.EndOpcode()
	p.EXIT(hir.ExitNext)
}

// exitReg leaves the trace for the address held by r.
func (self *Emitter) exitReg(r hir.Reg, n int) {
	self.account(n)
	self.p.STC(r, machine.OffPC)
	self.p.STCI(0, machine.OffLastCell)
	self.p.EXIT(hir.ExitNext)
}

// exitHost leaves the trace for the address the host put in ctx.PC.
func (self *Emitter) exitHost(n int) {
	self.account(n)
	self.p.STCI(0, machine.OffLastCell)
	self.p.EXIT(hir.ExitNext)
}

func b2i(v bool) int {
	if v {
		return 1
	} else {
		return 0
	}
}
