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
	"sync/atomic"

	"github.com/cloudwego/mipsjit/internal/codecache"
	"github.com/cloudwego/mipsjit/internal/emitter"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/log"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/trace"
	"github.com/pkg/errors"
)

var (
	ErrNotMapped  = errors.New("trace address is not mapped")
	ErrDegenerate = errors.New("trace too short to translate")
)

var (
	HitCount    uint64
	MissCount   uint64
	FailCount   uint64
	InterpCount uint64
)

// lookup returns the translation of the trace at pc, translating it first
// if needed. It returns nil when the instruction at pc must be interpreted.
func (self *Engine) lookup(pc uint32) *codecache.Block {
	if b, st := self.cache.Lookup(pc); st == codecache.Live {
		atomic.AddUint64(&HitCount, 1)
		return b
	}

	/* translate it now */
	atomic.AddUint64(&MissCount, 1)
	b, err := self.Compile(pc)

	/* the interpreter takes over on failures */
	if err != nil {
		atomic.AddUint64(&FailCount, 1)
		log.Debug("engine: cannot translate trace", "pc", pc, "err", err)
		return nil
	}
	return b
}

// fetch reads the instructions a trace at pc may cover. Traces never cross
// a page, so that a write to a page retires every trace built from it.
func (self *Engine) fetch(pc uint32) ([]mips.Instr, error) {
	n := int(machine.PageSize-pc&(machine.PageSize-1)) / 4
	if self.opts.MaxTrace > 0 && n > self.opts.MaxTrace {
		n = self.opts.MaxTrace
	}

	/* the whole page shares one translation */
	p, ok := self.ctx.Translate(pc, false)
	if !ok || pc&3 != 0 {
		return nil, errors.Wrapf(ErrNotMapped, "%#08x", pc)
	}

	/* read the words */
	ret := make([]mips.Instr, 0, n)
	for i := 0; self.opts.CanExtend(i) && i < n; i++ {
		ret = append(ret, mips.Instr(self.mem.Fetch(p+uint32(i)*4)))
	}
	return ret, nil
}

// Compile translates the trace at pc and adds it to the code cache.
func (self *Engine) Compile(pc uint32) (*codecache.Block, error) {
	raw, err := self.fetch(pc)
	if err != nil {
		return nil, err
	}

	/* analyze the trace */
	ops, n := trace.BuildTrace(raw, len(raw))
	if n == 0 || (n == 1 && ops[0].DelaySlotOmitted) {
		return nil, errors.Wrapf(ErrDegenerate, "%#08x", pc)
	}

	/* translate it within the space left */
	cfg := self.config()
	res, err := emitter.Translate(ops, pc, cfg)

	/* retry once with half of the cache cleared */
	if errors.Cause(err) == emitter.ErrCodeBufferFull {
		if _, err = self.cache.Reserve(self.cache.Capacity()/2 - codecache.HeaderSize); err != nil {
			return nil, err
		}
		cfg.Budget = self.cache.Budget()
		res, err = emitter.Translate(ops, pc, cfg)
	}

	/* hard failures are not retried */
	if err != nil {
		return nil, err
	}

	/* native code */
	var code []byte
	if self.backend == hir.BackendNative {
		if code, err = hir.Assemble(res.Program); err != nil {
			self.discard(res)
			return nil, errors.Wrapf(err, "cannot assemble trace at %#08x", pc)
		}
	}

	/* the cache owns the result from now on */
	b, err := self.cache.Insert(pc, res, code)
	if err != nil {
		return nil, err
	}

	/* stores to its page must retire it */
	self.track(pc)
	return b, nil
}

func (self *Engine) config() emitter.Config {
	return emitter.Config{
		CountPerOp: uint32(self.opts.CountPerOp),
		RAMSize:    self.ctx.RAMSize,
		FR:         self.ctx.FR(),
		Budget:     self.cache.Budget(),
		Linker:     self.cache,
	}
}

func (self *Engine) discard(res emitter.Result) {
	res.Program.Free()
	for _, x := range res.Exits {
		self.cache.FreeCell(x.Cell)
	}
}
