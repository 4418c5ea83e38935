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
	"github.com/cloudwego/mipsjit/internal/log"
	"github.com/cloudwego/mipsjit/internal/machine"
	mapset "github.com/deckarep/golang-set/v2"
)

// track marks the physical page of the trace at pc, so that stores into it
// reach codeWritten.
func (self *Engine) track(pc uint32) {
	p, ok := self.ctx.Translate(pc, false)
	if !ok || !self.mem.InRAM(p, 4) {
		return
	}

	/* a physical page may be mapped at several virtual pages */
	pg := p >> machine.PageBits
	vs, ok := self.aliases[pg]
	if !ok {
		vs = mapset.NewThreadUnsafeSet[uint32]()
		self.aliases[pg] = vs
	}

	/* mark it */
	vs.Add(pc >> machine.PageBits)
	self.mem.MarkCode(p, true)
}

// codeWritten retires every translation built from the page holding paddr.
func (self *Engine) codeWritten(paddr uint32) {
	pg := paddr >> machine.PageBits
	vs, ok := self.aliases[pg]

	/* the page is plain data again */
	delete(self.aliases, pg)
	self.mem.MarkCode(paddr, false)
	if !ok {
		return
	}

	/* every virtual page it was translated at */
	n := 0
	cur := self.ctx.PC >> machine.PageBits
	vs.Each(func(vp uint32) bool {
		n += self.cache.InvalidatePage(vp)
		self.stale = self.stale || vp == cur
		return false
	})

	log.Debug("engine: code page written", "paddr", paddr, "blocks", n)
}
