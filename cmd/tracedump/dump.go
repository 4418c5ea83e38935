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

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/mipsjit/internal/emitter"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/log"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/cloudwego/mipsjit/internal/trace"
	"github.com/olekukonko/tablewriter"
)

const (
	_CountPerOp = 2
	_RAMSize    = 8 << 20
)

var boundaryNames = [...]string{
	trace.Continue: "",
	trace.EndNow:   "end",
	trace.EndDelay: "end-delay",
}

type dumper struct {
	cfg *dumpConfig
	img *image
	out io.Writer
}

func (self *dumper) run() error {
	pc := self.cfg.PC
	for i := 0; i < self.cfg.Count; i++ {
		raw, err := self.img.window(pc)
		if err != nil {
			return err
		}

		/* cut the next trace */
		lim := len(raw)
		if self.cfg.MaxTrace > 0 && lim > self.cfg.MaxTrace {
			lim = self.cfg.MaxTrace
		}

		/* print it */
		ops, n := trace.BuildTrace(raw, lim)
		self.table(pc, ops)
		if err = self.translate(pc, ops); err != nil {
			log.Warn("tracedump: cannot translate trace", "pc", pc, "err", err)
		}

		/* continue with the code that follows */
		if n == 0 {
			break
		}
		pc += uint32(n) * 4
	}
	return nil
}

func (self *dumper) table(pc uint32, ops []trace.Op) {
	fmt.Fprintf(self.out, "trace at %#08x, %d instructions\n", pc, len(ops))
	table := tablewriter.NewWriter(self.out)
	table.SetHeader([]string{"PC", "Raw", "Instruction", "Boundary", "Constants", "Widths"})
	table.SetAutoWrapText(false)

	/* one row per instruction */
	for i := range ops {
		op := &ops[i]
		table.Append([]string{
			fmt.Sprintf("%08x", pc+uint32(i)*4),
			fmt.Sprintf("%08x", uint32(op.Raw)),
			describe(op),
			boundaryNames[op.Boundary],
			constants(op),
			widths(op),
		})
	}
	table.Render()
}

func describe(op *trace.Op) string {
	s := op.Instr.String()
	if op.Instr != op.Raw {
		s += " (was: " + op.Raw.String() + ")"
	}
	if op.InDelaySlot {
		s += " [delay]"
	}
	if op.DelaySlotOmitted {
		s += " [no-delay]"
	}
	return s
}

// sourceRegs lists the distinct non-zero register fields of the instruction
// as it was before simplification.
func sourceRegs(op *trace.Op) []int {
	rs, rt := op.Raw.Rs(), op.Raw.Rt()
	switch {
	case op.Raw.Op() == mips.OP_J || op.Raw.Op() == mips.OP_JAL:
		return nil
	case rs == 0 && rt == 0:
		return nil
	case rs == 0 || rs == rt:
		return []int{rt}
	case rt == 0:
		return []int{rs}
	default:
		return []int{rs, rt}
	}
}

func constants(op *trace.Op) string {
	var ret []string
	for _, r := range sourceRegs(op) {
		if v, ok := op.Const.Known(r); ok {
			ret = append(ret, fmt.Sprintf("r%d=%#x", r, v))
		}
	}
	return strings.Join(ret, " ")
}

func widths(op *trace.Op) string {
	var ret []string
	for _, r := range sourceRegs(op) {
		ret = append(ret, fmt.Sprintf("r%d:%d", r, op.Width.Width(r)))
	}
	return strings.Join(ret, " ")
}

// translate prints the host IR and the native code of the trace if asked.
func (self *dumper) translate(pc uint32, ops []trace.Op) error {
	if !self.cfg.HIR && !self.cfg.Native {
		return nil
	}

	/* no code cache, so nothing is ever linked */
	res, err := emitter.Translate(ops, pc, emitter.Config{
		CountPerOp: _CountPerOp,
		RAMSize:    _RAMSize,
		FR:         self.cfg.FR,
	})
	if err != nil {
		return err
	}

	/* the IR */
	defer res.Program.Free()
	if self.cfg.HIR {
		fmt.Fprintf(self.out, "host IR (%d bytes estimated):\n%s\n", res.Program.Size, res.Program.Disassemble())
	}

	/* the x86-64 listing */
	if self.cfg.Native {
		code, err := hir.Assemble(res.Program)
		if err != nil {
			return err
		}
		fmt.Fprintf(self.out, "native code (%d bytes):\n%s\n", len(code), hir.Listing(code, 0))
	}
	return nil
}
