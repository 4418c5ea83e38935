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

package trace

import (
	"fmt"

	"github.com/cloudwego/mipsjit/internal/mips"
)

// Op is one analyzed instruction of a trace. Const and Width describe the
// register state before the instruction executes.
type Op struct {
	Raw              mips.Instr
	Instr            mips.Instr
	Boundary         int
	Const            ConstAnalysis
	Width            WidthAnalysis
	InDelaySlot      bool
	DelaySlotOmitted bool
}

func (self *Op) String() string {
	s := fmt.Sprintf("%08x  %-28s", uint32(self.Raw), self.Instr.String())
	if self.InDelaySlot {
		s += " [delay]"
	}
	if self.DelaySlotOmitted {
		s += " [no-delay]"
	}
	return s
}

// BuildTrace simplifies and analyzes raw until the trace ends, returning at
// most maxCount ops. It never touches any cache state.
func BuildTrace(raw []mips.Instr, maxCount int) ([]Op, int) {
	var c ConstAnalysis
	var w WidthAnalysis

	/* the trace never reaches past its budget */
	n := len(raw)
	if n > maxCount {
		n = maxCount
	}

	/* both analyses start fresh */
	InitConstAnalysis(&c)
	InitWidthAnalysis(&w)
	ret := make([]Op, 0, n)

	for i := 0; i < n; i++ {
		op := Simplify(MandatorySimplify(raw[i]))
		ds := i > 0 && ret[i-1].Boundary == EndDelay
		rec := Op{Raw: raw[i], Const: c, Width: w, InDelaySlot: ds}

		/* both analyses advance together */
		op = UpdateConstAnalysis(&c, op)
		op = UpdateWidthAnalysis(&w, &c, op)
		rec.Instr = op
		rec.Boundary = IsTraceBoundary(op)

		/* the delay slot does not fit */
		if rec.Boundary == EndDelay && i == n-1 {
			rec.DelaySlotOmitted = true
		}

		/* add to the trace */
		ret = append(ret, rec)
		if ds || rec.Boundary == EndNow || rec.DelaySlotOmitted {
			break
		}
	}
	return ret, len(ret)
}
