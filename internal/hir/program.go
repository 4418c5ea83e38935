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
    `fmt`
    `strings`
)

// Program is a built host IR program. Size is the budget it was charged,
// an upper bound of its native size.
type Program struct {
    Head *Instr
    Size int
}

func (self Program) Free() {
    for p := self.Head; p != nil; {
        q := p.Ln
        freeInstr(p)
        p = q
    }
}

func (self Program) Len() (n int) {
    for p := self.Head; p != nil; p = p.Ln {
        n++
    }
    return
}

func (self Program) Disassemble() string {
    nb := 0
    ret := make([]string, 0, 16)
    refs := make(map[*Instr]string)

    /* prescan to get all the labels */
    for p := self.Head; p != nil; p = p.Ln {
        if p.isBranch() && p.Br != nil {
            if _, ok := refs[p.Br]; !ok {
                refs[p.Br] = fmt.Sprintf("L_%d", nb)
                nb++
            }
        }
    }

    /* disassemble each instruction */
    for p := self.Head; p != nil; p = p.Ln {
        if lb, ok := refs[p]; !ok {
            ret = append(ret, "\t"+p.disassemble(refs))
        } else {
            ret = append(ret, fmt.Sprintf("%s:\n\t%s", lb, p.disassemble(refs)))
        }
    }

    /* join them together */
    return strings.Join(ret, "\n")
}
