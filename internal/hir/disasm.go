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

    `golang.org/x/arch/x86/x86asm`
)

// Listing disassembles native trace code located at base.
func Listing(code []byte, base uintptr) string {
    var pc int
    var ret []string

    /* decode until the end of buffer */
    for pc < len(code) {
        ins, err := x86asm.Decode(code[pc:], 64)
        at := uint64(base) + uint64(pc)

        /* undecodable bytes are dumped as-is */
        if err != nil {
            ret = append(ret, fmt.Sprintf("%#x  .byte %#02x", at, code[pc]))
            pc++
            continue
        }

        /* format in GNU syntax */
        ret = append(ret, fmt.Sprintf("%#x  %s", at, x86asm.GNUSyntax(ins, at, nil)))
        pc += ins.Len
    }

    /* join them together */
    return strings.Join(ret, "\n")
}
