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
    `github.com/chenzhuoyu/iasm/x86_64`
)

const (
    RAX = x86_64.RAX
    RCX = x86_64.RCX
    RDX = x86_64.RDX
    RBX = x86_64.RBX
    RSI = x86_64.RSI
    RDI = x86_64.RDI
    R8  = x86_64.R8
    R9  = x86_64.R9
    R10 = x86_64.R10
    R11 = x86_64.R11
    R12 = x86_64.R12
    R13 = x86_64.R13
    R14 = x86_64.R14
    R15 = x86_64.R15
)

const (
    EAX = x86_64.EAX
    ECX = x86_64.ECX
    CL  = x86_64.CL
)

// Fixed registers while a trace runs. RAX, RCX and RDX are scratch.
const (
    CTX = RDI
    RAM = RSI
)

const (
    XMMScratch = x86_64.XMM8
)

var nativeRegs = [NumRegs]x86_64.Register64{
    RBX, R12, R13, R14, R15, R8, R9, R10, R11,
}

func Ptr(base x86_64.Register, disp int32) *x86_64.MemoryOperand {
    return x86_64.Ptr(base, disp)
}

func Sib(base x86_64.Register, index x86_64.Register64, scale uint8, disp int32) *x86_64.MemoryOperand {
    return x86_64.Sib(base, index, scale, disp)
}
