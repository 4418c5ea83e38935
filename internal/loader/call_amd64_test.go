//go:build !windows

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

package loader

import (
	"testing"
	"unsafe"

	"github.com/chenzhuoyu/iasm/x86_64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_Trampoline(t *testing.T) {
	var asm x86_64.Assembler
	require.NoError(t, asm.Assemble("movl (%rdi), %eax\naddl (%rsi), %eax\nmovq $1234, %rbx\nmovq $5678, %r14\nret"))

	/* load the code */
	rg, err := NewRegion(len(asm.Code()))
	require.NoError(t, err)
	defer rg.Close()
	require.NoError(t, rg.Write(0, asm.Code()))

	/* the trace sees both pointers and may clobber anything */
	ctx := uint32(40)
	ram := uint32(2)
	ret := Call(unsafe.Pointer(&ctx), unsafe.Pointer(&ram), rg.Base())
	assert.True(t, Supported())
	assert.Equal(t, uint32(42), ret)
}
