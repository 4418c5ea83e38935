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

package debug

import (
	"testing"

	"github.com/cloudwego/mipsjit"
	"github.com/cloudwego/mipsjit/internal/machine"
	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStats(t *testing.T) {
	mem, err := mipsjit.NewMemory(1 << 16)
	require.NoError(t, err)
	mem.WritePhys(0, machine.SizeWord, uint64(mips.Branch(mips.OP_BEQ, 0, 0, -1)))

	/* translate a trace, then find it again */
	before := GetStats()
	e, err := mipsjit.NewEngine(mem, mipsjit.WithBackend(mipsjit.BackendEmulator), mipsjit.WithCacheSize(1<<16))
	require.NoError(t, err)
	defer e.Close()
	e.Context().PC = 0x80000000
	e.RunCycles(100)
	e.RunCycles(100)

	/* the counters only grow */
	after := GetStats()
	assert.NotEmpty(t, after.Host)
	assert.Greater(t, after.Compiler.Miss, before.Compiler.Miss)
	assert.Greater(t, after.Compiler.Hit, before.Compiler.Hit)
	assert.Greater(t, after.Cache.Links, before.Cache.Links)
}
