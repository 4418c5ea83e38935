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
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegion_Write(t *testing.T) {
	size := atomic.LoadUintptr(&LoadSize)
	rg, err := NewRegion(100)
	require.NoError(t, err)
	assert.Equal(t, os.Getpagesize(), rg.Size())
	assert.Equal(t, size+uintptr(rg.Size()), atomic.LoadUintptr(&LoadSize))

	/* writes straddling a page boundary */
	fns := atomic.LoadUint32(&FnCount)
	require.NoError(t, rg.Write(10, []byte{1, 2, 3}))
	assert.Equal(t, []byte{1, 2, 3}, rg.Bytes(10, 3))
	assert.Equal(t, fns+1, atomic.LoadUint32(&FnCount))
	assert.Error(t, rg.Write(rg.Size()-1, []byte{1, 2}))
	assert.Error(t, rg.Write(-1, []byte{1}))

	/* unmapping returns the memory */
	require.NoError(t, rg.Close())
	assert.Equal(t, size, atomic.LoadUintptr(&LoadSize))
	assert.NoError(t, rg.Close())
}
