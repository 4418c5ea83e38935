/*
 * Copyright 2022 CloudWeGo Authors
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
	"sync/atomic"

	"github.com/cloudwego/mipsjit/internal/codecache"
	"github.com/cloudwego/mipsjit/internal/engine"
	"github.com/cloudwego/mipsjit/internal/hir"
	"github.com/cloudwego/mipsjit/internal/loader"
)

// A Stats records statistics about the recompiler.
type Stats struct {
	Host     string
	Native   bool
	Memory   MemStats
	Cache    CacheStats
	Compiler CompilerStats
}

// A MemStats records statistics about the executable memory of the code caches.
type MemStats struct {
	Alloc int
	Count int
}

// A CacheStats records statistics about the code caches.
type CacheStats struct {
	Blocks        int
	Evictions     int
	Invalidations int
	Links         int
}

// A CompilerStats records how traces were found or translated.
type CompilerStats struct {
	Hit    int
	Miss   int
	Fail   int
	Interp int
}

// GetStats returns statistics of the recompiler.
func GetStats() Stats {
	return Stats{
		Host:   hir.HostCPU(),
		Native: hir.NativeSupported() && loader.Supported(),
		Memory: MemStats{
			Count: int(atomic.LoadUint32(&loader.FnCount)),
			Alloc: int(atomic.LoadUintptr(&loader.LoadSize)),
		},
		Cache: CacheStats{
			Blocks:        int(atomic.LoadInt64(&codecache.BlockCount)),
			Evictions:     int(atomic.LoadInt64(&codecache.EvictCount)),
			Invalidations: int(atomic.LoadInt64(&codecache.InvalidateCount)),
			Links:         int(atomic.LoadInt64(&codecache.LinkCount)),
		},
		Compiler: CompilerStats{
			Hit:    int(atomic.LoadUint64(&engine.HitCount)),
			Miss:   int(atomic.LoadUint64(&engine.MissCount)),
			Fail:   int(atomic.LoadUint64(&engine.FailCount)),
			Interp: int(atomic.LoadUint64(&engine.InterpCount)),
		},
	}
}
