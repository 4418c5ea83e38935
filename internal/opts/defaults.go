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

package opts

import (
	"os"
	"strconv"

	"github.com/cloudwego/mipsjit/internal/hir"
)

const (
	_DefaultCacheSize  = 8 << 20 // 8M of translated code
	_DefaultMaxTrace   = 256     // cutoff at 256 guest instructions
	_DefaultCountPerOp = 2       // two counter ticks per instruction
	_DefaultMaxPages   = 4096    // 16M of guest code mapped at once
	_DefaultEventSlots = 16
)

var (
	CacheSize  = parseOrDefault("MIPSJIT_CACHE_SIZE", _DefaultCacheSize, 4096)
	MaxTrace   = parseOrDefault("MIPSJIT_MAX_TRACE", _DefaultMaxTrace, 1)
	CountPerOp = parseOrDefault("MIPSJIT_COUNT_PER_OP", _DefaultCountPerOp, 0)
	MaxPages   = parseOrDefault("MIPSJIT_MAX_PAGES", _DefaultMaxPages, 1)
	Backend    = parseBackend("MIPSJIT_BACKEND", hir.BackendAuto)
)

func parseOrDefault(key string, def int, min int) int {
	if env := os.Getenv(key); env == "" {
		return def
	} else if val, err := strconv.ParseUint(env, 0, 64); err != nil {
		panic("mipsjit: invalid value for " + key)
	} else if ret := int(val); ret < min {
		panic("mipsjit: value too small for " + key)
	} else {
		return ret
	}
}

func parseBackend(key string, def hir.Backend) hir.Backend {
	if env := os.Getenv(key); env == "" {
		return def
	} else if ret, ok := hir.ParseBackend(env); !ok {
		panic("mipsjit: invalid value for " + key)
	} else {
		return ret
	}
}
