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

package opts

import (
	"github.com/cloudwego/mipsjit/internal/hir"
)

type Options struct {
	CacheSize  int
	MaxTrace   int
	CountPerOp int
	MaxPages   int
	EventSlots int
	Backend    hir.Backend
	GoldenEye  bool
}

// CanExtend reports whether a trace of n instructions may grow further.
func (self *Options) CanExtend(n int) bool {
	return self.MaxTrace > n || self.MaxTrace == 0
}

func GetDefaultOptions() Options {
	return Options{
		CacheSize:  CacheSize,
		MaxTrace:   MaxTrace,
		CountPerOp: CountPerOp,
		MaxPages:   MaxPages,
		EventSlots: _DefaultEventSlots,
		Backend:    Backend,
		GoldenEye:  false,
	}
}
