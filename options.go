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

package mipsjit

import (
	"fmt"

	"github.com/cloudwego/mipsjit/internal/opts"
)

// Option is the property setter function for opts.Options.
type Option func(*opts.Options)

const (
	_MinCacheSize = 4096
)

// WithCacheSize sets the size of the code cache in bytes.
//
// Traces are evicted oldest first once it is full, so a cache too small for
// the working set of the guest means translating the same code over and
// over again.
//
// The default value of this option is "8388608" (8 MiB).
func WithCacheSize(size int) Option {
	if size < _MinCacheSize {
		panic(fmt.Sprintf("mipsjit: invalid cache size: %d", size))
	} else {
		return func(o *opts.Options) { o.CacheSize = size }
	}
}

// WithMaxTrace limits the number of instructions in a trace.
//
// Set this option to "0" disables this limit, traces still never cross a
// page.
//
// The default value of this option is "256".
func WithMaxTrace(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("mipsjit: invalid trace length: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxTrace = n }
	}
}

// WithCountPerOp sets how many counter cycles each guest instruction takes.
//
// The default value of this option is "2".
func WithCountPerOp(n int) Option {
	if n < 0 {
		panic(fmt.Sprintf("mipsjit: invalid count per op: %d", n))
	} else {
		return func(o *opts.Options) { o.CountPerOp = n }
	}
}

// WithMaxPages limits how many guest pages may hold translated code at once.
func WithMaxPages(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("mipsjit: invalid page limit: %d", n))
	} else {
		return func(o *opts.Options) { o.MaxPages = n }
	}
}

// WithEventSlots sets how many events may be pending at once.
func WithEventSlots(n int) Option {
	if n <= 0 {
		panic(fmt.Sprintf("mipsjit: invalid event slots: %d", n))
	} else {
		return func(o *opts.Options) { o.EventSlots = n }
	}
}

// WithBackend selects how translated traces are run. BackendNative falls
// back to the emulator on hosts that cannot run the generated code.
func WithBackend(b Backend) Option {
	return func(o *opts.Options) { o.Backend = b }
}

// WithGoldenEye enables the address remapping GoldenEye 007 relies on.
func WithGoldenEye(v bool) Option {
	return func(o *opts.Options) { o.GoldenEye = v }
}
