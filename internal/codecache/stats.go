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

package codecache

import (
	"sync/atomic"
)

// Totals over every cache of the process.
var (
	BlockCount      int64
	EvictCount      int64
	InvalidateCount int64
	LinkCount       int64
)

type Stats struct {
	Blocks         int
	Pages          int
	BytesUsed      int
	BytesAvailable int
	Evictions      int
	Invalidations  int
	Supersedes     int
	Links          int
	FreeCells      int
}

func (self *Cache) bump(local *int, total *int64, d int) {
	*local += d
	atomic.AddInt64(total, int64(d))
}

func (self *Cache) Stats() Stats {
	ret := self.stats
	ret.Pages = int(self.pages.Count())
	ret.BytesUsed = self.BytesUsed()
	ret.BytesAvailable = self.BytesAvailable()
	ret.FreeCells = self.free.Size()
	return ret
}
