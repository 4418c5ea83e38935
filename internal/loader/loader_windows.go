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
	"github.com/pkg/errors"
)

var (
	FnCount  uint32
	LoadSize uintptr
)

// Region is unavailable on Windows, the emulator backend is used instead.
type Region struct{}

func NewRegion(_ int) (*Region, error) {
	return nil, errors.New("loader: executable regions are not supported on windows")
}

func (self *Region) Base() uintptr { return 0 }
func (self *Region) Size() int { return 0 }
func (self *Region) Bytes(_ int, _ int) []byte { return nil }
func (self *Region) Write(_ int, _ []byte) error { return errors.New("loader: region is not mapped") }
func (self *Region) Close() error { return nil }
