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

	"github.com/pkg/errors"
)

// CompileError occurs when a trace cannot be translated. The engine runs
// such code in the interpreter instead.
type CompileError struct {
	PC  uint32
	Err error
}

func (self CompileError) Error() string {
	return fmt.Sprintf("CompileError(%#08x): %v", self.PC, self.Err)
}

func (self CompileError) Unwrap() error {
	return self.Err
}

// Cause returns the underlying sentinel error.
func (self CompileError) Cause() error {
	return errors.Cause(self.Err)
}
