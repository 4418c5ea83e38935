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

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var program = []mips.Instr{
	mips.Imm(mips.OP_ADDIU, 1, 0, 5),
	mips.Imm(mips.OP_ADDIU, 2, 1, 3),
	mips.Branch(mips.OP_BNE, 2, 0, -2),
	mips.ALU(mips.FN_ADDU, 3, 1, 2),
	mips.SYSCALL(),
}

func writeImage(t *testing.T, code []mips.Instr) string {
	buf := make([]byte, 0, len(code)*4)
	for _, op := range code {
		buf = binary.BigEndian.AppendUint32(buf, uint32(op))
	}
	file := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(file, buf, 0o644))
	return file
}

func TestImage_Window(t *testing.T) {
	img, err := newImage(make([]byte, 0x2000+2), 0x80000ff0)
	require.NoError(t, err)
	w, err := img.window(0x80000ff0)
	require.NoError(t, err)
	assert.Len(t, w, 4)
	w, err = img.window(0x80002fec)
	require.NoError(t, err)
	assert.Len(t, w, 1)
	_, err = img.window(0x80002ff0)
	assert.Error(t, err)
	_, err = img.window(0x80000ff2)
	assert.Error(t, err)
	_, err = newImage(nil, 0x80000002)
	assert.Error(t, err)
}

func TestDump_Table(t *testing.T) {
	img, err := newImage(nil, 0x80000000)
	require.NoError(t, err)
	img.words = program

	/* two traces, split after the delay slot */
	out := new(bytes.Buffer)
	d := &dumper{cfg: &dumpConfig{PC: 0x80000000, Count: 2, MaxTrace: 256, FR: true, HIR: true}, img: img, out: out}
	require.NoError(t, d.run())
	s := out.String()
	assert.Contains(t, s, "trace at 0x80000000, 4 instructions")
	assert.Contains(t, s, "trace at 0x80000010, 1 instructions")
	assert.Contains(t, s, "end-delay")
	assert.Contains(t, s, "[delay]")
	assert.Contains(t, s, "r1=0x5")
	assert.Contains(t, s, "host IR")
}

func TestApp_Config(t *testing.T) {
	image := writeImage(t, program)
	conf := filepath.Join(t.TempDir(), "dump.toml")
	require.NoError(t, os.WriteFile(conf, []byte("Count = 1\nMaxTrace = 2\n"), 0o644))

	/* flags win over the file */
	out := new(bytes.Buffer)
	app := newApp()
	app.Writer = out
	require.NoError(t, app.Run([]string{"tracedump", "--config", conf, "--pc", "0x80000004", image}))
	s := out.String()
	assert.Contains(t, s, "trace at 0x80000004, 2 instructions")
	assert.NotContains(t, s, "0x80000000")
}

func TestApp_BadConfig(t *testing.T) {
	conf := filepath.Join(t.TempDir(), "dump.toml")
	require.NoError(t, os.WriteFile(conf, []byte("Unknown = 1\n"), 0o644))
	app := newApp()
	app.Writer = new(bytes.Buffer)
	err := app.Run([]string{"tracedump", "--config", conf, writeImage(t, program)})
	assert.ErrorContains(t, err, "Unknown")
}
