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
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"unicode"

	"github.com/cloudwego/mipsjit/internal/mips"
	"github.com/naoina/toml"
	"github.com/pkg/errors"
	cli "github.com/urfave/cli/v2"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		link := ""
		if unicode.IsUpper(rune(rt.Name()[0])) && rt.PkgPath() != "main" {
			link = fmt.Sprintf(", see https://pkg.go.dev/%s#%s for available fields", rt.PkgPath(), rt.Name())
		}
		return fmt.Errorf("field '%s' is not defined in %s%s", field, rt.String(), link)
	},
}

type dumpConfig struct {
	Image    string
	Base     uint32
	PC       uint32
	Count    int
	MaxTrace int
	FR       bool
	HIR      bool
	Native   bool
	Verbose  bool
}

func loadConfig(file string, cfg *dumpConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	/* add the file name to errors that have a line number */
	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// makeConfig applies the command line on top of the configuration file.
func makeConfig(ctx *cli.Context) (*dumpConfig, error) {
	var err error
	cfg := &dumpConfig{
		Count:    countFlag.Value,
		MaxTrace: maxTraceFlag.Value,
		FR:       frFlag.Value,
	}

	/* the file first */
	if file := ctx.String(configFlag.Name); file != "" {
		if err = loadConfig(file, cfg); err != nil {
			return nil, err
		}
	}

	/* the image */
	if ctx.NArg() > 0 {
		cfg.Image = ctx.Args().First()
	}
	if cfg.Image == "" {
		return nil, errors.New("no image specified")
	}

	/* addresses */
	if ctx.IsSet(baseFlag.Name) || cfg.Base == 0 {
		if cfg.Base, err = parseAddr(ctx.String(baseFlag.Name)); err != nil {
			return nil, err
		}
	}
	if ctx.IsSet(pcFlag.Name) {
		if cfg.PC, err = parseAddr(ctx.String(pcFlag.Name)); err != nil {
			return nil, err
		}
	}
	if cfg.PC == 0 {
		cfg.PC = cfg.Base
	}

	/* everything else */
	if ctx.IsSet(countFlag.Name) {
		cfg.Count = ctx.Int(countFlag.Name)
	}
	if ctx.IsSet(maxTraceFlag.Name) {
		cfg.MaxTrace = ctx.Int(maxTraceFlag.Name)
	}
	if ctx.IsSet(frFlag.Name) {
		cfg.FR = ctx.Bool(frFlag.Name)
	}
	cfg.HIR = cfg.HIR || ctx.Bool(hirFlag.Name)
	cfg.Native = cfg.Native || ctx.Bool(nativeFlag.Name)
	cfg.Verbose = cfg.Verbose || ctx.Bool(verboseFlag.Name)
	return cfg, nil
}

func parseAddr(s string) (uint32, error) {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid address %q", s)
	}
	return uint32(v), nil
}

// image is a raw big-endian memory image placed at a guest address.
type image struct {
	base  uint32
	words []mips.Instr
}

func loadImage(file string, base uint32) (*image, error) {
	buf, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return newImage(buf, base)
}

func newImage(buf []byte, base uint32) (*image, error) {
	if base&3 != 0 {
		return nil, errors.Errorf("unaligned load address %#08x", base)
	}

	/* trailing bytes do not make an instruction */
	ret := &image{base: base, words: make([]mips.Instr, len(buf)/4)}
	for i := range ret.words {
		ret.words[i] = mips.Instr(binary.BigEndian.Uint32(buf[i*4:]))
	}
	return ret, nil
}

// window returns the words from pc to the end of its page, or of the image.
func (self *image) window(pc uint32) ([]mips.Instr, error) {
	if pc&3 != 0 || pc < self.base || int(pc-self.base)/4 >= len(self.words) {
		return nil, errors.Errorf("address %#08x is outside the image", pc)
	}

	/* traces never cross a page */
	i := int(pc-self.base) / 4
	n := int(0x1000-pc&0xfff) / 4
	if i+n > len(self.words) {
		n = len(self.words) - i
	}
	return self.words[i : i+n], nil
}
