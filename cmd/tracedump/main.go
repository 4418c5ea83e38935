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

// Command tracedump shows how raw MIPS code is cut into traces, and what the
// recompiler makes of each of them.
package main

import (
	"fmt"
	"os"

	"github.com/cloudwego/mipsjit/internal/log"
	cli "github.com/urfave/cli/v2"
	"golang.org/x/exp/slog"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	baseFlag = &cli.StringFlag{
		Name:  "base",
		Usage: "guest address the image is loaded at",
		Value: "0x80000000",
	}
	pcFlag = &cli.StringFlag{
		Name:  "pc",
		Usage: "guest address of the first trace (default: the load address)",
	}
	countFlag = &cli.IntFlag{
		Name:  "count",
		Usage: "number of consecutive traces to dump",
		Value: 1,
	}
	maxTraceFlag = &cli.IntFlag{
		Name:  "max-trace",
		Usage: "maximum number of instructions in a trace (0 = up to the page end)",
		Value: 256,
	}
	frFlag = &cli.BoolFlag{
		Name:  "fr",
		Usage: "translate for Status.FR = 1",
		Value: true,
	}
	hirFlag = &cli.BoolFlag{
		Name:  "hir",
		Usage: "print the host IR of every trace",
	}
	nativeFlag = &cli.BoolFlag{
		Name:  "native",
		Usage: "print the x86-64 listing of every trace",
	}
	verboseFlag = &cli.BoolFlag{
		Name:  "verbose",
		Usage: "log at debug level",
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:      "tracedump",
		Usage:     "dump the traces of a raw big-endian MIPS image",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			configFlag,
			baseFlag,
			pcFlag,
			countFlag,
			maxTraceFlag,
			frFlag,
			hirFlag,
			nativeFlag,
			verboseFlag,
		},
		Action: dumpAction,
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dumpAction(ctx *cli.Context) error {
	cfg, err := makeConfig(ctx)
	if err != nil {
		return err
	}

	/* debug logging goes to stderr */
	if cfg.Verbose {
		log.SetDefault(log.NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: log.LevelTrace})))
	}

	/* load the image */
	img, err := loadImage(cfg.Image, cfg.Base)
	if err != nil {
		return err
	}

	/* dump the traces */
	d := &dumper{cfg: cfg, img: img, out: ctx.App.Writer}
	return d.run()
}
