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

// Package log is a small structured logger over slog. Every package of the
// recompiler logs through Root.
package log

import (
	"context"
	"os"
	"sync/atomic"

	"golang.org/x/exp/slog"
)

const LevelTrace slog.Level = -8

// Logger writes leveled records with alternating key-value context.
type Logger interface {
	With(ctx ...interface{}) Logger
	Write(level slog.Level, msg string, ctx ...interface{})
	Enabled(level slog.Level) bool
	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
}

type logger struct {
	inner *slog.Logger
}

// NewLogger wraps a slog handler.
func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (self *logger) With(ctx ...interface{}) Logger {
	return &logger{inner: self.inner.With(ctx...)}
}

func (self *logger) Write(level slog.Level, msg string, ctx ...interface{}) {
	self.inner.Log(context.Background(), level, msg, ctx...)
}

func (self *logger) Enabled(level slog.Level) bool {
	return self.inner.Enabled(context.Background(), level)
}

func (self *logger) Trace(msg string, ctx ...interface{}) { self.Write(LevelTrace, msg, ctx...) }
func (self *logger) Debug(msg string, ctx ...interface{}) { self.Write(slog.LevelDebug, msg, ctx...) }
func (self *logger) Info(msg string, ctx ...interface{})  { self.Write(slog.LevelInfo, msg, ctx...) }
func (self *logger) Warn(msg string, ctx ...interface{})  { self.Write(slog.LevelWarn, msg, ctx...) }
func (self *logger) Error(msg string, ctx ...interface{}) { self.Write(slog.LevelError, msg, ctx...) }

/** Root Logger **/

// _Root keeps the dynamic type stored in root the same for every Logger.
type _Root struct {
	Logger
}

var root atomic.Value

func init() {
	SetDefault(NewLogger(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

// SetDefault replaces the root logger.
func SetDefault(l Logger) {
	root.Store(_Root{l})
}

func Root() Logger {
	return root.Load().(_Root).Logger
}

func Trace(msg string, ctx ...interface{}) { Root().Write(LevelTrace, msg, ctx...) }
func Debug(msg string, ctx ...interface{}) { Root().Write(slog.LevelDebug, msg, ctx...) }
func Info(msg string, ctx ...interface{})  { Root().Write(slog.LevelInfo, msg, ctx...) }
func Warn(msg string, ctx ...interface{})  { Root().Write(slog.LevelWarn, msg, ctx...) }
func Error(msg string, ctx ...interface{}) { Root().Write(slog.LevelError, msg, ctx...) }

/** Filters **/

// LoggerFilter decides whether a record is written.
type LoggerFilter interface {
	check() bool
}

// EveryN lets one record in N through.
type EveryN struct {
	N       uint32
	counter uint32
}

func (self *EveryN) check() bool {
	if self == nil || self.N == 0 {
		return true
	}
	c := atomic.AddUint32(&self.counter, 1)
	return c%self.N == 1
}

func WarnBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	if filter == nil || filter.check() {
		Root().Write(slog.LevelWarn, msg, ctx...)
	}
}

func ErrorBy(filter LoggerFilter, msg string, ctx ...interface{}) {
	if filter == nil || filter.check() {
		Root().Write(slog.LevelError, msg, ctx...)
	}
}
