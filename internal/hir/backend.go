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

package hir

import (
    `runtime`

    `github.com/klauspost/cpuid/v2`
)

type Backend int

const (
    BackendAuto Backend = iota
    BackendNative
    BackendEmulator
)

func (self Backend) String() string {
    switch self {
    case BackendAuto:
        return "auto"
    case BackendNative:
        return "native"
    case BackendEmulator:
        return "emulator"
    default:
        return "unknown"
    }
}

// ParseBackend accepts the names printed by Backend.String.
func ParseBackend(s string) (Backend, bool) {
    switch s {
    case "auto":
        return BackendAuto, true
    case "native":
        return BackendNative, true
    case "emulator":
        return BackendEmulator, true
    default:
        return BackendAuto, false
    }
}

// NativeSupported reports whether the host can run native traces, which
// need an x86-64 host with SSE2.
func NativeSupported() bool {
    return runtime.GOARCH == "amd64" && cpuid.CPU.Supports(cpuid.SSE, cpuid.SSE2)
}

// HostCPU names the host processor.
func HostCPU() string {
    if cpuid.CPU.BrandName != "" {
        return cpuid.CPU.BrandName
    } else {
        return runtime.GOARCH
    }
}

// Resolve turns BackendAuto into a concrete backend for this host, and
// downgrades BackendNative where it cannot run.
func (self Backend) Resolve() Backend {
    if self == BackendEmulator {
        return BackendEmulator
    } else if NativeSupported() {
        return BackendNative
    } else {
        return BackendEmulator
    }
}
