// Copyright 2025 Buf Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build debug

// Package debug includes debugging helpers.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/timandy/routine"
)

// Enabled is true if the module is being built with the debug tag, which
// enables trace logging and assertions.
const Enabled = true

// FilterEnv names an environment variable holding a regexp. When set, only
// trace entries whose operation or message match it are printed.
const FilterEnv = "PROTOSCHEMA_DEBUG_FILTER"

var (
	logger = &logrus.Logger{
		Out:       os.Stderr,
		Formatter: &logrus.TextFormatter{DisableTimestamp: true},
		Hooks:     make(logrus.LevelHooks),
		Level:     logrus.TraceLevel,
	}
	filter *regexp.Regexp
)

func init() {
	if s := os.Getenv(FilterEnv); s != "" {
		filter = regexp.MustCompile(s)
	}
}

// Log writes a trace entry for operation, tagged with the calling package,
// source position, and goroutine.
func Log(operation string, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if filter != nil && !filter.MatchString(operation+": "+msg) {
		return
	}

	pkg, pos := "?", "?"
	if pc, file, line, ok := runtime.Caller(1); ok {
		pos = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		if fn := runtime.FuncForPC(pc); fn != nil {
			pkg = callerPackage(fn.Name())
		}
	}

	logger.WithFields(logrus.Fields{
		"pkg": pkg,
		"pos": pos,
		"g":   routine.Goid(),
		"op":  operation,
	}).Trace(msg)
}

// callerPackage trims a function name such as
// "buf.build/go/protoschema/internal/wire.(*Reader).Tag" to "wire".
func callerPackage(fn string) string {
	fn = strings.TrimPrefix(fn, "buf.build/go/protoschema/internal/")
	fn = strings.TrimPrefix(fn, "buf.build/go/")
	if i := strings.Index(fn, "."); i >= 0 {
		fn = fn[:i]
	}
	return fn
}

// Assert panics if cond is false, but only in debug mode.
func Assert(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Errorf("protoschema: internal assertion failed: "+format, args...))
	}
}
