// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

// Package formatutil colors terminal output and sanitizes strings for display.
package formatutil

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode"

	"golang.org/x/term"
)

var (
	Bold   = Color("\033[1m%s\033[0m")
	Faint  = Color("\033[2m%s\033[0m")
	Red    = Color("\033[1;31m%s\033[0m")
	Green  = Color("\033[1;32m%s\033[0m")
	Yellow = Color("\033[1;33m%s\033[0m")
	Cyan   = Color("\033[1;36m%s\033[0m")
)

// colorMode is 0 when colors follow the terminal, 1 when forced on and 2 when forced off
var colorMode atomic.Int32

// SetColor forces the colors on or off, regardless of whether stdout is a terminal
func SetColor(enabled bool) {
	if enabled {
		colorMode.Store(1)
	} else {
		colorMode.Store(2)
	}
}

// ResetColor makes the colors follow the terminal again
func ResetColor() {
	colorMode.Store(0)
}

// ColorEnabled returns true if the color functions emit escape sequences
func ColorEnabled() bool {
	switch colorMode.Load() {
	case 1:
		return true
	case 2:
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Color returns a function printing its arguments with the escape sequence format colorString when colors are
// enabled
func Color(colorString string) func(...interface{}) string {
	return func(args ...interface{}) string {
		if ColorEnabled() {
			return fmt.Sprintf(colorString, fmt.Sprint(args...))
		}
		return fmt.Sprint(args...)
	}
}

// Sanitize escapes the control characters of s, so that it prints on a single line without escape sequences
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			q := strconv.QuoteRune(r)
			b.WriteString(q[1 : len(q)-1])
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
