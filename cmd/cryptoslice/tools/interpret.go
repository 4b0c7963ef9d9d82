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

package tools

import "regexp"

// Captures errors happening before any analysis starts
var regexFatal = regexp.MustCompile("^fatal: ")

// Captures the input errors: missing dump, or a file that is not a dump
var regexInput = regexp.MustCompile("input .*: |unknown program dump extension")

var regexPlatform = regexp.MustCompile("platform directory")

var regexRules = regexp.MustCompile("rules directory|no rule in")

// Captures dumps that could not be decoded
var regexDecode = regexp.MustCompile("could not decode (msgpack )?program dump")

// HintForErrorMessage looks for specific error message and returns some other message that might help the user
// resolve the problem.
func HintForErrorMessage(errMsg string) string {
	if regexDecode.MatchString(errMsg) {
		return "the dump extension must match its encoding: yaml or json for .yaml, .yml and .json, msgpack for " +
			".msgpack and .mp"
	}
	if !regexFatal.MatchString(errMsg) {
		return ""
	}
	switch {
	case regexInput.MatchString(errMsg):
		return "-i must be the path of a program dump ending in .yaml, .yml, .json, .msgpack or .mp"
	case regexPlatform.MatchString(errMsg):
		return "-p must be the directory of the platform SDK (e.g. platforms/android-33), or be omitted"
	case regexRules.MatchString(errMsg):
		return "-r must be a directory holding json or yaml rule files; check them with `cryptoslice rules validate`"
	}
	return ""
}
