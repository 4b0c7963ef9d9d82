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

package config

const (
	// DefaultUpperLevel is the default bound for caller-side ascent (parameters and fields)
	DefaultUpperLevel = 5
	// DefaultLowerLevel is the default bound for callee-side descent
	DefaultLowerLevel = -5
	// DefaultSolverTimeoutMs is the default time budget of a single solver query, in milliseconds
	DefaultSolverTimeoutMs = 180
	// DefaultMaxCallerChains bounds the number of caller chains enumerated for one method
	DefaultMaxCallerChains = 1000

	// ReportFormatText is the colored, human-readable report format
	ReportFormatText = "text"
	// ReportFormatJSON is the json report format
	ReportFormatJSON = "json"
	// ReportFormatYAML is the yaml report format
	ReportFormatYAML = "yaml"
)

// DefaultBuiltinPrefixes are the class name prefixes of platform and language runtime classes.
var DefaultBuiltinPrefixes = []string{"java", "android", "kotlin", "dalvik", "sun.", "org.apache.http", "org.json"}

// DefaultTrackedReturnTypes are the builtin return types for which criteria are still generated when the caller
// returns them. Callers returning other builtin types (or boolean) are ignored by the criteria generator.
var DefaultTrackedReturnTypes = []string{"java.lang.String", "javax.crypto.SecretKey", "javax.crypto.Cipher",
	"javax.crypto.Mac"}
