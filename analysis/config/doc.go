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

/*
Package config provides a simple way to manage configuration files.

Use [Load](filename) to load a configuration from a specific filename, or [NewDefault] to obtain the default
configuration used when no file is provided.

A config file should be in yaml or json format. The top-level fields are the fields of the [Options] struct, plus
the additional fields of [Config]. For example, a valid config file is as follows:

	upper-level: 4
	lower-level: -3
	log-level: 4
	rules-dir: rules
	builtin-prefixes:
	  - java
	  - android
	  - kotlin
	  - com.google.android

# Relative paths

Paths in the config file (rules-dir, platform-dir, output) are interpreted relative to the directory containing the
config file. Use [Config.RelPath] to resolve them.

# Level window

The upper-level and lower-level options bound the interprocedural recursion of the slicer: parameter and field
ascent never go past upper-level, call descent never goes below lower-level.
*/
package config
