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

Use [Load](filename) to load a configuration from a specific filename, or [NewDefault]() to obtain the default
configuration.

A config file should be in yaml format. The top-level fields can be any of the fields defined in the Config
struct type. The other fields are defined by the types of the fields of [Config] and nested struct types.
Lists that are not specified keep their default value. For example, a valid config file is as follows:

	options:
	  log-level: 4
	  max-depth: 3
	iterators:
	  - type: "^Processor$"
	    method: "^(MoveNext|Run)$"
	runtime:
	  column-set:
	    - type: "^ColumnData$"
	      method: "^(Set|Put)$"

# Identifying code elements

The config uses [CodeIdentifier] to identify specific code entities. For example, the runtime model lists the
methods returning the rows of a row set as code identifiers which identify specific methods of specific types.
An important feature of the code identifiers is that the string specifications are seen as regexes if they can be
compiled to regexes, otherwise they are strings.
*/
package config
