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

import "regexp"

// A CodeIdentifier identifies a code element of the analyzed program: a type, a method of a type, or a field.
// A code identifier can be identified from its assembly, package, type, method or field, or any combination of those.
// Each non-empty field is interpreted as a regex if it compiles to one, otherwise it is compared as a string.
type CodeIdentifier struct {
	// Assembly is the unit of compilation the code element belongs to (an assembly, or a Go package path)
	Assembly string `yaml:"assembly,omitempty"`
	// Package is the namespace of the type (for Go, the package name)
	Package string `yaml:"package,omitempty"`
	// Type is the name of the type, including generic arguments (e.g. IEnumerable<Row>)
	Type string `yaml:"type,omitempty"`
	// Method is the name of a method of Type
	Method string `yaml:"method,omitempty"`
	// Field is the name of a field of Type
	Field string `yaml:"field,omitempty"`

	// This will not be part of the yaml config
	computedRegexs *codeIdentifierRegex
}

type codeIdentifierRegex struct {
	assemblyRegex *regexp.Regexp
	packageRegex  *regexp.Regexp
	typeRegex     *regexp.Regexp
	methodRegex   *regexp.Regexp
	fieldRegex    *regexp.Regexp
}

// CompileRegexes compiles the strings in the code identifier into regexes. It compiles all identifiers into regexes
// or none.
func CompileRegexes(cid CodeIdentifier) CodeIdentifier {
	var regexes [5]*regexp.Regexp
	for i, s := range []string{cid.Assembly, cid.Package, cid.Type, cid.Method, cid.Field} {
		r, err := regexp.Compile(s)
		if err != nil {
			return cid
		}
		regexes[i] = r
	}
	cid.computedRegexs = &codeIdentifierRegex{
		assemblyRegex: regexes[0],
		packageRegex:  regexes[1],
		typeRegex:     regexes[2],
		methodRegex:   regexes[3],
		fieldRegex:    regexes[4],
	}
	return cid
}

// compileAll compiles the regexes of every code identifier in the slice, in place
func compileAll(cids []CodeIdentifier) {
	for i := range cids {
		cids[i] = CompileRegexes(cids[i])
	}
}

// equalOnNonEmptyFields returns true if each of the receiver's fields are either equal to the corresponding
// argument's field, or the argument's field is empty
func (cid CodeIdentifier) equalOnNonEmptyFields(cidRef CodeIdentifier) bool {
	match := func(r *regexp.Regexp, ref string, val string) bool {
		if ref == "" {
			return true
		}
		if r != nil {
			return r.MatchString(val)
		}
		return ref == val
	}
	re := cidRef.computedRegexs
	if re == nil {
		re = &codeIdentifierRegex{}
	}
	return match(re.assemblyRegex, cidRef.Assembly, cid.Assembly) &&
		match(re.packageRegex, cidRef.Package, cid.Package) &&
		match(re.typeRegex, cidRef.Type, cid.Type) &&
		match(re.methodRegex, cidRef.Method, cid.Method) &&
		match(re.fieldRegex, cidRef.Field, cid.Field)
}

// MatchesSome returns true if some identifier in refs matches cid. Empty fields of the identifiers in refs match
// any value.
func (cid CodeIdentifier) MatchesSome(refs []CodeIdentifier) bool {
	return ExistsCid(refs, cid.equalOnNonEmptyFields)
}

// ExistsCid is true if there is some x in a such that f(x) is true.
func ExistsCid(a []CodeIdentifier, f func(identifier CodeIdentifier) bool) bool {
	for _, x := range a {
		if f(x) {
			return true
		}
	}
	return false
}
