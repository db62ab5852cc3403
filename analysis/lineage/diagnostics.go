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

package lineage

import (
	"fmt"
	"strings"
	"sync"
)

// Reasons reported by the analysis when it loses precision
const (
	ReasonStaticLoad        = "Static load of a field of an unknown type not supported"
	ReasonLoadReference     = "Load Reference not Supported"
	ReasonLoadDereference   = "Load Dereference not Supported"
	ReasonIndirectCall      = "Indirect method invocation not Supported"
	ReasonUnsupportedLoad   = "Unsupported load"
	ReasonStoreDereference  = "Unsupported Store Dereference"
	ReasonUnsupportedStore  = "Unsupported Store"
	ReasonIterationBound    = "Iteration bound reached"
	ReasonRecursiveCall     = "Recursive invocation not analyzed"
	ReasonMaxDepth          = "Maximum call depth reached"
	reasonNotAnalyzedFormat = "Invocation to %s not analyzed with argument potentially reaching the columns"
)

// ReasonNotAnalyzed returns the reason reported for a call to method that could not be analyzed while one of its
// arguments may reach the input or output rows. The causes, such as ReasonRecursiveCall, are appended.
func ReasonNotAnalyzed(method fmt.Stringer, causes ...string) string {
	r := fmt.Sprintf(reasonNotAnalyzedFormat, method)
	if len(causes) > 0 {
		r += ": " + strings.Join(causes, "; ")
	}
	return r
}

// A Diagnostic records why the analysis lost precision at an instruction
type Diagnostic struct {
	Method      string
	Instruction string
	Label       string
	Reason      string
}

func (d Diagnostic) String() string {
	if d.Label != "" {
		return fmt.Sprintf("%s at %s (%s): %s", d.Method, d.Label, d.Instruction, d.Reason)
	}
	return fmt.Sprintf("%s (%s): %s", d.Method, d.Instruction, d.Reason)
}

// Diagnostics collects the diagnostics and the failures of an analysis. It is safe for concurrent use.
type Diagnostics struct {
	mu              sync.Mutex
	list            []Diagnostic
	seen            map[Diagnostic]bool
	frameworkErrors []error
}

// NewDiagnostics returns an empty collection of diagnostics
func NewDiagnostics() *Diagnostics {
	return &Diagnostics{seen: map[Diagnostic]bool{}}
}

// Add records a diagnostic. A diagnostic already recorded is ignored: the fixpoint may visit an instruction
// several times. Returns true if the diagnostic is new.
func (d *Diagnostics) Add(diag Diagnostic) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.seen == nil {
		d.seen = map[Diagnostic]bool{}
	}
	if d.seen[diag] {
		return false
	}
	d.seen[diag] = true
	d.list = append(d.list, diag)
	return true
}

// AddFrameworkError records a failure of the analysis of a callee
func (d *Diagnostics) AddFrameworkError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameworkErrors = append(d.frameworkErrors, err)
}

// All returns a copy of the diagnostics, in the order they were added
func (d *Diagnostics) All() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Diagnostic(nil), d.list...)
}

// Len returns the number of diagnostics
func (d *Diagnostics) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.list)
}

// FrameworkErrors returns the failures recorded
func (d *Diagnostics) FrameworkErrors() []error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]error(nil), d.frameworkErrors...)
}

// Merge adds the diagnostics and failures of other to d
func (d *Diagnostics) Merge(other *Diagnostics) {
	if other == nil || other == d {
		return
	}
	diags := other.All()
	errs := other.FrameworkErrors()
	for _, diag := range diags {
		d.Add(diag)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frameworkErrors = append(d.frameworkErrors, errs...)
}
