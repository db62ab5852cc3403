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

package analysis

import (
	"fmt"

	"golang.org/x/tools/go/ssa"
)

// SSAStatistics counts the elements of the SSA form of a set of functions that matter to the cost and precision
// of the lineage analysis
type SSAStatistics struct {
	Functions         uint
	NonemptyFunctions uint
	Blocks            uint
	Instructions      uint
	// Invokes are the calls through interfaces, resolved with the points-to graph
	Invokes uint
	// DynamicCalls are the calls to function values, which are not analyzed
	DynamicCalls uint
	// Defers are the deferred calls, which are not analyzed
	Defers uint
}

// ComputeSSAStatistics returns the statistics of the functions
func ComputeSSAStatistics(functions []*ssa.Function) SSAStatistics {
	var s SSAStatistics
	for _, f := range functions {
		s.Functions++
		if len(f.Blocks) == 0 {
			continue
		}
		s.NonemptyFunctions++
		for _, b := range f.Blocks {
			s.Blocks++
			s.Instructions += uint(len(b.Instrs))
			for _, i := range b.Instrs {
				switch i := i.(type) {
				case *ssa.Defer:
					s.Defers++
				case ssa.CallInstruction:
					c := i.Common()
					if c.IsInvoke() {
						s.Invokes++
					} else if c.StaticCallee() == nil {
						if _, builtin := c.Value.(*ssa.Builtin); !builtin {
							s.DynamicCalls++
						}
					}
				}
			}
		}
	}
	return s
}

func (s SSAStatistics) String() string {
	return fmt.Sprintf("%d functions (%d with a body), %d blocks, %d instructions, %d invokes, %d dynamic calls, "+
		"%d defers", s.Functions, s.NonemptyFunctions, s.Blocks, s.Instructions, s.Invokes, s.DynamicCalls, s.Defers)
}
