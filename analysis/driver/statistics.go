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

package driver

import (
	"fmt"
	"sort"
	"strings"

	"github.com/awslabs/ar-go-lineage/analysis/lineage"
	"github.com/puzpuzpuz/xsync/v4"
)

// Statistics aggregates the outcomes of the analyses of a run. It is safe for concurrent use.
type Statistics struct {
	methods   *xsync.Counter
	top       *xsync.Counter
	visits    *xsync.Counter
	failures  *xsync.Counter
	reasons   *xsync.Map[string, *xsync.Counter]
	durations *xsync.Map[string, int64]
}

// NewStatistics returns empty statistics
func NewStatistics() *Statistics {
	return &Statistics{
		methods:   xsync.NewCounter(),
		top:       xsync.NewCounter(),
		visits:    xsync.NewCounter(),
		failures:  xsync.NewCounter(),
		reasons:   xsync.NewMap[string, *xsync.Counter](),
		durations: xsync.NewMap[string, int64](),
	}
}

// Record adds the outcome of the analysis of one method
func (s *Statistics) Record(res *lineage.Result, nanos int64) {
	s.methods.Inc()
	s.visits.Add(int64(res.Visits))
	if res.Exit().IsTop {
		s.top.Inc()
	}
	for _, d := range res.Diagnostics.All() {
		s.reason(d.Reason).Inc()
	}
	s.failures.Add(int64(len(res.Diagnostics.FrameworkErrors())))
	s.durations.Store(res.Method.String(), nanos)
}

// RecordFailure counts a method whose analysis could not complete
func (s *Statistics) RecordFailure() {
	s.failures.Inc()
}

func (s *Statistics) reason(r string) *xsync.Counter {
	// calls to unanalyzable methods are counted together
	if strings.HasPrefix(r, "Invocation to ") {
		r = lineage.ReasonNotAnalyzed(anyMethod{})
	}
	c, _ := s.reasons.LoadOrStore(r, xsync.NewCounter())
	return c
}

type anyMethod struct{}

func (anyMethod) String() string { return "method" }

// Methods returns the number of methods analyzed
func (s *Statistics) Methods() int64 { return s.methods.Value() }

// Top returns the number of methods whose analysis reached top
func (s *Statistics) Top() int64 { return s.top.Value() }

// Visits returns the total number of node visits
func (s *Statistics) Visits() int64 { return s.visits.Value() }

// Failures returns the number of failures of the framework
func (s *Statistics) Failures() int64 { return s.failures.Value() }

// Reasons returns the number of diagnostics per reason
func (s *Statistics) Reasons() map[string]int64 {
	res := map[string]int64{}
	s.reasons.Range(func(r string, c *xsync.Counter) bool {
		res[r] = c.Value()
		return true
	})
	return res
}

// Slowest returns the n methods whose analysis took the longest, slowest first
func (s *Statistics) Slowest(n int) []string {
	type entry struct {
		method string
		nanos  int64
	}
	var entries []entry
	s.durations.Range(func(m string, d int64) bool {
		entries = append(entries, entry{m, d})
		return true
	})
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].nanos != entries[j].nanos {
			return entries[i].nanos > entries[j].nanos
		}
		return entries[i].method < entries[j].method
	})
	var res []string
	for i := 0; i < n && i < len(entries); i++ {
		res = append(res, entries[i].method)
	}
	return res
}

func (s *Statistics) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d methods analyzed, %d top, %d node visits, %d failures\n",
		s.Methods(), s.Top(), s.Visits(), s.Failures())
	reasons := s.Reasons()
	keys := make([]string, 0, len(reasons))
	for r := range reasons {
		keys = append(keys, r)
	}
	sort.Strings(keys)
	for _, r := range keys {
		fmt.Fprintf(&b, "  %5d %s\n", reasons[r], r)
	}
	return b.String()
}
