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

package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/awslabs/ar-go-lineage/internal/formatutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// WriteText writes the reports as one table per method
func WriteText(w io.Writer, reports []*Method) error {
	for _, m := range reports {
		if _, err := fmt.Fprintf(w, "%s %s\n", formatutil.Bold(formatutil.Sanitize(m.Method)),
			formatutil.Faint("["+m.Fingerprint+"]")); err != nil {
			return fmt.Errorf("could not write report: %w", err)
		}
		if m.Top {
			if _, err := fmt.Fprintln(w, formatutil.Red("  any output column may depend on any input")); err != nil {
				return fmt.Errorf("could not write report: %w", err)
			}
		} else {
			t := table.NewWriter()
			t.SetOutputMirror(w)
			t.SetStyle(table.StyleLight)
			// traceable names are case-sensitive
			t.Style().Format.Footer = text.FormatDefault
			t.AppendHeader(table.Row{"Column", "Data", "Control"})
			for _, c := range m.Columns {
				t.AppendRow(table.Row{formatutil.Sanitize(c.Name), strings.Join(c.Data, "\n"),
					strings.Join(c.Control, "\n")})
			}
			if len(m.Escaping) > 0 {
				t.AppendFooter(table.Row{"escaping", strings.Join(m.Escaping, "\n"), ""})
			}
			t.Render()
		}
		for _, d := range m.Diagnostics {
			if _, err := fmt.Fprintf(w, "  %s %s\n", formatutil.Yellow("!"), d); err != nil {
				return fmt.Errorf("could not write report: %w", err)
			}
		}
		for _, f := range m.Failures {
			if _, err := fmt.Fprintf(w, "  %s %s\n", formatutil.Red("failure:"), f); err != nil {
				return fmt.Errorf("could not write report: %w", err)
			}
		}
	}
	return nil
}

// WriteJSON writes the reports as an indented JSON array
func WriteJSON(w io.Writer, reports []*Method) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if reports == nil {
		reports = []*Method{}
	}
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("could not encode reports: %w", err)
	}
	return nil
}
