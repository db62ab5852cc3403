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

	"github.com/awslabs/ar-go-lineage/analysis/ir"
	"github.com/awslabs/ar-go-lineage/analysis/pointsto"
)

// ArrayField is the pseudo-field of the elements of arrays and of the cells referenced by pointers
const ArrayField = "[]"

// A Location is a heap location: a field of an abstract object. Static fields are fields of the global node.
type Location struct {
	Node  pointsto.NodeID
	Field string
}

// FieldLocation returns the location of the field f of the node n
func FieldLocation(n pointsto.NodeID, f *ir.Field) Location {
	return Location{Node: n, Field: f.Name}
}

// StaticLocation returns the location of the static field f
func StaticLocation(f *ir.Field) Location {
	return Location{Node: pointsto.GlobalNode, Field: f.String()}
}

// ArrayLocation returns the location of the elements of the array n
func ArrayLocation(n pointsto.NodeID) Location {
	return Location{Node: n, Field: ArrayField}
}

func (l Location) String() string {
	return fmt.Sprintf("[%d.%s]", l.Node, l.Field)
}
