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

package funcutil

// A Set is a set represented as a map from elements to booleans. Only keys mapped to true are members.
type Set[T comparable] map[T]bool

// NewSet returns a set containing the elements provided.
func NewSet[T comparable](elts ...T) Set[T] {
	s := make(Set[T], len(elts))
	for _, x := range elts {
		s[x] = true
	}
	return s
}

// Add adds x to the set and returns true if x was not already in the set
// @mutates s
func (s Set[T]) Add(x T) bool {
	if s[x] {
		return false
	}
	s[x] = true
	return true
}

// AddAll adds all the elements of other to s and returns true if s changed
// @mutates s
func (s Set[T]) AddAll(other Set[T]) bool {
	changed := false
	for x, b := range other {
		if b && !s[x] {
			s[x] = true
			changed = true
		}
	}
	return changed
}

// Len returns the number of members of s
func (s Set[T]) Len() int {
	n := 0
	for _, b := range s {
		if b {
			n++
		}
	}
	return n
}

// SubsetOf returns true when every member of s is a member of other.
func (s Set[T]) SubsetOf(other Set[T]) bool {
	for x, b := range s {
		if b && !other[x] {
			return false
		}
	}
	return true
}

// Clone returns a copy of s that only contains its members
func (s Set[T]) Clone() Set[T] {
	c := make(Set[T], len(s))
	for x, b := range s {
		if b {
			c[x] = true
		}
	}
	return c
}

// Items returns the members of s, in an unspecified order
func (s Set[T]) Items() []T {
	items := make([]T, 0, len(s))
	for x, b := range s {
		if b {
			items = append(items, x)
		}
	}
	return items
}
