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

package slice

// Store records the partial slices by criterion id, and the combined slices by root id. It is owned by one analysis
// session.
type Store struct {
	partials map[string]*Partial
	order    []string
	combined map[string][]Combined
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{partials: map[string]*Partial{}, combined: map[string][]Combined{}}
}

// Put records a partial slice. A partial recorded twice replaces the first one.
func (s *Store) Put(p *Partial) {
	if _, ok := s.partials[p.ID]; !ok {
		s.order = append(s.order, p.ID)
	}
	s.partials[p.ID] = p
}

// Get returns the partial slice of a criterion
func (s *Store) Get(id string) (*Partial, bool) {
	p, ok := s.partials[id]
	return p, ok
}

// Has returns true if the criterion already has a recorded slice, possibly empty
func (s *Store) Has(id string) bool {
	_, ok := s.partials[id]
	return ok
}

// Len returns the number of partial slices recorded
func (s *Store) Len() int {
	return len(s.partials)
}

// Partials returns the partial slices in the order they were recorded
func (s *Store) Partials() []*Partial {
	res := make([]*Partial, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.partials[id])
	}
	return res
}

// Find returns the non-empty partial slices satisfying the predicate, in the order they were recorded
func (s *Store) Find(pred func(*Partial) bool) []*Partial {
	var res []*Partial
	for _, id := range s.order {
		if p := s.partials[id]; !p.Empty() && pred(p) {
			res = append(res, p)
		}
	}
	return res
}

// ReturnSlices returns the slices of the return statements of a method
func (s *Store) ReturnSlices(method string) []*Partial {
	return s.Find(func(p *Partial) bool { return p.TargetKind == TargetReturn && p.Caller == method })
}

// FieldWriterSlices returns the slices of the writes of a field
func (s *Store) FieldWriterSlices(field string) []*Partial {
	return s.Find(func(p *Partial) bool { return p.TargetKind == TargetFieldWrite && p.Target == field })
}

// PutCombined records the combined slices of a root criterion
func (s *Store) PutCombined(root string, slices []Combined) {
	s.combined[root] = slices
}

// Combined returns the combined slices of a root criterion, if they were computed
func (s *Store) Combined(root string) ([]Combined, bool) {
	c, ok := s.combined[root]
	return c, ok
}
