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

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMap(t *testing.T) {
	assert.Equal(t, []string{"1", "2", "3"}, Map([]int{1, 2, 3}, strconv.Itoa))
	assert.Nil(t, Map([]int{}, strconv.Itoa))
}

func TestExistsAndContains(t *testing.T) {
	a := []string{"java.", "android."}
	assert.True(t, Exists(a, func(s string) bool { return s == "android." }))
	assert.False(t, Exists(a, func(s string) bool { return s == "kotlin." }))
	assert.True(t, Contains(a, "java."))
	assert.False(t, Contains(nil, "java."))
}

func TestSetToOrderedSlice(t *testing.T) {
	assert.Equal(t, []int{0, 2, 5}, SetToOrderedSlice(map[int]bool{5: true, 0: true, 2: true, 3: false}))
	assert.Nil(t, SetToOrderedSlice(map[int]bool{}))
}

func TestReverseAndIter(t *testing.T) {
	a := []int{1, 2, 3, 4}
	Reverse(a)
	assert.Equal(t, []int{4, 3, 2, 1}, a)
	sum := 0
	Iter(a, func(x int) { sum += x })
	assert.Equal(t, 10, sum)
}
