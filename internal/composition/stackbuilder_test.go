// Copyright Authors of nlecomposer
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package composition

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustCommit(t *testing.T, o *Object, start, duration time.Duration, priority uint32) {
	t.Helper()
	o.SetPendingStart(start)
	require.NoError(t, o.SetPendingDuration(duration))
	o.SetPendingPriority(priority)
	o.commit()
}

// Scenario 1 from spec §8: simple concatenation of three equal-priority
// sources.
func TestStackBuilderSimpleConcatenation(t *testing.T) {
	a := NewSource("A", false)
	b := NewSource("B", false)
	c := NewSource("C", false)
	mustCommit(t, a.Object, 0, 2*time.Second, 0)
	mustCommit(t, b.Object, 2*time.Second, 2*time.Second, 0)
	mustCommit(t, c.Object, 4*time.Second, 2*time.Second, 0)

	byStart := []Node{a, b, c}
	byStop := []Node{a, b, c}
	sb := StackBuilder{RealStart: 0, RealStop: 6 * time.Second}

	stack, err := sb.Build(byStart, byStop, nil, 1*time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, "A", stack.Root.ObjectID)
	assert.Equal(t, time.Duration(0), stack.Start)
	assert.Equal(t, 2*time.Second, stack.Stop)
}

// Scenario 2 from spec §8: overlap priority produces {D} [0,2) {E} [2,3)
// {D} [3,4).
func TestStackBuilderOverlapPriority(t *testing.T) {
	d := NewSource("D", false)
	e := NewSource("E", false)
	mustCommit(t, d.Object, 0, 4*time.Second, 1)
	mustCommit(t, e.Object, 2*time.Second, 1*time.Second, 0)

	byStart := []Node{d, e}
	byStop := []Node{e, d}
	sb := StackBuilder{RealStart: 0, RealStop: 4 * time.Second}

	stack, err := sb.Build(byStart, byStop, nil, 500*time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, "D", stack.Root.ObjectID)
	assert.Equal(t, 2*time.Second, stack.Stop)

	stack, err = sb.Build(byStart, byStop, nil, 2500*time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, "E", stack.Root.ObjectID)
	assert.Equal(t, 2*time.Second, stack.Start)
	assert.Equal(t, 3*time.Second, stack.Stop)

	stack, err = sb.Build(byStart, byStop, nil, 3500*time.Millisecond, false)
	require.NoError(t, err)
	assert.Equal(t, "D", stack.Root.ObjectID)
	assert.Equal(t, 3*time.Second, stack.Start)
}

// Scenario 6 from spec §8: a gap between two sources surfaces TimelineGap.
func TestStackBuilderGapError(t *testing.T) {
	a := NewSource("A", false)
	b := NewSource("B", false)
	mustCommit(t, a.Object, 0, 2*time.Second, 0)
	mustCommit(t, b.Object, 3*time.Second, 3*time.Second, 0)

	byStart := []Node{a, b}
	byStop := []Node{a, b}
	sb := StackBuilder{RealStart: 0, RealStop: 6 * time.Second}

	_, err := sb.Build(byStart, byStop, nil, 2500*time.Millisecond, false)
	require.Error(t, err)
	serr, ok := err.(*StreamError)
	require.True(t, ok)
	assert.Equal(t, KindTimelineGap, serr.Kind)
}

// Scenario 5 from spec §8: an expandable default source covers the gap
// before the first real object begins.
func TestStackBuilderExpandableDefault(t *testing.T) {
	f := NewSource("F", false)
	x := NewSource("X", false)
	mustCommit(t, f.Object, 2*time.Second, 2*time.Second, 0)
	mustCommit(t, x.Object, 0, 0, PriorityMax)

	byStart := []Node{f}
	byStop := []Node{f}
	sb := StackBuilder{RealStart: 0, RealStop: 4 * time.Second}

	stack, err := sb.Build(byStart, byStop, []Node{x}, 1*time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, "X", stack.Root.ObjectID)

	stack, err = sb.Build(byStart, byStop, []Node{x}, 3*time.Second, false)
	require.NoError(t, err)
	assert.Equal(t, "F", stack.Root.ObjectID)
}

func TestStackBuilderInvalidStructure(t *testing.T) {
	op := NewOperation("mix", 2, false)
	a := NewSource("A", false)
	mustCommit(t, op.Object, 0, 4*time.Second, 0)
	mustCommit(t, a.Object, 0, 4*time.Second, 1)

	byStart := []Node{op, a}
	byStop := []Node{op, a}
	sb := StackBuilder{RealStart: 0, RealStop: 4 * time.Second}

	_, err := sb.Build(byStart, byStop, nil, time.Second, false)
	require.Error(t, err)
	serr, ok := err.(*StreamError)
	require.True(t, ok)
	assert.Equal(t, KindInvalidStructure, serr.Kind)
}

// Reverse playback (rate < 0) from spec §4.2 step 1 and §9: collection
// walks objects_stop in its sorted (descending) order rather than
// objects_start, so the same three-source concatenation used for forward
// playback must resolve to the correct single active member at every
// playhead when walked backwards.
func TestStackBuilderReverseCollectsActiveObject(t *testing.T) {
	a := NewSource("A", false)
	b := NewSource("B", false)
	c := NewSource("C", false)
	mustCommit(t, a.Object, 0, 2*time.Second, 0)
	mustCommit(t, b.Object, 2*time.Second, 2*time.Second, 0)
	mustCommit(t, c.Object, 4*time.Second, 2*time.Second, 0)

	byStart := []Node{a, b, c}
	byStop := []Node{c, b, a} // sortByStopPriorityDesc order: stop descending
	sb := StackBuilder{RealStart: 0, RealStop: 6 * time.Second}

	cases := []struct {
		name string
		t    time.Duration
		want string
	}{
		{"playhead in A's window", 1 * time.Second, "A"},
		{"playhead in B's window", 3 * time.Second, "B"},
		{"playhead in C's window", 5 * time.Second, "C"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stack, err := sb.Build(byStart, byStop, nil, tc.t, true)
			require.NoError(t, err)
			require.NotNil(t, stack.Root)
			assert.Equal(t, tc.want, stack.Root.ObjectID)
		})
	}
}

// Reverse playback must still surface TimelineGap for a playhead that
// falls strictly between two sources, matching the forward-playback
// behavior in TestStackBuilderGapError.
func TestStackBuilderReverseGapError(t *testing.T) {
	a := NewSource("A", false)
	b := NewSource("B", false)
	mustCommit(t, a.Object, 0, 2*time.Second, 0)
	mustCommit(t, b.Object, 3*time.Second, 3*time.Second, 0)

	byStart := []Node{a, b}
	byStop := []Node{b, a}
	sb := StackBuilder{RealStart: 0, RealStop: 6 * time.Second}

	_, err := sb.Build(byStart, byStop, nil, 2500*time.Millisecond, true)
	require.Error(t, err)
	serr, ok := err.(*StreamError)
	require.True(t, ok)
	assert.Equal(t, KindTimelineGap, serr.Kind)
}

// Reverse playback with an expandable default (mirror of
// TestStackBuilderExpandableDefault): before the real object begins, the
// expandable filler is selected; once the playhead enters the real
// object's window, the real object takes over.
func TestStackBuilderReverseExpandableDefault(t *testing.T) {
	f := NewSource("F", false)
	x := NewSource("X", false)
	mustCommit(t, f.Object, 2*time.Second, 2*time.Second, 0)
	mustCommit(t, x.Object, 0, 0, PriorityMax)

	byStart := []Node{f}
	byStop := []Node{f}
	sb := StackBuilder{RealStart: 0, RealStop: 4 * time.Second}

	cases := []struct {
		name string
		t    time.Duration
		want string
	}{
		{"before F begins, expandable fills", 1 * time.Second, "X"},
		{"inside F's window", 3 * time.Second, "F"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stack, err := sb.Build(byStart, byStop, []Node{x}, tc.t, true)
			require.NoError(t, err)
			require.NotNil(t, stack.Root)
			assert.Equal(t, tc.want, stack.Root.ObjectID)
		})
	}
}

func TestSameStructureDetectsReuse(t *testing.T) {
	s1 := &Stack{Root: &StackNode{ObjectID: "A", Children: []*StackNode{{ObjectID: "B"}}}}
	s2 := &Stack{Root: &StackNode{ObjectID: "A", Children: []*StackNode{{ObjectID: "B"}}}}
	s3 := &Stack{Root: &StackNode{ObjectID: "A", Children: []*StackNode{{ObjectID: "C"}}}}

	assert.True(t, SameStructure(s1, s2))
	assert.False(t, SameStructure(s1, s3))
}
