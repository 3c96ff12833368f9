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
	"sort"
	"time"
)

// Node is anything StackBuilder can place in a stack: a Source or
// Operation. Sources report zero sink requirement; operations report
// their num_sinks and dynamic_sinks (spec §3, §4.7).
type Node interface {
	Underlying() *Object
	SinkRequirement() (numSinks int, dynamic bool)
}

// StackBuilder selects the active tree of objects at a playhead position
// and refines its validity window (spec §4.2).
type StackBuilder struct {
	// RealStart and RealStop bound the composition's overall interval;
	// a playhead outside them never produces a TimelineGap (spec §4.2
	// step 7: "but the composition's real interval has not ended").
	RealStart time.Duration
	RealStop  time.Duration
}

// Build runs the seven-step algorithm of spec §4.2. byStart is sorted by
// (start, priority) ascending; byStop is sorted by (stop desc, priority).
// expandables is appended to the candidate list regardless of t
// (spec §3 "expandables"). reverse selects playback direction (rate < 0).
func (sb StackBuilder) Build(byStart, byStop, expandables []Node, t time.Duration, reverse bool) (*Stack, error) {
	collected, firstOutBound, hasFirstOut := sb.collectAtPlayhead(byStart, byStop, t, reverse)
	sort.SliceStable(collected, func(i, j int) bool {
		oi, oj := collected[i].Underlying(), collected[j].Underlying()
		if oi.Priority() != oj.Priority() {
			return oi.Priority() < oj.Priority()
		}
		return oi.insertSeq < oj.insertSeq
	})

	if len(collected) == 0 && len(expandables) == 0 {
		if t >= sb.RealStart && t < sb.RealStop {
			return nil, newTimelineGapError(t.String())
		}
		return &Stack{}, nil
	}

	candidates := append(append([]Node(nil), collected...), expandables...)

	pos := 0
	root, maxPriority, nstart, nstop, err := foldTree(candidates, &pos, t)
	if err != nil {
		return nil, err
	}

	sb.refine(byStart, byStop, maxPriority, t, &nstart, &nstop)

	if hasFirstOut {
		if firstOutBound > t {
			if firstOutBound < nstop {
				nstop = firstOutBound
			}
		} else {
			if firstOutBound > nstart {
				nstart = firstOutBound
			}
		}
	}

	return &Stack{Root: root, Start: nstart, Stop: nstop}, nil
}

// collectAtPlayhead implements step 1: forward playback walks
// objects_start forward (ascending start order); reverse playback walks
// objects_stop forward too, but objects_stop is sorted descending by
// stop, so both walks move in the direction of travel (spec §4.2 step 1).
// Either walk collects every active object whose interval contains t and
// stops at the first object whose edge crosses t's far side, returning
// that edge as the bound. Build orders the collected list by ascending
// priority (ties by insertion order) before folding it.
func (sb StackBuilder) collectAtPlayhead(byStart, byStop []Node, t time.Duration, reverse bool) ([]Node, time.Duration, bool) {
	var collected []Node

	if !reverse {
		for _, n := range byStart {
			o := n.Underlying()
			if !o.Active() {
				continue
			}
			start, stop := o.Start(), o.Stop()
			if start <= t && t < stop {
				collected = append(collected, n)
				continue
			}
			if start > t {
				return collected, start, true
			}
		}
		return collected, 0, false
	}

	for _, n := range byStop {
		o := n.Underlying()
		if !o.Active() {
			continue
		}
		start, stop := o.Start(), o.Stop()
		if start <= t && t < stop {
			collected = append(collected, n)
			continue
		}
		if stop <= t {
			return collected, stop, true
		}
	}
	return collected, 0, false
}

// foldTree consumes list[*pos] as the root and recursively consumes the
// next num_sinks (or, for dynamic-sink operations, all remaining) items
// as its children, depth-first (spec §4.2 steps 3-4).
func foldTree(list []Node, pos *int, t time.Duration) (*StackNode, uint32, time.Duration, time.Duration, error) {
	if *pos >= len(list) {
		return nil, 0, 0, 0, nil
	}
	n := list[*pos]
	*pos++
	o := n.Underlying()

	node := &StackNode{ObjectID: o.ID}
	nstart, nstop := o.Start(), o.Stop()
	maxPriority := o.Priority()

	numSinks, dynamic := n.SinkRequirement()
	count := numSinks
	if dynamic {
		count = len(list) - *pos
	}

	for i := 0; i < count; i++ {
		if *pos >= len(list) {
			return nil, 0, 0, 0, newInvalidStructureError(o.ID, numSinks, i)
		}
		child, childPriority, cstart, cstop, err := foldTree(list, pos, t)
		if err != nil {
			return nil, 0, 0, 0, err
		}
		node.Children = append(node.Children, child)
		if cstart > nstart {
			nstart = cstart
		}
		if cstop < nstop {
			nstop = cstop
		}
		if childPriority > maxPriority {
			maxPriority = childPriority
		}
	}

	return node, maxPriority, nstart, nstop, nil
}

// refine implements step 5: any active object whose priority value is
// numerically smaller than the largest priority value in the stack (so it
// would sit above part of the stack) and which lies outside the stack at
// t clips the validity interval down to its edge.
func (sb StackBuilder) refine(byStart, byStop []Node, maxPriority uint32, t time.Duration, nstart, nstop *time.Duration) {
	for _, n := range byStart {
		o := n.Underlying()
		if !o.Active() || o.Priority() >= maxPriority {
			continue
		}
		start := o.Start()
		if start > t && start < *nstop {
			*nstop = start
		}
	}
	for _, n := range byStop {
		o := n.Underlying()
		if !o.Active() || o.Priority() >= maxPriority {
			continue
		}
		stop := o.Stop()
		if stop <= t && stop > *nstart {
			*nstart = stop
		}
	}
}
