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
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// Stack is the tree of objects currently active at some playhead position
// (spec §3 "current": "tree (root = highest-priority operation or source;
// children = its inputs in priority order) describing the live stack").
// Nodes are non-owning: the master object lists in the Composition own the
// strong references (spec §9).
type Stack struct {
	Root *StackNode

	// Start and Stop bound the half-open interval [Start, Stop) over which
	// this stack is valid without rebuilding (spec §3
	// current_stack_start/current_stack_stop).
	Start time.Duration
	Stop  time.Duration
}

// StackNode is one tree position: an object identity plus its children in
// priority order.
type StackNode struct {
	ObjectID string
	Children []*StackNode
}

// SameStructure reports whether two stacks describe the same tree of
// object identities in the same per-level order (spec §4.2: "iff the tree
// differs structurally (same root object identities, same per-level child
// order and count)"). Validity intervals are deliberately excluded from
// the comparison; only object identity and shape matter.
func SameStructure(a, b *Stack) bool {
	if a == nil || b == nil {
		return a == b
	}
	return cmp.Equal(a.Root, b.Root, cmpopts.EquateEmpty())
}

// Empty reports whether the stack has no root, matching spec §3 invariant
// 3's "current is non-empty" guard.
func (s *Stack) Empty() bool { return s == nil || s.Root == nil }

// Depth returns the number of nodes on the stack's longest root-to-leaf
// path (1 for a lone node, 0 for nil), used only for diagnostics.
func (n *StackNode) Depth() int {
	if n == nil {
		return 0
	}
	max := 0
	for _, c := range n.Children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return max + 1
}

// Walk visits every node in the stack depth-first, root first (spec §4.4
// step 7: "attach the new tree depth-first").
func (n *StackNode) Walk(visit func(*StackNode)) {
	if n == nil {
		return
	}
	visit(n)
	for _, c := range n.Children {
		c.Walk(visit)
	}
}
