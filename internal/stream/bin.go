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

package stream

import (
	"fmt"
	"sync"
)

// Bin is an ordered container of Elements, the stand-in for the
// composition's internal bin that the controller mutates during a
// stack swap (spec §4.4: "gst-add each node to the internal bin").
type Bin struct {
	mu       sync.Mutex
	elements map[string]Element
	order    []string
	state    State
}

// NewBin returns an empty Bin.
func NewBin() *Bin {
	return &Bin{elements: make(map[string]Element), state: StateNull}
}

// Add adds e to the bin and syncs its state with the bin's current state
// (spec §4.4 step 7: "sync its state with the parent"). requiredCaps, if
// non-empty, is checked against e's own caps before admitting it: an
// element with a non-empty caps tag that disagrees with requiredCaps is
// rejected (spec §3's per-object caps property, a simplified stand-in
// for real GStreamer caps negotiation). Either side left blank ("")
// matches anything, so untagged elements and an unset requirement never
// conflict.
func (b *Bin) Add(e Element, requiredCaps string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.elements[e.Name()]; exists {
		return fmt.Errorf("stream: element %q already in bin", e.Name())
	}
	if requiredCaps != "" && e.Caps() != "" && e.Caps() != requiredCaps {
		return fmt.Errorf("stream: element %q has incompatible caps %q, want %q", e.Name(), e.Caps(), requiredCaps)
	}
	b.elements[e.Name()] = e
	b.order = append(b.order, e.Name())
	return e.SetState(b.state)
}

// Remove removes e from the bin without altering its state (the caller
// is responsible for the flush/ready/null dance around removal; see
// spec §4.4 steps 2-6).
func (b *Bin) Remove(e Element) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.elements, e.Name())
	for i, name := range b.order {
		if name == e.Name() {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Empty removes every element currently in the bin, the "empty the
// internal bin" half of spec §4.4 step 6.
func (b *Bin) Empty() []Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Element, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.elements[name])
	}
	b.elements = make(map[string]Element)
	b.order = nil
	return out
}

// SetState transitions every element currently in the bin to s, and
// records s as the bin's own state for elements added later. Matches
// spec §4.4 step 3's "force the internal bin to ready state" and step 9's
// "sync the internal bin's state with the composition's".
func (b *Bin) SetState(s State) error {
	b.mu.Lock()
	b.state = s
	elements := make([]Element, 0, len(b.order))
	for _, name := range b.order {
		elements = append(elements, b.elements[name])
	}
	b.mu.Unlock()

	for _, e := range elements {
		if err := e.SetState(s); err != nil {
			return fmt.Errorf("stream: %s: %w", e.Name(), err)
		}
	}
	return nil
}

// State returns the bin's current target state.
func (b *Bin) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Elements returns a snapshot of the bin's contents in add order.
func (b *Bin) Elements() []Element {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Element, 0, len(b.order))
	for _, name := range b.order {
		out = append(out, b.elements[name])
	}
	return out
}
