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

// Element is anything that can be added to a Bin: a wrapped
// decoder/filter/source plugin, or a sub-Bin itself.
type Element interface {
	Name() string
	State() State
	SetState(State) error
	Pad(name string) *Pad

	// Caps returns the element's current capability/media-type tag, or ""
	// if unset. Bin.Add checks this against a required caps string before
	// admitting the element (spec §3's per-object caps property).
	Caps() string
}

// SimpleElement is a minimal Element a Source/Operation wraps in place of
// a real codec/filter plugin, for tests and the synthetic CLI player.
// Real deployments would substitute a genuine decoder/filter wrapper here
// (spec §1: "out of scope, treated as external collaborators").
type SimpleElement struct {
	name string

	mu    sync.Mutex
	state State
	pads  map[string]*Pad
	caps  string

	// FailState, if set, causes SetState to fail once it is reached,
	// modeling spec §7's ChildStateChangeFailure.
	FailState State
}

// NewSimpleElement returns a SimpleElement with the given name and pads.
func NewSimpleElement(name string, pads ...*Pad) *SimpleElement {
	e := &SimpleElement{name: name, state: StateNull, pads: make(map[string]*Pad)}
	for _, p := range pads {
		e.pads[p.Name] = p
	}
	return e
}

func (e *SimpleElement) Name() string { return e.name }

func (e *SimpleElement) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *SimpleElement) SetState(s State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.FailState != StateNull && s == e.FailState {
		return fmt.Errorf("stream: element %q refused to reach state %v", e.name, s)
	}
	e.state = s
	return nil
}

func (e *SimpleElement) Pad(name string) *Pad {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pads[name]
}

// Caps returns the element's current capability/media-type tag.
func (e *SimpleElement) Caps() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.caps
}

// SetCaps updates the element's capability/media-type tag, synced from
// the owning Object's live caps at attach time.
func (e *SimpleElement) SetCaps(caps string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.caps = caps
}

// AddPad registers an additional pad on the element, used by dynamic-sink
// operations that request/release sink pads at runtime (spec §4.7).
func (e *SimpleElement) AddPad(p *Pad) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pads[p.Name] = p
}

// RemovePad deregisters a pad previously added with AddPad.
func (e *SimpleElement) RemovePad(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.pads, name)
}

// Pads returns a snapshot of the element's current pad set.
func (e *SimpleElement) Pads() []*Pad {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*Pad, 0, len(e.pads))
	for _, p := range e.pads {
		out = append(out, p)
	}
	return out
}
