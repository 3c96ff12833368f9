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
	"fmt"
	"sync"

	"github.com/nlecomposer/nle/internal/stream"
)

// Operation wraps one N-input/1-output transform and manages N sink edge
// pads whose count tracks the number of children attached in the current
// stack (spec §2, §4.7).
type Operation struct {
	*Object

	element *stream.SimpleElement
	ghost   *stream.Pad
	Edge    *EdgePad

	mu           sync.Mutex
	numSinks     int
	dynamicSinks bool
	sinkPads     []*stream.Pad // ordered by child priority, nil entries unlinked
}

// NewOperation returns an Operation requiring numSinks children. When
// dynamicSinks is true, sink pads are materialized (requested/released) on
// demand until real_sinks == num_sinks (spec §4.7); otherwise the
// operation's wrapped element is assumed to already expose numSinks
// statically-named sink pads picked in order.
func NewOperation(id string, numSinks int, dynamicSinks bool) *Operation {
	internalSrc := stream.NewPad("src", stream.DirectionSrc)
	element := stream.NewSimpleElement(id, internalSrc)

	ghost := stream.NewPad(id+":src", stream.DirectionSrc)
	ghost.SetTarget(internalSrc)

	obj := NewObject(id, KindOperation)
	edge := NewEdgePad(obj, ghost)
	obj.Pad = edge

	op := &Operation{
		Object:       obj,
		element:      element,
		ghost:        ghost,
		Edge:         edge,
		numSinks:     numSinks,
		dynamicSinks: dynamicSinks,
	}

	if !dynamicSinks {
		for i := 0; i < numSinks; i++ {
			name := fmt.Sprintf("sink_%d", i)
			p := stream.NewPad(name, stream.DirectionSink)
			element.AddPad(p)
			op.sinkPads = append(op.sinkPads, p)
		}
	}

	return op
}

// NumSinks returns the expected number of children (spec §3 "num_sinks").
func (op *Operation) NumSinks() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.numSinks
}

// RealSinks returns the number of currently materialized sink pads
// (spec §3 "real_sinks").
func (op *Operation) RealSinks() int {
	op.mu.Lock()
	defer op.mu.Unlock()
	return len(op.sinkPads)
}

// DynamicSinks reports whether this operation materializes sink pads on
// demand rather than exposing a fixed static set.
func (op *Operation) DynamicSinks() bool {
	op.mu.Lock()
	defer op.mu.Unlock()
	return op.dynamicSinks
}

// GhostPad returns the operation's externally visible source edge pad.
func (op *Operation) GhostPad() *stream.Pad { return op.ghost }

// Underlying returns the embedded Object, satisfying the StackBuilder's
// Node interface.
func (op *Operation) Underlying() *Object { return op.Object }

// SinkRequirement reports the operation's expected child count and
// whether it materializes sinks dynamically.
func (op *Operation) SinkRequirement() (numSinks int, dynamic bool) {
	return op.NumSinks(), op.DynamicSinks()
}

// SimpleElement returns the concrete wrapped element.
func (op *Operation) SimpleElement() *stream.SimpleElement { return op.element }

// EnsureSinkCount materializes or releases dynamic sink pads until
// real_sinks equals want, or reports an InvalidStructure error when want
// exceeds a static operation's fixed capacity (spec §4.7).
func (op *Operation) EnsureSinkCount(want int) error {
	op.mu.Lock()
	defer op.mu.Unlock()

	if !op.dynamicSinks {
		if want > op.numSinks {
			return newInvalidStructureError(op.ID, op.numSinks, want)
		}
		return nil
	}

	for len(op.sinkPads) < want {
		name := fmt.Sprintf("sink_%d", len(op.sinkPads))
		p := stream.NewPad(name, stream.DirectionSink)
		op.element.AddPad(p)
		op.sinkPads = append(op.sinkPads, p)
	}
	for len(op.sinkPads) > want {
		last := op.sinkPads[len(op.sinkPads)-1]
		op.element.RemovePad(last.Name)
		op.sinkPads = op.sinkPads[:len(op.sinkPads)-1]
	}
	op.numSinks = want
	return nil
}

// NextUnlinkedSinkPad returns the first sink pad with no peer, the
// static-sink operation's link-request strategy (spec §4.7: "Static-sink
// operations pick the first unlinked sink pad of the wrapped element at
// each link request").
func (op *Operation) NextUnlinkedSinkPad() (*stream.Pad, bool) {
	op.mu.Lock()
	defer op.mu.Unlock()
	for _, p := range op.sinkPads {
		if p.Peer() == nil {
			return p, true
		}
	}
	return nil, false
}

// SinkPads returns a snapshot of the operation's current sink pads, in
// materialization order.
func (op *Operation) SinkPads() []*stream.Pad {
	op.mu.Lock()
	defer op.mu.Unlock()
	out := make([]*stream.Pad, len(op.sinkPads))
	copy(out, op.sinkPads)
	return out
}

// UnlinkAll disconnects every sink pad from its peer, the operation's
// "hard cleanup" invoked during stack teardown (spec §4.4 step 6: "for
// operations, invoke their hard cleanup to unlink pads even if upstream
// never finished").
func (op *Operation) UnlinkAll() {
	op.mu.Lock()
	pads := make([]*stream.Pad, len(op.sinkPads))
	copy(pads, op.sinkPads)
	op.mu.Unlock()

	for _, p := range pads {
		if peer := p.Peer(); peer != nil {
			stream.Unlink(peer, p)
		}
	}
}
