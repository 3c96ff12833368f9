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

// Direction is the data-flow direction of a Pad.
type Direction int

const (
	DirectionSrc Direction = iota
	DirectionSink
)

// ProbeMask selects which data classes a Probe is invoked for.
type ProbeMask uint32

const (
	ProbeEventDownstream ProbeMask = 1 << iota
	ProbeBuffer
	ProbeQuery
)

// ProbeReturn tells the pad what to do with the item the probe observed.
type ProbeReturn int

const (
	ProbePass ProbeReturn = iota
	ProbeDrop
)

// Probe observes (and may rewrite or drop) events/buffers/queries flowing
// over a Pad. Its callbacks rewrite the event/query in place through the
// pointer they receive and return a ProbeReturn; buffers reach OnEvent as
// a synthetic marker event. Returning ProbeDrop halts further propagation, matching
// spec §4.6's "drop" dispositions.
type Probe struct {
	Mask    ProbeMask
	OnEvent func(*Event) ProbeReturn
	OnQuery func(*Query) ProbeReturn
}

// Pad is a single streaming connection point on an Element. A Pad may be
// a ghost: its Target is another object's edge pad, and pushes are
// forwarded there (spec §4.3's "ghost-edge pad whose target is not yet
// attached").
type Pad struct {
	Name      string
	Direction Direction

	mu     sync.Mutex
	peer   *Pad
	target *Pad
	probes []*Probe

	// stashedSeek holds a seek that arrived while Target was nil; it is
	// pushed synchronously the moment SetTarget attaches a real target
	// (spec §4.3).
	stashedSeek *Seek

	// translateSeek is set by the owning object's EdgePad to translate a
	// seek crossing this pad from external to internal time before it is
	// forwarded to Target/peer. Ghost source pads on Source/Operation use
	// this; plain pads leave it nil (identity translation).
	translateSeek func(Seek) Seek
}

// NewPad returns a new, unlinked, untargeted pad.
func NewPad(name string, dir Direction) *Pad {
	return &Pad{Name: name, Direction: dir}
}

// AddProbe installs a probe on the pad. Probes run in installation order.
func (p *Pad) AddProbe(pr *Probe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.probes = append(p.probes, pr)
}

// RemoveProbe removes a previously installed probe.
func (p *Pad) RemoveProbe(pr *Probe) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, existing := range p.probes {
		if existing == pr {
			p.probes = append(p.probes[:i], p.probes[i+1:]...)
			return
		}
	}
}

// SetTarget makes this pad a ghost for target. Any stashed seek is pushed
// synchronously to the new target (spec §4.3).
func (p *Pad) SetTarget(target *Pad) {
	p.mu.Lock()
	stashed := p.stashedSeek
	p.stashedSeek = nil
	p.target = target
	p.mu.Unlock()

	if stashed != nil && target != nil {
		target.PushSeek(*stashed)
	}
}

// Target returns the pad's current ghost target, or nil.
func (p *Pad) Target() *Pad {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.target
}

// SetTranslateSeek installs the EdgePad translation function this pad
// applies to outgoing seeks before forwarding them.
func (p *Pad) SetTranslateSeek(fn func(Seek) Seek) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.translateSeek = fn
}

// Link connects src (a source pad) to sink (a sink pad). Matches spec
// §4.4 step 7's "link to its parent via the next unlinked operation sink".
func Link(src, sink *Pad) error {
	if src.Direction != DirectionSrc || sink.Direction != DirectionSink {
		return fmt.Errorf("stream: link requires (src, sink) pads, got (%v, %v)", src.Direction, sink.Direction)
	}
	src.mu.Lock()
	src.peer = sink
	src.mu.Unlock()

	sink.mu.Lock()
	sink.peer = src
	sink.mu.Unlock()
	return nil
}

// Unlink disconnects a previously linked pair, ignoring pads that are
// already unlinked (spec §4.7 "hard cleanup... even if upstream never
// finished").
func Unlink(src, sink *Pad) {
	src.mu.Lock()
	if src.peer == sink {
		src.peer = nil
	}
	src.mu.Unlock()

	sink.mu.Lock()
	if sink.peer == src {
		sink.peer = nil
	}
	sink.mu.Unlock()
}

// Peer returns the pad currently linked to p, or nil.
func (p *Pad) Peer() *Pad {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.peer
}

// PushSeek sends a seek to this pad. If the pad is a ghost without a live
// target, the seek is stashed for delivery when SetTarget runs.
func (p *Pad) PushSeek(seek Seek) {
	p.mu.Lock()
	target := p.target
	translate := p.translateSeek
	if target == nil && p.Direction == DirectionSrc {
		p.stashedSeek = &seek
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	if translate != nil {
		seek = translate(seek)
	}
	if target != nil {
		target.PushSeek(seek)
		return
	}
	if peer := p.Peer(); peer != nil {
		peer.PushSeek(seek)
	}
}

// PushEvent runs installed probes (in order) and, unless one drops the
// event, forwards it to the pad's peer (or ghost target).
func (p *Pad) PushEvent(ev Event) ProbeReturn {
	p.mu.Lock()
	probes := append([]*Probe(nil), p.probes...)
	target := p.target
	p.mu.Unlock()

	for _, pr := range probes {
		if pr.Mask&ProbeEventDownstream == 0 || pr.OnEvent == nil {
			continue
		}
		if pr.OnEvent(&ev) == ProbeDrop {
			return ProbeDrop
		}
	}

	if target != nil {
		return target.PushEvent(ev)
	}
	if peer := p.Peer(); peer != nil {
		return peer.PushEvent(ev)
	}
	return ProbePass
}

// PushBuffer runs installed buffer probes and forwards the buffer
// downstream unless dropped.
func (p *Pad) PushBuffer(buf Buffer) ProbeReturn {
	p.mu.Lock()
	probes := append([]*Probe(nil), p.probes...)
	target := p.target
	p.mu.Unlock()

	for _, pr := range probes {
		if pr.Mask&ProbeBuffer == 0 {
			continue
		}
		// buffer probes only observe; the event callback is reused with a
		// synthetic marker so a single probe can watch both classes.
		marker := Event{Type: EventType(-1)}
		if pr.OnEvent != nil && pr.OnEvent(&marker) == ProbeDrop {
			return ProbeDrop
		}
	}

	if target != nil {
		return target.PushBuffer(buf)
	}
	if peer := p.Peer(); peer != nil {
		return peer.PushBuffer(buf)
	}
	return ProbePass
}

// Query runs the pad's query probes, then forwards to the peer/target if
// none of them handled it, returning the (possibly filled-in) query.
func (p *Pad) Query(q Query) (Query, bool) {
	p.mu.Lock()
	probes := append([]*Probe(nil), p.probes...)
	target := p.target
	p.mu.Unlock()

	for _, pr := range probes {
		if pr.Mask&ProbeQuery == 0 || pr.OnQuery == nil {
			continue
		}
		if pr.OnQuery(&q) == ProbeDrop {
			return q, true
		}
	}

	if target != nil {
		return target.Query(q)
	}
	if peer := p.Peer(); peer != nil {
		return peer.Query(q)
	}
	return q, false
}
