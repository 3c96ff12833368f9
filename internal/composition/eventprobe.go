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
	"sync"

	"github.com/nlecomposer/nle/internal/stream"
)

// EventProbe is the glue between the streaming data plane and the
// controller state machine (spec §4.6). It runs on the data thread that
// delivers events/buffers/queries to the composition's source pad and
// communicates back to the controller only through the action queue and
// a small set of sequence-number latches, never by touching the object
// graph directly (spec §5: "the probe only flips atomics and enqueues
// actions").
type EventProbe struct {
	comp *Composition

	mu             sync.Mutex
	resumeSeqnum   uint32
	resumeCh       chan struct{}
	waitingForData bool

	installedOn *stream.Pad
	installed   *stream.Probe
}

// NewEventProbe returns a probe bound to comp.
func NewEventProbe(comp *Composition) *EventProbe {
	return &EventProbe{comp: comp}
}

// Install attaches the probe's rules to pad, removing any previous
// installation first so a probe is never double-counted.
func (p *EventProbe) Install(pad *stream.Pad) {
	p.mu.Lock()
	if p.installedOn != nil && p.installed != nil {
		p.installedOn.RemoveProbe(p.installed)
	}
	probe := &stream.Probe{
		Mask:    stream.ProbeEventDownstream | stream.ProbeBuffer | stream.ProbeQuery,
		OnEvent: p.onEvent,
		OnQuery: p.onQuery,
	}
	p.installedOn = pad
	p.installed = probe
	p.mu.Unlock()

	pad.AddProbe(probe)
}

// Reinstall re-attaches the probe to pad after the composition's source
// pad is re-ghosted to a new root (spec §4.4 step 8: "re-install the
// downstream event probe").
func (p *EventProbe) Reinstall(pad *stream.Pad) {
	p.Install(pad)
}

// armResume records the sequence number the probe should watch for to
// release a paused controller task, and the channel to close when it
// does (spec §4.1's pause-and-resume protocol).
func (p *EventProbe) armResume(seqnum uint32, resume chan struct{}) {
	p.mu.Lock()
	p.resumeSeqnum = seqnum
	p.resumeCh = resume
	p.mu.Unlock()
}

func (p *EventProbe) tryResume(seqnum uint32) {
	p.mu.Lock()
	if p.resumeCh == nil || (seqnum != 0 && seqnum != p.resumeSeqnum) {
		p.mu.Unlock()
		return
	}
	ch := p.resumeCh
	p.resumeCh = nil
	p.waitingForData = false
	p.mu.Unlock()
	close(ch)
}

func (p *EventProbe) resumeOnData() {
	p.mu.Lock()
	if !p.waitingForData || p.resumeCh == nil {
		p.mu.Unlock()
		return
	}
	ch := p.resumeCh
	p.resumeCh = nil
	p.waitingForData = false
	p.mu.Unlock()
	close(ch)
}

// onEvent implements every event-class rule of spec §4.6.
func (p *EventProbe) onEvent(ev *stream.Event) stream.ProbeReturn {
	c := p.comp

	switch ev.Type {
	case stream.EventFlushStart:
		c.mu.Lock()
		flushSeqnum := c.flushSeqnum
		seekKnown := c.seekSeqnum != 0
		seekSeqnum := c.seekSeqnum
		c.mu.Unlock()
		if ev.Seqnum != flushSeqnum {
			return stream.ProbeDrop
		}
		if seekKnown {
			ev.Seqnum = seekSeqnum
		}
		return stream.ProbePass

	case stream.EventFlushStop:
		c.mu.Lock()
		flushSeqnum := c.flushSeqnum
		restartSeqnum := c.seqnumToRestartTask
		stampTo := c.seekSeqnum
		if stampTo == 0 {
			stampTo = flushSeqnum
		}
		c.mu.Unlock()
		if ev.Seqnum != flushSeqnum {
			return stream.ProbeDrop
		}
		ev.Seqnum = stampTo

		c.mu.Lock()
		c.flushSeqnum = 0
		c.mu.Unlock()

		c.objectsMu.Lock()
		c.stackInitSeekSent = false
		c.objectsMu.Unlock()

		if stampTo == restartSeqnum {
			p.tryResume(stampTo)
		}
		return stream.ProbePass

	case stream.EventStreamStart:
		c.mu.Lock()
		send := c.sendStreamStart
		c.sendStreamStart = false
		id := c.id
		c.mu.Unlock()
		if !send {
			return stream.ProbeDrop
		}
		ev.StreamID = id
		return stream.ProbePass

	case stream.EventStreamGroupDone:
		c.mu.Lock()
		expect := c.realEOSSeqnum
		c.mu.Unlock()
		if ev.Seqnum != expect {
			return stream.ProbeDrop
		}
		return stream.ProbePass

	case stream.EventCaps:
		c.objectsMu.Lock()
		pending := c.stackInitSeek != nil && !c.stackInitSeekSent
		c.objectsMu.Unlock()
		if pending {
			return stream.ProbeDrop
		}
		return stream.ProbePass

	case stream.EventSegment:
		c.objectsMu.Lock()
		pending := c.stackInitSeek != nil && !c.stackInitSeekSent
		c.objectsMu.Unlock()
		if pending {
			return stream.ProbeDrop
		}

		c.mu.Lock()
		runStart := c.segment.RunningTime(ev.Segment.Start)
		runStop := c.segment.RunningTime(ev.Segment.Stop)
		ev.Segment.Base = c.nextBaseTime
		c.nextBaseTime += runStop - runStart
		c.segment = ev.Segment
		c.mu.Unlock()

		p.maybeDispatchInitializingSeek()
		return stream.ProbePass

	case stream.EventTag:
		if c.DropTags() {
			return stream.ProbeDrop
		}
		return stream.ProbePass

	case stream.EventEOS:
		c.mu.Lock()
		realSeqnum := c.realEOSSeqnum
		nextSeqnum := c.nextEOSSeqnum
		seekSeqnum := c.seekSeqnum
		c.mu.Unlock()

		if ev.Seqnum == realSeqnum {
			ev.Seqnum = seekSeqnum
			if c.metrics != nil {
				c.metrics.ObserveEOSForwarded()
			}
			return stream.ProbePass
		}
		if ev.Seqnum == nextSeqnum {
			c.queue.Enqueue(Action{
				Priority: ActionDefault,
				Tag:      "update",
				Func:     func(comp *Composition) { comp.runUpdate(ReasonEOS) },
			})
		}
		return stream.ProbeDrop

	default:
		return stream.ProbePass
	}
}

// onQuery answers duration and needs-teardown queries and applies the
// buffer/serialized-query resume rules (spec §4.6, §6). Other query
// types, including query-parent-nle-object, pass through unanswered.
func (p *EventProbe) onQuery(q *stream.Query) stream.ProbeReturn {
	p.maybeDispatchInitializingSeek()
	p.resumeOnData()

	switch q.Type {
	case stream.QueryDuration:
		q.Duration = p.comp.Duration()
		return stream.ProbeDrop
	case stream.QueryNeedsTeardown:
		q.NeedsTeardown = false
		return stream.ProbeDrop
	default:
		return stream.ProbePass
	}
}

// OnBuffer is invoked by the data-plane caller when a buffer arrives at
// the composition's source pad; it is the "buffer" half of spec §4.6's
// dispatch rules (buffer probes in this package's stream stand-in carry
// no sequence number, so the buffer-class rule is exposed as an explicit
// hook rather than folded into Pad.PushBuffer's generic probe path).
func (p *EventProbe) OnBuffer() {
	p.maybeDispatchInitializingSeek()
	p.resumeOnData()
}

// maybeDispatchInitializingSeek enqueues the stored stack-initialization
// seek at high priority exactly once, the moment a buffer or serialized
// query arrives while it is pending (spec §4.6 first bullet).
func (p *EventProbe) maybeDispatchInitializingSeek() {
	c := p.comp
	c.objectsMu.Lock()
	seek := c.stackInitSeek
	pending := seek != nil && !c.stackInitSeekSent
	if pending {
		c.stackInitSeekSent = true
	}
	c.objectsMu.Unlock()

	if !pending {
		return
	}

	c.queue.Enqueue(Action{
		Priority: ActionHigh,
		Tag:      "initializing-seek",
		Func: func(comp *Composition) {
			comp.sourcePad.PushSeek(*seek)
		},
	})
	p.tryResume(seek.Seqnum)
}
