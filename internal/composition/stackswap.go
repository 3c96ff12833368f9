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
	"github.com/nlecomposer/nle/internal/stream"
)

// swapStack runs spec §4.4's ten-step stack swap algorithm: flush the
// downstream target, empty and hard-clean the internal bin, attach the
// new tree depth-first, re-ghost the source pad if the root changed, and
// store the one-shot initializing seek for the event probe to dispatch.
func (c *Composition) swapStack(next *Stack, reason UpdateReason) {
	c.mu.Lock()
	c.flushSeqnum++
	flushSeqnum := c.flushSeqnum
	c.mu.Unlock()

	// The drop-everything probe blocks data flowing downstream during the
	// teardown window, but flush events must still pass through it
	// (spec §4.4 steps 2-4 push flush-start/flush-stop through this very
	// probe); only non-flush events and buffers are dropped.
	dropProbe := &stream.Probe{
		Mask: stream.ProbeEventDownstream | stream.ProbeBuffer,
		OnEvent: func(ev *stream.Event) stream.ProbeReturn {
			if ev.Type == stream.EventFlushStart || ev.Type == stream.EventFlushStop {
				return stream.ProbePass
			}
			return stream.ProbeDrop
		},
	}
	c.sourcePad.AddProbe(dropProbe)

	c.sourcePad.PushEvent(stream.Event{Type: stream.EventFlushStart, Seqnum: flushSeqnum})

	if c.bin != nil {
		_ = c.bin.SetState(stream.StateReady)
	}

	c.sourcePad.PushEvent(stream.Event{Type: stream.EventFlushStop, Seqnum: flushSeqnum})
	if c.metrics != nil {
		c.metrics.ObserveFlushPair()
	}

	c.sourcePad.RemoveProbe(dropProbe)

	oldRootID := ""
	c.objectsMu.Lock()
	if c.current != nil && c.current.Root != nil {
		oldRootID = c.current.Root.ObjectID
	}
	c.objectsMu.Unlock()

	c.bin.Empty()
	c.hardCleanupPreviousStack()

	var newRootPad *stream.Pad
	if next != nil && next.Root != nil {
		newRootPad = c.attachTree(next.Root, nil)
	}

	rootChanged := next == nil || next.Root == nil || next.Root.ObjectID != oldRootID
	if rootChanged && newRootPad != nil {
		c.sourcePad.SetTarget(newRootPad)
	}
	if rootChanged {
		c.eventProbe.Reinstall(c.sourcePad)
	}

	c.objectsMu.Lock()
	c.current = next
	if next != nil {
		c.currentStackStart, c.currentStackStop = next.Start, next.Stop
		c.hasStackInterval = true
	} else {
		c.hasStackInterval = false
	}
	c.objectsMu.Unlock()

	if c.bin != nil {
		_ = c.bin.SetState(c.State())
	}

	if c.metrics != nil {
		c.metrics.ObserveStackRebuilt()
	}

	c.storeInitializingSeek(next, reason, flushSeqnum)
}

// hardCleanupPreviousStack unlinks every operation's sink pads even if
// upstream never finished tearing down (spec §4.4 step 6).
func (c *Composition) hardCleanupPreviousStack() {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	for _, n := range c.objectsHash {
		if op, ok := n.(*Operation); ok {
			op.UnlinkAll()
		}
	}
}

// attachTree gst-adds each node to the internal bin (which syncs its
// state) and links it to its parent via the next unlinked operation sink
// pad (spec §4.4 step 7). Child priorities are not propagated to the
// parent operation. It returns the subtree root's externally visible
// source edge pad.
func (c *Composition) attachTree(node *StackNode, parent *Operation) *stream.Pad {
	n, ok := c.nodeByID(node.ObjectID)
	if !ok {
		return nil
	}

	var requiredCaps string
	if parent != nil {
		requiredCaps = parent.Caps()
	}

	var ghost *stream.Pad
	switch v := n.(type) {
	case *Source:
		v.SimpleElement().SetCaps(v.Caps())
		if err := c.bin.Add(v.SimpleElement(), requiredCaps); err != nil {
			c.postError(newChildStateChangeError(v.ID, err))
		}
		ghost = v.GhostPad()
	case *Operation:
		v.SimpleElement().SetCaps(v.Caps())
		if err := c.bin.Add(v.SimpleElement(), requiredCaps); err != nil {
			c.postError(newChildStateChangeError(v.ID, err))
		}
		if err := v.EnsureSinkCount(len(node.Children)); err != nil {
			c.postError(err)
		}
		ghost = v.GhostPad()
	}

	if parent != nil && ghost != nil {
		if sink, ok := parent.NextUnlinkedSinkPad(); ok {
			_ = stream.Link(ghost, sink)
		}
	}

	var childOp *Operation
	if op, ok := n.(*Operation); ok {
		childOp = op
	}
	for _, child := range node.Children {
		c.attachTree(child, childOp)
	}

	return ghost
}

// storeInitializingSeek builds and stores the one-shot seek that primes a
// freshly built stack; the event probe's caps and segment rules drop
// events while it is pending, and its query/buffer handlers dispatch it
// exactly once (spec §4.4 step 10, §4.1's pause-and-resume protocol).
func (c *Composition) storeInitializingSeek(next *Stack, reason UpdateReason, flushSeqnum uint32) {
	if next == nil || next.Root == nil {
		return
	}

	c.mu.Lock()
	c.seekSeqnum++
	seqnum := c.seekSeqnum
	c.mu.Unlock()

	seek := &stream.Seek{
		Seqnum:    seqnum,
		Rate:      c.rate,
		StartType: stream.SeekTypeSet,
		Start:     next.Start,
		StopType:  stream.SeekTypeSet,
		Stop:      next.Stop,
		Flags:     stream.SeekFlagFlush | stream.SeekFlagAccurate,
	}

	c.objectsMu.Lock()
	c.stackInitSeek = seek
	c.stackInitSeekSent = false
	c.objectsMu.Unlock()

	resume := make(chan struct{})
	c.eventProbe.armResume(seqnum, resume)
	c.task.pauseForSeqnum(seqnum, reason, resume)
}
