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
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nlecomposer/nle/internal/stream"
	"github.com/nlecomposer/nle/internal/workgroup"
)

const controllerGoroutineName = "controller"

// ControllerTask owns one dedicated worker goroutine and drives the
// action queue to completion, implementing spec §4.1's serialized update
// state machine.
type ControllerTask struct {
	comp  *Composition
	group workgroup.Group

	mu      sync.Mutex
	started bool
	runCtx  context.Context
	runErr  chan error

	// paused is non-zero while the task is self-paused awaiting the
	// event probe's resume signal (spec §4.1 "pause-and-resume
	// protocol").
	paused int32
}

const controllerWatchdogName = "controller-watchdog"

// NewControllerTask returns a controller task bound to comp. Call Start
// to launch its worker goroutine.
func NewControllerTask(comp *Composition) *ControllerTask {
	return &ControllerTask{comp: comp}
}

// Start launches the controller's dedicated worker goroutine
// (spec §5: "One controller thread per composition consumes the action
// queue").
func (t *ControllerTask) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	t.runErr = make(chan error, 1)

	loopDone := make(chan struct{})
	t.group.AddContext(controllerGoroutineName, func(ctx context.Context) {
		t.mu.Lock()
		t.runCtx = ctx
		t.mu.Unlock()
		t.loop()
		close(loopDone)
	})

	// Group.Run only tears down once the first registered function
	// returns on its own; the controller's own AddContext wrapper never
	// does that (it always waits for the group's shared stop channel
	// first), so a lone controller function would deadlock Stop. This
	// watchdog mirrors the teacher's pattern of registering a second,
	// independently-returning function that triggers the group-wide
	// shutdown once the controller loop drains.
	t.group.Add(controllerWatchdogName, func(stop <-chan struct{}) error {
		select {
		case <-loopDone:
		case <-stop:
		}
		return nil
	})

	go func() {
		t.runErr <- t.group.Run()
	}()
}

// Context returns the worker goroutine's context, meaningful only when
// called from within a closure executing on that goroutine (i.e. from
// inside an enqueued Action). Action bodies that need to call
// Composition.Stop on themselves pass this context through so the
// self-join can be detected (spec §5, §7 JoinFromOwnThread).
func (t *ControllerTask) Context() context.Context {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.runCtx
}

// loop is spec §4.1 step 1-2's dequeue/invoke/clear cycle.
func (t *ControllerTask) loop() {
	for {
		action, ok := t.comp.queue.Dequeue()
		if !ok {
			return
		}
		action.Func(t.comp)
		if t.comp.metrics != nil {
			t.comp.metrics.ObserveActionProcessed(action.Tag)
		}
	}
}

// Stop cooperatively stops the controller task (spec §5: "stop-task sets
// running=false, signals the condition, and joins"). If ctx identifies
// the call as originating from the controller's own goroutine, the task
// is left running and ErrJoinFromOwnThread is returned instead of
// deadlocking (spec §7 JoinFromOwnThread).
func (t *ControllerTask) Stop(ctx context.Context) error {
	if ctx != nil && workgroup.IsSelf(ctx, controllerGoroutineName) {
		return ErrJoinFromOwnThread
	}

	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	runErr := t.runErr
	t.mu.Unlock()

	t.comp.queue.Stop()
	<-runErr

	t.mu.Lock()
	t.started = false
	t.mu.Unlock()
	return nil
}

// pauseForSeqnum implements the self-pause half of spec §4.1's
// pause-and-resume protocol: the controller records
// seqnum_to_restart_task and updating_reason, then blocks the worker
// goroutine until the event probe (running on a data-plane goroutine)
// signals resume.
func (t *ControllerTask) pauseForSeqnum(seqnum uint32, reason UpdateReason, resume <-chan struct{}) {
	t.comp.mu.Lock()
	t.comp.seqnumToRestartTask = seqnum
	t.comp.updatingReason = reason
	t.comp.mu.Unlock()
	atomic.StoreInt32(&t.paused, 1)
	if t.comp.metrics != nil {
		t.comp.metrics.SetControllerPaused(true)
	}

	<-resume

	atomic.StoreInt32(&t.paused, 0)
	if t.comp.metrics != nil {
		t.comp.metrics.SetControllerPaused(false)
	}
}

// Paused reports whether the worker goroutine is currently self-paused
// awaiting an initializing seek to take effect.
func (t *ControllerTask) Paused() bool {
	return atomic.LoadInt32(&t.paused) != 0
}

// runCommit is the Commit action function (spec §4.1): translate
// pending->live for every object, re-sort the lists, recompute
// composition-level start/stop/duration; if the playhead falls outside
// the still-valid stack interval, perform an update, otherwise emit just
// a translated seek on the current stack.
func (c *Composition) runCommit(reason UpdateReason) {
	if c.metrics != nil {
		timer := c.metrics.CommitTimer()
		defer timer.ObserveDuration()
	}

	c.bus.Post(BusMessage{Kind: MsgStartUpdate, Reason: reason})

	c.reconcilePendingIO()

	c.objectsMu.Lock()
	for _, n := range c.objectsHash {
		n.Underlying().commit()
	}
	for _, n := range c.expandables {
		n.Underlying().commit()
	}
	sortByStartPriority(c.objectsStart)
	sortByStopPriorityDesc(c.objectsStop)
	c.objectsMu.Unlock()

	c.recomputeRealStartStop()

	playhead := c.currentPlayhead()
	if !c.hasStackInterval || playhead < c.currentStackStart || playhead >= c.currentStackStop {
		c.runUpdate(reason)
	} else {
		c.emitSeekOnCurrentStack()
	}

	c.bus.Post(BusMessage{Kind: MsgUpdateDone, Reason: reason})
	select {
	case c.committedCh <- true:
	default:
	}
}

// runInitialize is the Initialize action function: commit, then force an
// update at the composition's real start with reason Initialize.
func (c *Composition) runInitialize() {
	c.bus.Post(BusMessage{Kind: MsgStartUpdate, Reason: ReasonInitialize})
	c.reconcilePendingIO()

	c.objectsMu.Lock()
	for _, n := range c.objectsHash {
		n.Underlying().commit()
	}
	for _, n := range c.expandables {
		n.Underlying().commit()
	}
	sortByStartPriority(c.objectsStart)
	sortByStopPriorityDesc(c.objectsStop)
	c.objectsMu.Unlock()

	c.recomputeRealStartStop()
	c.setPlayhead(c.realStart)
	c.runUpdate(ReasonInitialize)
	c.bus.Post(BusMessage{Kind: MsgUpdateDone, Reason: ReasonInitialize})
}

// runSeek is the Seek action function: translate the incoming seek into
// the internal coordinate system, update segment/seek_segment, and fall
// through to the same stack test as Update.
func (c *Composition) runSeek(seek stream.Seek) {
	c.bus.Post(BusMessage{Kind: MsgStartUpdate, Reason: ReasonSeek})

	c.mu.Lock()
	c.seekSeqnum = seek.Seqnum
	c.rate = seek.Rate
	c.mu.Unlock()

	if seek.StartType == stream.SeekTypeSet {
		c.seekSegment.Start = seek.Start
		c.seekSegment.Time = seek.Start
		c.setPlayhead(seek.Start)
	}
	if seek.StopType == stream.SeekTypeSet {
		c.seekSegment.Stop = seek.Stop
	}
	c.seekSegment.Rate = seek.Rate

	c.runUpdate(ReasonSeek)
	c.bus.Post(BusMessage{Kind: MsgUpdateDone, Reason: ReasonSeek})
}

// runUpdate recomputes the stack for the current playhead, compares it
// with current, and either emits a translated seek on the unchanged
// stack or tears down and rebuilds (spec §4.1 Update action function).
func (c *Composition) runUpdate(reason UpdateReason) {
	playhead := c.currentPlayhead()
	byStart, byStop, expandables := c.snapshotLists()

	sb := StackBuilder{RealStart: c.realStart, RealStop: c.realStop}
	next, err := sb.Build(byStart, byStop, expandables, playhead, c.rate < 0)
	if err != nil {
		c.postError(err)
		return
	}

	c.objectsMu.Lock()
	same := SameStructure(c.current, next)
	c.objectsMu.Unlock()

	if same && c.current != nil && !c.needsTeardownNow() {
		c.objectsMu.Lock()
		c.currentStackStart, c.currentStackStop = next.Start, next.Stop
		c.hasStackInterval = true
		c.objectsMu.Unlock()
		if c.metrics != nil {
			c.metrics.ObserveStackReused()
		}
		c.emitSeekOnCurrentStack()
		return
	}

	c.swapStack(next, reason)
}

// emitSeekOnCurrentStack issues a translated seek on the currently
// attached stack without tearing it down, used when a commit or update
// leaves the tree structurally unchanged.
func (c *Composition) emitSeekOnCurrentStack() {
	seek := stream.Seek{
		Seqnum:    c.currentSeekSeqnum(),
		Rate:      c.rate,
		StartType: stream.SeekTypeSet,
		Start:     c.currentPlayhead(),
		StopType:  stream.SeekTypeSet,
		Stop:      c.currentStackStop,
		Flags:     stream.SeekFlagFlush | stream.SeekFlagAccurate,
	}
	c.sourcePad.PushSeek(seek)
}

func (c *Composition) currentSeekSeqnum() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seekSeqnum
}

// currentPlayhead and setPlayhead track the composition's logical
// position; segment.Time is reused as the authoritative store since both
// represent "where we are" in external time.
func (c *Composition) currentPlayhead() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.segment.Time
}

func (c *Composition) setPlayhead(t time.Duration) {
	c.mu.Lock()
	c.segment.Time = t
	c.mu.Unlock()
}

func (c *Composition) postError(err error) {
	serr, ok := err.(*StreamError)
	if !ok {
		serr = &StreamError{Kind: KindInvalidStructure, Message: err.Error()}
	}
	if c.metrics != nil {
		c.metrics.ObserveStreamError(string(serr.Kind))
	}
	c.log.WithField("kind", serr.Kind).Error(serr.Message)
	c.bus.Post(BusMessage{Kind: MsgError, Err: serr})
}
