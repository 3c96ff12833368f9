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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nlecomposer/nle/internal/metrics"
	"github.com/nlecomposer/nle/internal/stream"
)

// pendingIOKind distinguishes an add from a remove in pending_io
// (spec §3 "pending_io — bag of objects awaiting add/remove at next
// commit").
type pendingIOKind int

const (
	pendingAdd pendingIOKind = iota
	pendingRemove
)

type pendingIOEntry struct {
	kind pendingIOKind
	node Node
}

// Composition is the timed container managed by the controller; it
// behaves externally as a single source (spec GLOSSARY, §3, §6).
type Composition struct {
	*Object

	// mu is the composition object lock: short critical sections guarding
	// id, dropTags and the controller handle (spec §5).
	mu        sync.Mutex
	id        string
	dropTags  bool
	task      *ControllerTask
	sourcePad *stream.Pad

	// objectsMu guards the master object lists and current stack. The
	// controller thread is documented as the sole mutator (spec §3
	// invariant 6); the mutex exists so property reads and bus/metrics
	// observers from other goroutines never race with it.
	objectsMu    sync.Mutex
	objectsStart []Node
	objectsStop  []Node
	objectsHash  map[string]Node
	pendingIO    []pendingIOEntry
	expandables  []Node

	current           *Stack
	currentStackStart time.Duration
	currentStackStop  time.Duration
	hasStackInterval  bool

	realStart time.Duration
	realStop  time.Duration

	segment      stream.Segment
	seekSegment  stream.Segment
	nextBaseTime time.Duration

	flushSeqnum         uint32
	seekSeqnum          uint32
	realEOSSeqnum       uint32
	nextEOSSeqnum       uint32
	seqnumToRestartTask uint32
	updatingReason      UpdateReason

	stackInitSeek     *stream.Seek
	stackInitSeekSent bool

	sendStreamStart bool

	waitingSerializedQueryOrBuffer bool

	rate float64

	lastSeekSeqnumSeen uint32

	bin   *stream.Bin
	state stream.State

	eventProbe *EventProbe

	queue   *ActionQueue
	bus     *Bus
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	committedCh chan bool

	// needsTeardown is consulted before a structurally-equal stack is
	// reused (spec §6 "needs-teardown" downstream veto, supplemented from
	// the original's pad query); nil means "never veto reuse".
	needsTeardown func() bool
}

// New returns a Composition with the given stream id and a fresh, empty
// object set. drop-tags defaults to true (spec §6).
func New(id string, m *metrics.Metrics, log logrus.FieldLogger) *Composition {
	if id == "" {
		id = uuid.NewString()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	c := &Composition{
		Object:      NewObject(id, KindComposition),
		id:          id,
		dropTags:    true,
		objectsHash: make(map[string]Node),
		sourcePad:   stream.NewPad(id+":src", stream.DirectionSrc),
		bin:         stream.NewBin(),
		queue:       NewActionQueue(),
		bus:         NewBus(),
		metrics:     m,
		log:         log.WithField("composition", id),
		committedCh: make(chan bool, 8),
	}
	c.task = NewControllerTask(c)
	c.eventProbe = NewEventProbe(c)
	c.eventProbe.Install(c.sourcePad)
	return c
}

// SourcePad returns the composition's single output edge pad
// (spec §6: "A single output edge pad on which the composed stream
// appears").
func (c *Composition) SourcePad() *stream.Pad { return c.sourcePad }

// Bus returns the composition's element-bus fan-out.
func (c *Composition) Bus() *Bus { return c.bus }

// Committed returns the channel the "committed" signal is raised on
// (spec §6: "A committed signal raised from the controller thread once
// the commit...has completed").
func (c *Composition) Committed() <-chan bool { return c.committedCh }

// ID returns the composition-level stream id property.
func (c *Composition) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// DropTags returns the composition-level drop-tags property (default
// true).
func (c *Composition) DropTags() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropTags
}

// SetDropTags sets the drop-tags property.
func (c *Composition) SetDropTags(v bool) {
	c.mu.Lock()
	c.dropTags = v
	c.mu.Unlock()
}

// SetID sets the composition-level stream id property (spec §6 lists
// id as a live property, not only a construction-time argument).
func (c *Composition) SetID(id string) {
	c.mu.Lock()
	c.id = id
	c.mu.Unlock()
}

// SetNeedsTeardownHook installs a callback the controller consults before
// reusing a structurally-equal stack; returning true forces a rebuild
// anyway. This is the Go stand-in for the original's "needs-teardown"
// downstream pad query (spec §6).
func (c *Composition) SetNeedsTeardownHook(hook func() bool) {
	c.mu.Lock()
	c.needsTeardown = hook
	c.mu.Unlock()
}

func (c *Composition) needsTeardownNow() bool {
	c.mu.Lock()
	hook := c.needsTeardown
	c.mu.Unlock()
	return hook != nil && hook()
}

// Start runs the controller task's worker goroutine (spec §5: "one
// controller thread per composition").
func (c *Composition) Start() {
	c.task.Start()
}

// State returns the composition's own element state.
func (c *Composition) State() stream.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetState transitions the composition and its internal bin to s,
// syncing the bin's state with the composition's own (spec §4.4 step 9:
// "sync the internal bin's state with the composition's").
func (c *Composition) SetState(s stream.State) error {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
	return c.bin.SetState(s)
}

// Stop cooperatively stops the controller task. Returns
// ErrJoinFromOwnThread if called from inside the task's own goroutine
// (spec §5, §7); callers that want to stop the composition from within
// an action closure must pass c.task.Context() so that case can be
// detected without a native thread id.
func (c *Composition) Stop(ctx context.Context) error {
	return c.task.Stop(ctx)
}

// Add stages a child object for insertion, realized at the next commit
// (spec §6: "Both are lazily realized: the object moves into pending_io
// and is reconciled at the next commit").
func (c *Composition) Add(n Node) {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	c.pendingIO = append(c.pendingIO, pendingIOEntry{kind: pendingAdd, node: n})
}

// Remove stages a child object for removal, realized at the next commit.
func (c *Composition) Remove(n Node) {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	c.pendingIO = append(c.pendingIO, pendingIOEntry{kind: pendingRemove, node: n})
}

// Initialize enqueues the first transition from stopped to
// ready-to-play (spec §4.1 "Initialize (first transition from stopped to
// ready-to-play)").
func (c *Composition) Initialize() {
	c.queue.Enqueue(Action{
		Priority: ActionDefault,
		Tag:      "initialize",
		Func: func(comp *Composition) {
			comp.runInitialize()
		},
	})
}

// CurrentStack returns the controller thread's currently active stack,
// safe to call from any goroutine for introspection and tests.
func (c *Composition) CurrentStack() *Stack {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	return c.current
}

// Commit enqueues the commit action that triggers the commit pathway
// (spec §6: "A commit action signal that triggers the commit pathway").
func (c *Composition) Commit() {
	c.queue.Enqueue(Action{
		Priority: ActionDefault,
		Tag:      "commit",
		Func: func(comp *Composition) {
			comp.runCommit(ReasonCommit)
		},
	})
}

// Seek enqueues an incoming seek. Per spec §4.1's idempotence rule, a
// seek whose sequence number equals the most recently scheduled or
// in-progress seek is silently dropped.
func (c *Composition) Seek(seek stream.Seek) {
	c.objectsMu.Lock()
	if seek.Seqnum != 0 && seek.Seqnum == c.lastSeekSeqnumSeen {
		c.objectsMu.Unlock()
		return
	}
	c.lastSeekSeqnumSeen = seek.Seqnum
	c.objectsMu.Unlock()

	if c.metrics != nil {
		c.metrics.ObserveSeek()
	}
	c.queue.Enqueue(Action{
		Priority: ActionHigh,
		Tag:      "seek",
		Func: func(comp *Composition) {
			comp.runSeek(seek)
		},
	})
}

// reconcilePendingIO applies every staged add/remove, updates the master
// lists and hash, and reports whether membership changed.
func (c *Composition) reconcilePendingIO() bool {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()

	if len(c.pendingIO) == 0 {
		return false
	}

	changed := false
	for _, e := range c.pendingIO {
		obj := e.node.Underlying()
		switch e.kind {
		case pendingAdd:
			if _, exists := c.objectsHash[obj.ID]; exists {
				continue
			}
			c.objectsHash[obj.ID] = e.node
			obj.inComposition = true
			if obj.Priority() == PriorityMax {
				c.expandables = append(c.expandables, e.node)
			} else {
				c.objectsStart = append(c.objectsStart, e.node)
				c.objectsStop = append(c.objectsStop, e.node)
			}
			changed = true
		case pendingRemove:
			if _, exists := c.objectsHash[obj.ID]; !exists {
				continue
			}
			delete(c.objectsHash, obj.ID)
			c.objectsStart = removeNode(c.objectsStart, obj.ID)
			c.objectsStop = removeNode(c.objectsStop, obj.ID)
			c.expandables = removeNode(c.expandables, obj.ID)
			obj.resetToDefaults()
			changed = true
		}
	}
	c.pendingIO = nil

	sortByStartPriority(c.objectsStart)
	sortByStopPriorityDesc(c.objectsStop)

	return changed
}

func removeNode(nodes []Node, id string) []Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n.Underlying().ID != id {
			out = append(out, n)
		}
	}
	return out
}

func sortByStartPriority(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		oi, oj := nodes[i].Underlying(), nodes[j].Underlying()
		if oi.Start() != oj.Start() {
			return oi.Start() < oj.Start()
		}
		return oi.Priority() < oj.Priority()
	})
}

func sortByStopPriorityDesc(nodes []Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		oi, oj := nodes[i].Underlying(), nodes[j].Underlying()
		if oi.Stop() != oj.Stop() {
			return oi.Stop() > oj.Stop()
		}
		return oi.Priority() < oj.Priority()
	})
}

// recomputeRealStartStop derives the composition-level start/stop/
// duration from the live extent of every non-expandable member object
// (spec §3's composition-level start/stop/duration, recomputed at
// commit per §4.1's Commit action function).
func (c *Composition) recomputeRealStartStop() {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()

	if len(c.objectsStart) == 0 {
		c.realStart, c.realStop = 0, 0
		return
	}
	start := c.objectsStart[0].Underlying().Start()
	stop := c.realStop
	first := true
	for _, n := range c.objectsStart {
		o := n.Underlying()
		if first || o.Stop() > stop {
			stop = o.Stop()
		}
		first = false
	}
	c.realStart = start
	c.realStop = stop

	// Publish the composition's own start/stop/duration through its
	// embedded Object (spec §3: a composition carries the same five timed
	// properties as any other member, derived here rather than set by a
	// caller), so a parent composition can treat this one as an ordinary
	// Source/Operation-shaped Node.
	c.Object.SetPendingStart(c.realStart)
	_ = c.Object.SetPendingDuration(c.realStop - c.realStart)
	c.Object.Commit()

	c.resizeExpandablesLocked()
}

// Underlying satisfies Node so a Composition can be nested as a member
// object of a parent composition, matching the glossary's "a composition
// behaves externally as a single source."
func (c *Composition) Underlying() *Object { return c.Object }

// SinkRequirement satisfies Node; like a Source, a composition reports no
// sink requirement, so a parent stack treats it as a leaf.
func (c *Composition) SinkRequirement() (numSinks int, dynamic bool) { return 0, false }

// RealStart returns the composition-level start derived from its member
// objects' live extent (spec §3).
func (c *Composition) RealStart() time.Duration {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	return c.realStart
}

// RealStop returns the composition-level stop derived from its member
// objects' live extent (spec §3).
func (c *Composition) RealStop() time.Duration {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	return c.realStop
}

// resizeExpandablesLocked stretches every expandable default source to
// cover the composition's full real interval, mirroring
// update_start_stop_duration's expandable resize in the original
// implementation (spec §9 supplement; caller holds objectsMu).
func (c *Composition) resizeExpandablesLocked() {
	for _, n := range c.expandables {
		o := n.Underlying()
		o.SetPendingStart(c.realStart)
		_ = o.SetPendingDuration(c.realStop - c.realStart)
		o.commit()
	}
}

// snapshotLists returns the current sorted lists and expandables for use
// by StackBuilder outside the objectsMu critical section.
func (c *Composition) snapshotLists() (byStart, byStop, expandables []Node) {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	byStart = append([]Node(nil), c.objectsStart...)
	byStop = append([]Node(nil), c.objectsStop...)
	expandables = append([]Node(nil), c.expandables...)
	return
}

// nodeByID looks up a member node by object identity, used when
// attaching/detaching the wrapped graph during a stack swap.
func (c *Composition) nodeByID(id string) (Node, bool) {
	c.objectsMu.Lock()
	defer c.objectsMu.Unlock()
	n, ok := c.objectsHash[id]
	if ok {
		return n, true
	}
	for _, e := range c.expandables {
		if e.Underlying().ID == id {
			return e, true
		}
	}
	return nil, false
}
