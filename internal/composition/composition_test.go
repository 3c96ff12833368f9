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
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlecomposer/nle/internal/stream"
)

func newTestComposition(id string) *Composition {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	return New(id, nil, log)
}

// waitForRoot polls CurrentStack until its root matches wantRootID or the
// timeout elapses, nudging the controller's self-pause on each iteration
// via a position query (the "serialized query" half of spec §4.6's first
// bullet: "Buffer or serialized query ... synthesize and enqueue the seek
// action, mark it sent, resume the task").
func waitForRoot(t *testing.T, c *Composition, wantRootID string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		c.SourcePad().Query(stream.Query{Type: stream.QueryPosition})
		if s := c.CurrentStack(); !s.Empty() && s.Root.ObjectID == wantRootID {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for stack root %q, got %+v", wantRootID, c.CurrentStack())
}

// Scenario 1 from spec §8: simple concatenation of three sources.
func TestCompositionSimpleConcatenation(t *testing.T) {
	c := newTestComposition("comp-1")
	a := NewSource("A", false)
	b := NewSource("B", false)
	c2 := NewSource("C", false)

	a.SetPendingStart(0)
	require.NoError(t, a.SetPendingDuration(2*time.Second))
	b.SetPendingStart(2 * time.Second)
	require.NoError(t, b.SetPendingDuration(2*time.Second))
	c2.SetPendingStart(4 * time.Second)
	require.NoError(t, c2.SetPendingDuration(2*time.Second))

	c.Add(a)
	c.Add(b)
	c.Add(c2)

	c.Start()
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	c.Initialize()
	waitForRoot(t, c, "A", time.Second)

	stack := c.CurrentStack()
	assert.Equal(t, time.Duration(0), stack.Start)
	assert.Equal(t, 2*time.Second, stack.Stop)
}

// Scenario 6 from spec §8: a gap between sources posts a TimelineGap
// stream error on the bus without leaving a flush unpaired.
func TestCompositionGapPostsStreamError(t *testing.T) {
	c := newTestComposition("comp-gap")
	a := NewSource("A", false)
	b := NewSource("B", false)
	a.SetPendingStart(0)
	require.NoError(t, a.SetPendingDuration(2*time.Second))
	b.SetPendingStart(3 * time.Second)
	require.NoError(t, b.SetPendingDuration(3*time.Second))

	c.Add(a)
	c.Add(b)

	msgs := c.Bus().Subscribe()

	c.Start()
	defer func() { require.NoError(t, c.Stop(context.Background())) }()

	c.Initialize()
	waitForRoot(t, c, "A", time.Second)

	c.setPlayhead(2500 * time.Millisecond)
	c.queue.Enqueue(Action{Tag: "update", Func: func(comp *Composition) { comp.runUpdate(ReasonEOS) }})

	deadline := time.Now().Add(time.Second)
	var gotError bool
	for time.Now().Before(deadline) {
		select {
		case msg := <-msgs:
			if msg.Kind == MsgError && msg.Err != nil && msg.Err.Kind == KindTimelineGap {
				gotError = true
			}
		default:
			time.Sleep(2 * time.Millisecond)
		}
		if gotError {
			break
		}
	}
	assert.True(t, gotError, "expected a TimelineGap stream error on the bus")
}

func TestCompositionStopFromOwnGoroutineReturnsJoinError(t *testing.T) {
	c := newTestComposition("comp-self-stop")
	c.Start()

	done := make(chan error, 1)
	c.queue.Enqueue(Action{
		Tag: "self-stop",
		Func: func(comp *Composition) {
			done <- comp.Stop(comp.task.Context())
		},
	})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrJoinFromOwnThread)
	case <-time.After(time.Second):
		t.Fatal("self-stop action never ran")
	}

	require.NoError(t, c.Stop(context.Background()))
}
