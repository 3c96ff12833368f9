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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionQueueFIFOWithinPriority(t *testing.T) {
	q := NewActionQueue()
	var order []string
	q.Enqueue(Action{Tag: "a", Func: func(*Composition) { order = append(order, "a") }})
	q.Enqueue(Action{Tag: "b", Func: func(*Composition) { order = append(order, "b") }})

	a1, ok := q.Dequeue()
	require.True(t, ok)
	a1.Func(nil)
	a2, ok := q.Dequeue()
	require.True(t, ok)
	a2.Func(nil)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestActionQueueHighPriorityGoesToHead(t *testing.T) {
	q := NewActionQueue()
	q.Enqueue(Action{Tag: "default", Priority: ActionDefault})
	q.Enqueue(Action{Tag: "high", Priority: ActionHigh})

	first, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, "high", first.Tag)
}

func TestActionQueueRemoveByTagCoalesces(t *testing.T) {
	q := NewActionQueue()
	q.Enqueue(Action{Tag: "update", Priority: ActionDefault})
	q.Enqueue(Action{Tag: "seek", Priority: ActionDefault})
	q.Enqueue(Action{Tag: "update", Priority: ActionDefault})

	removed := q.RemoveByTag("update")
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, q.Len())
}

func TestActionQueueDequeueBlocksUntilStop(t *testing.T) {
	q := NewActionQueue()
	done := make(chan bool, 1)
	go func() {
		_, ok := q.Dequeue()
		done <- ok
	}()

	select {
	case <-done:
		t.Fatal("dequeue returned before stop or enqueue")
	case <-time.After(20 * time.Millisecond):
	}

	q.Stop()
	select {
	case ok := <-done:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("dequeue did not unblock after stop")
	}
}
