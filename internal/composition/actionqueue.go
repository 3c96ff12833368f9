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
	"container/list"
	"reflect"
	"sync"
)

// ActionPriority selects where an enqueued closure lands in the queue
// (spec §4.5: "High-priority inserts go to the head, default to the
// tail").
type ActionPriority int

const (
	ActionDefault ActionPriority = iota
	ActionHigh
)

// Action is a unit of controller work, dequeued serially (spec
// GLOSSARY). Func is invoked with the owning Composition as sole
// argument once dequeued.
type Action struct {
	Priority ActionPriority
	Func     func(*Composition)
	// Tag identifies the action's variant (e.g. "seek", "commit") for
	// RemoveByTag's coalescing use, since Go closures built per call
	// share no comparable identity the way a C function pointer would.
	Tag string
}

type queueEntry struct {
	action Action
}

// ActionQueue is a mutex-guarded doubly-linked list of (priority,
// closure) pairs with a condition variable (spec §4.5).
type ActionQueue struct {
	mu      sync.Mutex
	cond    *sync.Cond
	items   *list.List
	running bool
}

// NewActionQueue returns a running queue, ready to accept actions and to
// hand them out through Dequeue.
func NewActionQueue() *ActionQueue {
	q := &ActionQueue{items: list.New(), running: true}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds action to the queue (head if ActionHigh, tail otherwise)
// and signals any waiting dequeuer.
func (q *ActionQueue) Enqueue(action Action) {
	q.mu.Lock()
	defer q.mu.Unlock()
	entry := &queueEntry{action: action}
	if action.Priority == ActionHigh {
		q.items.PushFront(entry)
	} else {
		q.items.PushBack(entry)
	}
	q.cond.Signal()
}

// RemoveByFunc strips every queued action whose closure has the same
// underlying function identity as fn, the targeted-removal primitive
// spec §4.5 uses "to coalesce queued updates when a fresh seek arrives".
// Identity is the closure's code pointer as reported by reflect, so every
// closure built from the same function literal matches; RemoveByTag is
// the variant that tells such per-call closures apart.
func (q *ActionQueue) RemoveByFunc(fn func(*Composition)) int {
	target := reflect.ValueOf(fn).Pointer()
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for e := q.items.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*queueEntry)
		if reflect.ValueOf(entry.action.Func).Pointer() == target {
			q.items.Remove(e)
			removed++
		}
		e = next
	}
	return removed
}

// RemoveByTag strips every queued action whose Tag equals tag, the
// practical form of spec §4.5's targeted-removal primitive for actions
// built from per-call closures (e.g. one Update action per seek) where
// function-pointer identity would otherwise always match.
func (q *ActionQueue) RemoveByTag(tag string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	removed := 0
	for e := q.items.Front(); e != nil; {
		next := e.Next()
		entry := e.Value.(*queueEntry)
		if entry.action.Tag == tag {
			q.items.Remove(e)
			removed++
		}
		e = next
	}
	return removed
}

// Dequeue blocks until an action is available or the queue is stopped.
// It returns ok=false as soon as Stop has been called, even if actions
// are still queued, matching spec §4.1 step 1: "if not running -> exit; if the
// queue is empty -> wait; on wake, if not running -> exit."
func (q *ActionQueue) Dequeue() (Action, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if !q.running {
			return Action{}, false
		}
		if q.items.Len() > 0 {
			break
		}
		q.cond.Wait()
	}
	if !q.running {
		return Action{}, false
	}
	front := q.items.Front()
	q.items.Remove(front)
	return front.Value.(*queueEntry).action, true
}

// Stop sets running=false and wakes every waiter (spec §5:
// "stop-task sets running=false, signals the condition, and joins").
func (q *ActionQueue) Stop() {
	q.mu.Lock()
	q.running = false
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Len reports the number of actions currently queued.
func (q *ActionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.items.Len()
}
