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

// Package workgroup provides a mechanism for controlling the lifetime
// of a set of related goroutines, and for detecting an attempt to stop
// a goroutine from inside itself.
package workgroup

import (
	"context"
	"fmt"
	"sync"
)

type ownerKeyType struct{}

// ownerKey is stashed in the context passed to an AddContext function so
// that a later call to Stop from inside that same function can detect the
// self-join and fail instead of deadlocking.
var ownerKey ownerKeyType

// A Group manages a set of goroutines with related lifetimes.
// The zero value for a Group is fully usable without initialisation.
type Group struct {
	fn []namedFn
}

type namedFn struct {
	name string
	run  func(<-chan struct{}) error
}

// Add adds a function to the Group.
// The function will be executed in its own goroutine when Run is called.
// Add must be called before Run.
func (g *Group) Add(name string, fn func(<-chan struct{}) error) {
	g.fn = append(g.fn, namedFn{name: name, run: fn})
}

// AddContext adds a function taking a context.Context to the group.
// The function will be executed in its own goroutine when Run is called.
// The context supplied to the function will be canceled when the group
// exits, and carries an owner marker that IsSelf can recognize from
// inside fn. AddContext must be called before Run.
func (g *Group) AddContext(name string, fn func(context.Context)) {
	g.fn = append(g.fn, namedFn{name: name, run: func(stop <-chan struct{}) error {
		ctx, cancel := context.WithCancel(context.WithValue(context.Background(), ownerKey, name))
		done := make(chan int)
		go func() {
			defer close(done)
			fn(ctx)
		}()
		// wait for stop
		<-stop

		// cancel fn(ctx)
		cancel()

		// wait for fn(ctx) to exit
		<-done
		return nil
	}})
}

// IsSelf reports whether ctx (as handed to an AddContext function) belongs
// to the named goroutine. Used by callers that must refuse to join/stop
// their own worker from within its own run loop.
func IsSelf(ctx context.Context, name string) bool {
	v, _ := ctx.Value(ownerKey).(string)
	return v != "" && v == name
}

// ErrJoinFromOwnThread is returned by a stop routine that detects it is
// being invoked from the very goroutine it would need to join.
var ErrJoinFromOwnThread = fmt.Errorf("workgroup: cannot join a goroutine from inside itself")

// Run executes each function registered via Add in its own goroutine.
// Run blocks until all functions have returned.
// The first function to return will trigger the closure of the channel
// passed to each function, who should in turn, return.
// The return value from the first function to exit will be returned to
// the caller of Run.
func (g *Group) Run() error {

	// if there are no registered functions, return immediately.
	if len(g.fn) < 1 {
		return nil
	}

	var wg sync.WaitGroup
	wg.Add(len(g.fn))

	stop := make(chan struct{})
	result := make(chan error, len(g.fn))
	for _, fn := range g.fn {
		go func(fn namedFn) {
			defer wg.Done()
			result <- fn.run(stop)
		}(fn)
	}

	defer wg.Wait()
	defer close(stop)
	return <-result
}
