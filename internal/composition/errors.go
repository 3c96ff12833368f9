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

	"github.com/pkg/errors"
)

// ErrorKind is one of the five stream-error kinds spec §7 defines.
type ErrorKind string

const (
	// KindTimelineGap: no object covers the playhead within the
	// composition's real interval.
	KindTimelineGap ErrorKind = "TimelineGap"
	// KindInvalidStructure: an operation's children count cannot satisfy
	// its sink requirements.
	KindInvalidStructure ErrorKind = "InvalidStructure"
	// KindSeekRejected: the translated seek falls outside the object's
	// validity; the caller gets a clamped value back instead of an error.
	KindSeekRejected ErrorKind = "SeekRejected"
	// KindJoinFromOwnThread: a stop-task was attempted from the
	// controller's own worker goroutine.
	KindJoinFromOwnThread ErrorKind = "JoinFromOwnThread"
	// KindChildStateChangeFailure: a wrapped element refused to reach
	// paused/ready/null.
	KindChildStateChangeFailure ErrorKind = "ChildStateChangeFailure"
)

// StreamError is posted to the element bus and returned to the action's
// caller (spec §7). It always carries a Kind and, where one exists, the
// underlying cause.
type StreamError struct {
	Kind    ErrorKind
	Message string
	Cause   error
}

func (e *StreamError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StreamError) Unwrap() error { return e.Cause }

func newTimelineGapError(playhead string) *StreamError {
	return &StreamError{
		Kind:    KindTimelineGap,
		Message: fmt.Sprintf("no object covers the playhead at %s", playhead),
	}
}

func newInvalidStructureError(objectID string, want, got int) *StreamError {
	return &StreamError{
		Kind:    KindInvalidStructure,
		Message: fmt.Sprintf("operation %q needs %d sinks but the selected stack supplies %d", objectID, want, got),
	}
}

func newChildStateChangeError(objectID string, cause error) *StreamError {
	return &StreamError{
		Kind:    KindChildStateChangeFailure,
		Message: fmt.Sprintf("object %q failed to change state", objectID),
		Cause:   errors.Wrapf(cause, "object %q", objectID),
	}
}

// ErrJoinFromOwnThread is returned by Composition.Stop when called from
// inside the controller's own worker goroutine (spec §5, §7).
var ErrJoinFromOwnThread = &StreamError{
	Kind:    KindJoinFromOwnThread,
	Message: "stop-task was attempted from the controller's own thread; task reinstalled, retry from another goroutine",
}
