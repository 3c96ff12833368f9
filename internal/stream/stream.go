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

// Package stream is a deliberately small in-process stand-in for the
// streaming framework that spec.md §1 treats as an external collaborator
// (elements, pads, events, buffers, bins). The composition package is the
// thing under specification; this package exists only so it has a real
// graph to build, link, seek and flush.
package stream

import "time"

// State mirrors the coarse element-lifecycle states a wrapped element
// moves through on the way to producing data.
type State int

const (
	StateNull State = iota
	StateReady
	StatePaused
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateNull:
		return "NULL"
	case StateReady:
		return "READY"
	case StatePaused:
		return "PAUSED"
	case StatePlaying:
		return "PLAYING"
	default:
		return "UNKNOWN"
	}
}

// SeekType distinguishes an absolute seek position from one left
// unspecified (spec §4.3: "clamping the start type and value").
type SeekType int

const (
	SeekTypeNone SeekType = iota
	SeekTypeSet
)

// SeekFlags is a bitmask of behavior requested on a seek.
type SeekFlags uint32

const (
	SeekFlagNone     SeekFlags = 0
	SeekFlagFlush    SeekFlags = 1 << 0
	SeekFlagAccurate SeekFlags = 1 << 1
)

func (f SeekFlags) Has(flag SeekFlags) bool { return f&flag != 0 }

// Seek is the translated equivalent of a GStreamer seek event: a request
// to reposition playback to Start (with StartType governing whether Start
// is meaningful) at the given Rate, optionally bounded by Stop/StopType.
type Seek struct {
	Seqnum    uint32
	Rate      float64
	StartType SeekType
	Start     time.Duration
	StopType  SeekType
	Stop      time.Duration
	Flags     SeekFlags
	// Clamped is set by EdgePad translation when the requested Start fell
	// outside the object's validity and was clamped (spec §4.3, §7 SeekRejected).
	Clamped bool
}

// Segment describes the playback window currently flowing downstream.
// Time is the internal-to-external (or external-to-internal) time base
// offset applied during translation (spec §4.3); Base is the running-time
// accumulator segment.base uses for cross-stack continuity (spec §4.6).
type Segment struct {
	Start time.Duration
	Stop  time.Duration
	Time  time.Duration
	Base  time.Duration
	Rate  float64
}

// RunningTime returns the downstream running time of position pos within
// this segment, per the standard running-time formula used by spec §4.6's
// next_base_time accounting: (pos - segment.start) / |rate| + segment.base.
func (s Segment) RunningTime(pos time.Duration) time.Duration {
	rate := s.Rate
	if rate == 0 {
		rate = 1
	}
	if rate < 0 {
		rate = -rate
	}
	delta := pos - s.Start
	return time.Duration(float64(delta)/rate) + s.Base
}

// EventType enumerates the closed set of event kinds spec §4.6 dispatches
// on in the downstream probe.
type EventType int

const (
	EventFlushStart EventType = iota
	EventFlushStop
	EventSegment
	EventEOS
	EventStreamStart
	EventStreamGroupDone
	EventCaps
	EventTag
)

func (t EventType) String() string {
	switch t {
	case EventFlushStart:
		return "flush-start"
	case EventFlushStop:
		return "flush-stop"
	case EventSegment:
		return "segment"
	case EventEOS:
		return "eos"
	case EventStreamStart:
		return "stream-start"
	case EventStreamGroupDone:
		return "stream-group-done"
	case EventCaps:
		return "caps"
	case EventTag:
		return "tag"
	default:
		return "unknown"
	}
}

// Event is a single item traveling the data plane, carrying whatever
// payload its Type implies. Seqnum correlates cause and effect across the
// data plane exactly as spec §5/§9 describe: free-running, compared only
// for exact equality, zero meaning absent.
type Event struct {
	Type     EventType
	Seqnum   uint32
	Segment  Segment
	StreamID string
	Tags     map[string]string
	Caps     string
}

// Buffer is a minimal timestamped data item; the composition package
// never looks inside it, only at its Timestamp (internal time).
type Buffer struct {
	Timestamp time.Duration
	Duration  time.Duration
}

// Query is the minimal bidirectional query mechanism pads expose: a
// position query (answered with an internal/external time depending on
// which side asks) and the custom "needs-teardown" query spec §6 defines.
type QueryType int

const (
	QueryPosition QueryType = iota
	QueryDuration
	QueryNeedsTeardown
)

type Query struct {
	Type     QueryType
	Position time.Duration
	Duration time.Duration
	// NeedsTeardown is filled in by a handler that wants to veto stack reuse.
	NeedsTeardown bool
}
