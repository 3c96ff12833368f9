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

import "github.com/nlecomposer/nle/internal/stream"

// Source wraps one upstream producer and publishes one edge pad (spec §2:
// "Source wraps one upstream producer and publishes one edge pad").
type Source struct {
	*Object

	element *stream.SimpleElement
	ghost   *stream.Pad
	Edge    *EdgePad
}

// NewSource returns a Source backed by a single wrapped element exposing
// one "src" pad. reversePlaying marks a source capable of native reverse
// playback, relevant to EdgePad's incoming-seek rate inversion.
func NewSource(id string, reversePlaying bool) *Source {
	internalSrc := stream.NewPad("src", stream.DirectionSrc)
	element := stream.NewSimpleElement(id, internalSrc)

	ghost := stream.NewPad(id+":src", stream.DirectionSrc)
	ghost.SetTarget(internalSrc)

	obj := NewObject(id, KindSource)
	edge := NewEdgePad(obj, ghost)
	edge.SetReversePlaying(reversePlaying)
	obj.Pad = edge

	return &Source{Object: obj, element: element, ghost: ghost, Edge: edge}
}

// Element returns the wrapped producer element.
func (s *Source) Element() stream.Element { return s.element }

// SimpleElement returns the concrete wrapped element, for tests that need
// to force a failure state or inspect pads directly.
func (s *Source) SimpleElement() *stream.SimpleElement { return s.element }

// GhostPad returns the source's externally visible edge pad.
func (s *Source) GhostPad() *stream.Pad { return s.ghost }

// Underlying returns the embedded Object, satisfying the StackBuilder's
// Node interface.
func (s *Source) Underlying() *Object { return s.Object }

// SinkRequirement reports that a source consumes no children.
func (s *Source) SinkRequirement() (numSinks int, dynamic bool) { return 0, false }
