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

// Package nleconfig loads a composition's initial object set from a YAML
// timeline document, the on-disk counterpart to the in-memory Object
// graph described in spec §3 and §6.
package nleconfig

import (
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nlecomposer/nle/internal/composition"
)

// ObjectSpec describes one member object of a timeline (spec §3: the
// five timed properties every object carries, plus the operation-only
// sink-count fields and children list).
type ObjectSpec struct {
	ID         string   `yaml:"id"`
	Kind       string   `yaml:"kind"` // "source" or "operation"
	Start      Duration `yaml:"start"`
	Duration   Duration `yaml:"duration"`
	InPoint    *Duration `yaml:"inPoint,omitempty"`
	Priority   uint32   `yaml:"priority,omitempty"`
	Active     *bool    `yaml:"active,omitempty"`
	Caps       string   `yaml:"caps,omitempty"`
	Expandable bool     `yaml:"expandable,omitempty"`

	// Reverse marks the object's edge pad as reverse-playing (spec §9).
	Reverse bool `yaml:"reverse,omitempty"`

	// NumSinks and DynamicSinks apply only to kind: operation
	// (spec §3: "numSinks... may be static or request-pad style").
	NumSinks     int  `yaml:"numSinks,omitempty"`
	DynamicSinks bool `yaml:"dynamicSinks,omitempty"`

	// Children names the member objects an operation mixes. Validate
	// checks that each name exists; Build does not wire them, since the
	// stack tree is derived from priority and time at reconcile.
	Children []string `yaml:"children,omitempty"`
}

// Document is the top-level shape of a timeline file: the
// composition-level properties (spec §6) plus its flat object list.
type Document struct {
	ID       string       `yaml:"id,omitempty"`
	DropTags *bool        `yaml:"dropTags,omitempty"`
	Objects  []ObjectSpec `yaml:"objects"`
}

// Duration lets timeline documents write "1.5s", "500ms", etc. instead of
// raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("nleconfig: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Validate checks the document's structural invariants ahead of Build:
// unique, non-empty object ids, a known kind per object, and children
// that refer to objects actually present in the document (spec §4.2's
// fold assumes every child name resolves).
func (doc *Document) Validate() error {
	seen := make(map[string]bool, len(doc.Objects))
	for _, o := range doc.Objects {
		if o.ID == "" {
			return fmt.Errorf("nleconfig: object with empty id")
		}
		if seen[o.ID] {
			return fmt.Errorf("nleconfig: duplicate object id %q", o.ID)
		}
		seen[o.ID] = true
		switch o.Kind {
		case "source", "operation":
		default:
			return fmt.Errorf("nleconfig: object %q has unknown kind %q", o.ID, o.Kind)
		}
		if o.Duration < 0 {
			return fmt.Errorf("nleconfig: object %q has negative duration", o.ID)
		}
	}
	for _, o := range doc.Objects {
		if o.Kind != "operation" {
			continue
		}
		for _, child := range o.Children {
			if !seen[child] {
				return fmt.Errorf("nleconfig: operation %q references unknown child %q", o.ID, child)
			}
		}
	}
	return nil
}

// Parse reads a timeline document from in. Unset fields default to the
// zero-value Object defaults documented on composition.NewObject.
func Parse(in io.Reader) (*Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(in)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("nleconfig: parse: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Load reads and parses a timeline document from path.
func Load(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("nleconfig: open %s: %w", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Build materializes the document as a running Composition: it
// constructs every Source/Operation, applies its pending properties, and
// stages it for insertion via Composition.Add. The caller is still
// responsible for Start/Initialize (spec §4.1's lifecycle is an explicit,
// driven state machine, not implicit in construction).
func Build(doc *Document, m *composition.Composition) error {
	nodes := make(map[string]composition.Node, len(doc.Objects))

	for _, spec := range doc.Objects {
		var node composition.Node
		switch spec.Kind {
		case "source":
			node = composition.NewSource(spec.ID, spec.Reverse)
		case "operation":
			node = composition.NewOperation(spec.ID, spec.NumSinks, spec.DynamicSinks)
		}
		nodes[spec.ID] = node
	}

	for _, spec := range doc.Objects {
		node := nodes[spec.ID]
		obj := node.Underlying()

		obj.SetPendingStart(time.Duration(spec.Start))
		if err := obj.SetPendingDuration(time.Duration(spec.Duration)); err != nil {
			return fmt.Errorf("nleconfig: object %q: %w", spec.ID, err)
		}
		if spec.InPoint != nil {
			obj.SetPendingInPoint(time.Duration(*spec.InPoint), true)
		}
		if spec.Active != nil {
			obj.SetPendingActive(*spec.Active)
		}
		if spec.Caps != "" {
			obj.SetPendingCaps(spec.Caps)
		}
		priority := spec.Priority
		if spec.Expandable {
			priority = composition.PriorityMax
		}
		obj.SetPendingPriority(priority)

		// Expandable classification happens at reconcile time off the
		// object's *live* priority (spec §3), so an expandable default
		// source must be committed before it is added to the composition.
		obj.Commit()
	}

	if doc.ID != "" {
		m.SetID(doc.ID)
	}
	if doc.DropTags != nil {
		m.SetDropTags(*doc.DropTags)
	}

	for _, spec := range doc.Objects {
		m.Add(nodes[spec.ID])
	}

	return nil
}
