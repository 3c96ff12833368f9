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

package nleconfig

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlecomposer/nle/internal/composition"
)

const sampleTimeline = `
id: demo
dropTags: false
objects:
  - id: A
    kind: source
    start: 0s
    duration: 2s
  - id: B
    kind: source
    start: 2s
    duration: 2s
    priority: 1
  - id: gap-filler
    kind: source
    start: 0s
    duration: 0s
    expandable: true
  - id: mix
    kind: operation
    start: 0s
    duration: 4s
    numSinks: 2
    children: [A, B]
`

func TestParseSampleTimeline(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleTimeline))
	require.NoError(t, err)
	assert.Equal(t, "demo", doc.ID)
	require.NotNil(t, doc.DropTags)
	assert.False(t, *doc.DropTags)
	require.Len(t, doc.Objects, 4)
	assert.Equal(t, 2*time.Second, time.Duration(doc.Objects[0].Duration))
}

func TestParseRejectsUnknownChild(t *testing.T) {
	const bad = `
objects:
  - id: mix
    kind: operation
    start: 0s
    duration: 1s
    children: [missing]
`
	_, err := Parse(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestParseRejectsDuplicateID(t *testing.T) {
	const bad = `
objects:
  - id: A
    kind: source
    start: 0s
    duration: 1s
  - id: A
    kind: source
    start: 1s
    duration: 1s
`
	_, err := Parse(strings.NewReader(bad))
	assert.Error(t, err)
}

func TestBuildAppliesDocumentProperties(t *testing.T) {
	doc, err := Parse(strings.NewReader(sampleTimeline))
	require.NoError(t, err)

	c := composition.New("", nil, nil)
	require.NoError(t, Build(doc, c))

	assert.Equal(t, "demo", c.ID())
	assert.False(t, c.DropTags())
}
