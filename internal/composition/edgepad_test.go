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

	"github.com/nlecomposer/nle/internal/stream"
)

func seekAt(t time.Duration) stream.Seek {
	return stream.Seek{StartType: stream.SeekTypeSet, Start: t}
}

// Round-trip laws from spec §8: for any object with a defined in_point,
// external_to_internal(internal_to_external(x)) == x for x in
// [in_point, in_point+duration), and internal_to_external(
// external_to_internal(y)) == y for y in [start, stop).
func TestEdgePadRoundTripLaws(t *testing.T) {
	src := NewSource("A", false)
	src.SetPendingStart(10 * time.Second)
	require.NoError(t, src.SetPendingDuration(5*time.Second))
	src.SetPendingInPoint(2*time.Second, true)
	src.commit()

	for offset := time.Duration(0); offset < 5*time.Second; offset += 500 * time.Millisecond {
		x := 2*time.Second + offset
		ext, ok := src.Edge.internalToExternal(x)
		require.True(t, ok)
		back, ok := src.Edge.externalToInternal(ext)
		require.True(t, ok)
		assert.Equal(t, x, back)
	}

	for offset := time.Duration(0); offset < 5*time.Second; offset += 500 * time.Millisecond {
		y := 10*time.Second + offset
		internal, ok := src.Edge.externalToInternal(y)
		require.True(t, ok)
		ext, ok := src.Edge.internalToExternal(internal)
		require.True(t, ok)
		assert.Equal(t, y, ext)
	}
}

func TestEdgePadOutgoingSeekClampsBelowInPoint(t *testing.T) {
	src := NewSource("A", false)
	src.SetPendingStart(10 * time.Second)
	require.NoError(t, src.SetPendingDuration(5*time.Second))
	src.SetPendingInPoint(2*time.Second, true)
	src.commit()

	out := src.Edge.TranslateOutgoingSeek(seekAt(1 * time.Second))
	assert.True(t, out.Clamped)
	assert.Equal(t, 10*time.Second, out.Start)
}

func TestEdgePadIncomingSeekClampsToObjectWindow(t *testing.T) {
	src := NewSource("A", false)
	src.SetPendingStart(10 * time.Second)
	require.NoError(t, src.SetPendingDuration(5*time.Second))
	src.SetPendingInPoint(2*time.Second, true)
	src.commit()

	in := src.Edge.TranslateIncomingSeek(seekAt(9 * time.Second))
	assert.Equal(t, 2*time.Second, in.Start)

	in = src.Edge.TranslateIncomingSeek(seekAt(12 * time.Second))
	assert.Equal(t, 4*time.Second, in.Start)
}

// Reverse-playback rate inversion from spec §4.3/§9: a negative incoming
// rate is inverted only when the object itself is a reverse-playing
// source; otherwise the sign passes through unchanged.
func TestEdgePadIncomingSeekRateInversion(t *testing.T) {
	cases := []struct {
		name           string
		reversePlaying bool
		inRate         float64
		wantRate       float64
	}{
		{"forward source, negative rate passes through", false, -1, -1},
		{"reverse source, negative rate inverts to positive", true, -1, 1},
		{"reverse source, positive rate passes through", true, 1, 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := NewSource("A", tc.reversePlaying)
			src.SetPendingStart(10 * time.Second)
			require.NoError(t, src.SetPendingDuration(5*time.Second))
			src.commit()

			seek := seekAt(12 * time.Second)
			seek.Rate = tc.inRate
			in := src.Edge.TranslateIncomingSeek(seek)
			assert.Equal(t, tc.wantRate, in.Rate)
		})
	}
}

func TestEdgePadIncomingSegmentFallsBackToZero(t *testing.T) {
	src := NewSource("A", false)
	src.SetPendingStart(10 * time.Second)
	require.NoError(t, src.SetPendingDuration(5*time.Second))
	src.commit() // no in-point defined

	got := src.Edge.TranslateIncomingSegmentTime(1 * time.Second)
	assert.Equal(t, time.Duration(0), got)
}
