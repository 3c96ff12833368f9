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

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveStackRebuiltIncrementsCounterAndGauge(t *testing.T) {
	r := prometheus.NewRegistry()
	m := NewMetrics(r)

	m.ObserveStackRebuilt()
	m.ObserveStackRebuilt()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.stackRebuildsTotal))
	assert.Greater(t, testutil.ToFloat64(m.lastStackRebuildGauge), float64(0))
}

func TestObserveStreamErrorLabelsByKind(t *testing.T) {
	r := prometheus.NewRegistry()
	m := NewMetrics(r)

	m.ObserveStreamError("TimelineGap")
	m.ObserveStreamError("TimelineGap")
	m.ObserveStreamError("InvalidStructure")

	assert.Equal(t, float64(2), testutil.ToFloat64(m.streamErrorsTotal.WithLabelValues("TimelineGap")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.streamErrorsTotal.WithLabelValues("InvalidStructure")))
}

func TestSetControllerPausedTogglesGauge(t *testing.T) {
	r := prometheus.NewRegistry()
	m := NewMetrics(r)

	m.SetControllerPaused(true)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.controllerPausedGauge))

	m.SetControllerPaused(false)
	assert.Equal(t, float64(0), testutil.ToFloat64(m.controllerPausedGauge))
}
