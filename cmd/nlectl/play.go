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

package main

import (
	"context"
	"fmt"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/nlecomposer/nle/internal/composition"
	"github.com/nlecomposer/nle/internal/metrics"
	"github.com/nlecomposer/nle/internal/nleconfig"
	"github.com/nlecomposer/nle/internal/stream"
)

// playContext holds the play subcommand's flags.
type playContext struct {
	TimelineFile string
	Step         time.Duration
	WallPerStep  time.Duration
	Debug        bool
}

// registerPlay registers the play subcommand and its flags with the
// application.
func registerPlay(app *kingpin.Application) (*kingpin.CmdClause, *playContext) {
	var ctx playContext

	play := app.Command("play", "Load a timeline and drive it with a synthetic clock, printing the element-bus trace.")
	play.Arg("file", "Path to a timeline YAML document.").Required().StringVar(&ctx.TimelineFile)
	play.Flag("step", "Synthetic clock increment per seek.").Default("500ms").DurationVar(&ctx.Step)
	play.Flag("wall-per-step", "Wall-clock delay between synthetic clock steps.").Default("10ms").DurationVar(&ctx.WallPerStep)
	play.Flag("debug", "Enable debug logging.").BoolVar(&ctx.Debug)

	return play, &ctx
}

// doPlay loads the timeline, builds a Composition, initializes it, then
// walks a synthetic clock from the composition's real start to its real
// stop issuing a seek per step, printing every bus message along the way
// (spec §4.1's Initialize/Seek action functions, §6's bus contract).
func doPlay(ctx *playContext, log logrus.FieldLogger) error {
	doc, err := nleconfig.Load(ctx.TimelineFile)
	if err != nil {
		return err
	}

	m := metrics.NewMetrics(prometheus.NewRegistry())
	c := composition.New(doc.ID, m, log)

	if err := nleconfig.Build(doc, c); err != nil {
		return err
	}

	msgs := c.Bus().Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for msg := range msgs {
			printBusMessage(log, msg)
			if msg.Kind == composition.MsgError {
				return
			}
		}
	}()

	c.Start()
	defer func() {
		if stopErr := c.Stop(context.Background()); stopErr != nil {
			log.WithError(stopErr).Warn("stop returned an error")
		}
	}()

	c.Initialize()

	var seqnum uint32
	for t := c.RealStart(); t < c.RealStop(); t += ctx.Step {
		seqnum++
		c.Seek(stream.Seek{
			Seqnum:    seqnum,
			Rate:      1,
			StartType: stream.SeekTypeSet,
			Start:     t,
			Flags:     stream.SeekFlagFlush | stream.SeekFlagAccurate,
		})
		time.Sleep(ctx.WallPerStep)
	}

	return nil
}

func printBusMessage(log logrus.FieldLogger, msg composition.BusMessage) {
	entry := log.WithField("kind", fmt.Sprintf("%v", msg.Kind))
	if msg.Err != nil {
		entry.WithField("error-kind", msg.Err.Kind).Error(msg.Err.Message)
		return
	}
	entry.WithField("reason", fmt.Sprintf("%v", msg.Reason)).Info("bus message")
}
