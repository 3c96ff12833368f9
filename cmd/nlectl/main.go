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

// Command nlectl is a small operator CLI for the composition engine: it
// can validate a timeline document without running it, or play one
// against a synthetic clock and print the element-bus trace.
package main

import (
	"os"

	"github.com/alecthomas/kingpin/v2"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.StandardLogger()

	app := kingpin.New("nlectl", "Composition engine operator CLI.")
	app.HelpFlag.Short('h')

	play, playCtx := registerPlay(app)
	validate, validateCtx := registerValidate(app)

	switch kingpin.MustParse(app.Parse(os.Args[1:])) {
	case play.FullCommand():
		if playCtx.Debug {
			log.SetLevel(logrus.DebugLevel)
		}
		if err := doPlay(playCtx, log); err != nil {
			log.WithError(err).Fatal("play failed")
		}
	case validate.FullCommand():
		if err := doValidate(validateCtx, log); err != nil {
			log.WithError(err).Fatal("validate failed")
		}
	}
}
