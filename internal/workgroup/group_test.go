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

package workgroup_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nlecomposer/nle/internal/workgroup"
)

func TestGroupRunReturnsFirstError(t *testing.T) {
	var g workgroup.Group

	g.Add("controller", func(stop <-chan struct{}) error {
		<-time.After(10 * time.Millisecond)
		return errors.New("controller stopped")
	})
	g.Add("probe", func(stop <-chan struct{}) error {
		<-stop
		return nil
	})

	err := g.Run()
	assert.EqualError(t, err, "controller stopped")
}

func TestGroupAddContextIsSelf(t *testing.T) {
	var g workgroup.Group
	selfSeen := make(chan bool, 1)

	g.AddContext("controller", func(ctx context.Context) {
		selfSeen <- workgroup.IsSelf(ctx, "controller")
		<-ctx.Done()
	})

	go g.Run()

	assert.True(t, <-selfSeen)
}
