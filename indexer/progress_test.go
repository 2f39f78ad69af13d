// Copyright 2025 Poiesic Systems
//
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

package indexer

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgressTracker_Record(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 4, 2)

	tracker.Start()
	tracker.Record(OutcomeSuccess)
	assert.Empty(t, buf.String(), "should not report before the interval")

	tracker.Record(OutcomeSkipped)
	assert.Contains(t, buf.String(), "2/4")
	assert.Contains(t, buf.String(), "50.0%")

	tracker.Record(OutcomeError)
	assert.Equal(t, 1, tracker.Count(OutcomeSuccess))
	assert.Equal(t, 1, tracker.Count(OutcomeSkipped))
	assert.Equal(t, 1, tracker.Count(OutcomeError))
}

func TestProgressTracker_FinishReportsWhereItStopped(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 100)

	tracker.Start()
	tracker.Record(OutcomeSuccess)
	tracker.Record(OutcomeSuccess)
	tracker.Finish()

	output := buf.String()
	assert.Contains(t, output, "2/10")
	assert.Contains(t, output, "embedded=2")
	assert.Contains(t, output, "\n")
}

func TestProgressTracker_NotStarted(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 10, 1)

	tracker.Record(OutcomeSuccess)
	tracker.Finish()

	assert.Empty(t, buf.String())
	assert.Zero(t, tracker.Elapsed())
}

func TestProgressTracker_CapsAtTotal(t *testing.T) {
	var buf bytes.Buffer
	tracker := NewProgressTracker(&buf, 1, 1)

	tracker.Start()
	tracker.Record(OutcomeSuccess)
	tracker.Record(OutcomeSuccess)
	tracker.Finish()

	assert.NotContains(t, buf.String(), "2/1")
}

func TestProgressTracker_NilWriter(t *testing.T) {
	tracker := NewProgressTracker(nil, 1, 1)
	tracker.Start()
	tracker.Record(OutcomeSuccess)
	tracker.Finish()
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "skipped", OutcomeSkipped.String())
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "error", OutcomeError.String())
	assert.Equal(t, "Outcome(9)", Outcome(9).String())
}
