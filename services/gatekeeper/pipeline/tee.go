// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"
	"sync"
	"time"
)

// FragmentSink receives answer fragments as they arrive. A nil sink selects
// buffered mode. Returning an error tells the pipeline the consumer is gone;
// the stream stops and the buffered prefix becomes the partial answer.
type FragmentSink func(fragment string) error

// answerAccumulator tees generation output: every fragment is buffered for
// attribution and output redaction, and forwarded to the caller's sink in
// the same call. On a sink failure the buffer may lead the consumer by the
// one fragment whose delivery failed.
type answerAccumulator struct {
	mu        sync.Mutex
	buf       strings.Builder
	sink      FragmentSink
	sinkErr   error
	fragments int
	firstAt   time.Time
}

func newAnswerAccumulator(sink FragmentSink) *answerAccumulator {
	return &answerAccumulator{sink: sink}
}

// Write buffers the fragment and forwards it. After a sink failure every
// subsequent call returns the original error without buffering more.
func (a *answerAccumulator) Write(fragment string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sinkErr != nil {
		return a.sinkErr
	}
	if a.fragments == 0 {
		a.firstAt = time.Now()
	}
	a.buf.WriteString(fragment)
	a.fragments++
	if a.sink != nil {
		if err := a.sink(fragment); err != nil {
			a.sinkErr = err
			return err
		}
	}
	return nil
}

// String returns the accumulated answer so far.
func (a *answerAccumulator) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.String()
}

// SinkFailed reports whether the consumer went away mid-stream.
func (a *answerAccumulator) SinkFailed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sinkErr != nil
}

// FirstFragmentAt returns the arrival time of the first fragment.
func (a *answerAccumulator) FirstFragmentAt() (time.Time, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.firstAt, a.fragments > 0
}
