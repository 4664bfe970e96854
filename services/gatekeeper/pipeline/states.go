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

// State names one stage of a pipeline run. A run moves strictly forward
// through the happy path; the refusal and failure states are terminal.
type State string

const (
	StateReceived        State = "RECEIVED"
	StateGuardedInput    State = "GUARDED_INPUT"
	StateCacheCheck      State = "CACHE_CHECK"
	StateRetrieving      State = "RETRIEVING"
	StateGroundingCheck  State = "GROUNDING_CHECK"
	StateStreamingAnswer State = "STREAMING_ANSWER"
	StateAnnotating      State = "ANNOTATING"
	StateGuardedOutput   State = "GUARDED_OUTPUT"
	StateCachedAndLogged State = "CACHED_AND_LOGGED"

	StateRefusedInjection  State = "REFUSED_INJECTION"
	StateRefusedUngrounded State = "REFUSED_UNGROUNDED"
	StateNoCorpus          State = "NO_CORPUS"
	StateCancelled         State = "CANCELLED"
	StateFailed            State = "FAILED"
)

// outcomeLabel maps a terminal state to its metrics label.
func outcomeLabel(s State) string {
	switch s {
	case StateCachedAndLogged:
		return "success"
	case StateRefusedInjection:
		return "refused_injection"
	case StateRefusedUngrounded:
		return "refused_ungrounded"
	case StateNoCorpus:
		return "no_corpus"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
