// Package progress defines the event feed emitted by the harvest pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart      Stage = "RUN_START"
	StageDiscoveryDone Stage = "DISCOVERY_DONE"
	StageSearchDone    Stage = "SEARCH_DONE"
	StageFetchStart    Stage = "FETCH_START"
	StageFetchOK       Stage = "FETCH_OK"
	StageFetchFail     Stage = "FETCH_FAIL"
	StageLead          Stage = "LEAD"
	StageRunDone       Stage = "RUN_DONE"
)

// Event captures one milestone of a harvest run.
type Event struct {
	// RunID identifies the pipeline run this event belongs to.
	RunID uuid.UUID
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage names the milestone.
	Stage Stage
	// URL is the reference involved, when the stage is per-reference.
	URL string
	// Count carries the reference count for DISCOVERY_DONE and SEARCH_DONE.
	Count int
	// Credits carries metered spend for SEARCH_DONE.
	Credits int
	// Note attaches low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == uuid.Nil {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageDiscoveryDone, StageSearchDone, StageRunDone, StageLead:
	case StageFetchStart, StageFetchOK, StageFetchFail:
		if e.URL == "" {
			return fmt.Errorf("%s requires a url", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	return nil
}

// Counters is a snapshot of the run's observable progress, answering the
// metrics feed contract (discovered, fetched-ok, fetched-failed, credits).
type Counters struct {
	Discovered    int64 `json:"discovered"`
	Searched      int64 `json:"searched"`
	FetchedOK     int64 `json:"fetched_ok"`
	FetchedFailed int64 `json:"fetched_failed"`
	CreditsUsed   int64 `json:"credits_used"`
	Leads         int64 `json:"leads"`
}

func (c *Counters) apply(evt Event) {
	switch evt.Stage {
	case StageDiscoveryDone:
		c.Discovered += int64(evt.Count)
	case StageSearchDone:
		c.Searched += int64(evt.Count)
		c.CreditsUsed += int64(evt.Credits)
	case StageFetchOK:
		c.FetchedOK++
	case StageFetchFail:
		c.FetchedFailed++
	case StageLead:
		c.Leads++
	}
}
