package models

import (
	"fmt"
	"time"
)

// CandidateURL is an image reference found on a page.
// Resolved is always absolute and unique within one extraction run.
type CandidateURL struct {
	Raw      string // Text as it appeared in the page
	Resolved string // Absolute URL after decoding and resolution
	Pattern  string // Selector or matcher that found it
}

// Outcome is the per-candidate download result.
type Outcome int

const (
	Success Outcome = iota
	SkippedNotImage
	SkippedDuplicate
	NetworkError
	WriteError
)

var outcomeNames = [...]string{
	Success:          "success",
	SkippedNotImage:  "skipped-not-image",
	SkippedDuplicate: "skipped-duplicate",
	NetworkError:     "network-error",
	WriteError:       "write-error",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// Failed reports whether the outcome counts as a failure in the summary.
func (o Outcome) Failed() bool {
	return o == NetworkError || o == WriteError
}

// Outcomes lists every outcome in display order.
func Outcomes() []Outcome {
	return []Outcome{Success, SkippedNotImage, SkippedDuplicate, NetworkError, WriteError}
}

// DownloadResult records what happened to one candidate.
type DownloadResult struct {
	URL       string
	Path      string // Set on Success and SkippedDuplicate
	Size      int64
	Extension string
	SHA256    string // hex digest of the saved bytes
	Outcome   Outcome
	Err       error
}

// StopReason explains why a session stopped.
type StopReason string

const (
	StopTargetReached       StopReason = "target-reached"
	StopCandidatesExhausted StopReason = "candidates-exhausted"
	StopNoCandidates        StopReason = "no-candidates"
	StopFetchFailed         StopReason = "fetch-failed"
	StopCancelled           StopReason = "cancelled"
)

// GallerySession is one run over one page URL.
type GallerySession struct {
	ID         string
	SourceURL  string
	Site       string
	Mode       Mode
	Selector   string
	Requested  int
	Candidates int
	Results    []DownloadResult

	Attempted int
	Succeeded int
	Failed    int

	FatalFetch bool
	FetchErr   error
	StopReason StopReason

	Started time.Time
	Elapsed time.Duration
}

// Tally recomputes the counters from Results.
// Attempted counts every candidate that was considered.
func (s *GallerySession) Tally() {
	s.Attempted = len(s.Results)
	s.Succeeded = 0
	s.Failed = 0
	for _, r := range s.Results {
		if r.Outcome == Success {
			s.Succeeded++
		}
		if r.Outcome.Failed() {
			s.Failed++
		}
	}
}

// Summary returns the per-outcome breakdown.
func (s *GallerySession) Summary() map[Outcome]int {
	counts := make(map[Outcome]int, len(outcomeNames))
	for _, o := range Outcomes() {
		counts[o] = 0
	}
	for _, r := range s.Results {
		counts[r.Outcome]++
	}
	return counts
}

// Fulfilled counts files that exist for this session's ordinals, whether
// written now or already present from an earlier run.
func (s *GallerySession) Fulfilled() int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == Success || (r.Outcome == SkippedDuplicate && r.Path != "") {
			n++
		}
	}
	return n
}

// SeenSet is a per-session set of already handled URLs.
type SeenSet struct {
	m map[string]struct{}
}

func NewSeenSet() *SeenSet {
	return &SeenSet{m: make(map[string]struct{})}
}

// Add inserts s and reports whether it was new.
func (ss *SeenSet) Add(s string) bool {
	if _, ok := ss.m[s]; ok {
		return false
	}
	ss.m[s] = struct{}{}
	return true
}

func (ss *SeenSet) Has(s string) bool {
	_, ok := ss.m[s]
	return ok
}

func (ss *SeenSet) Len() int {
	return len(ss.m)
}
