package lifecycle

import "fmt"

// State is a lifecycle position of one episode within the current run.
type State string

const (
	StateUnprocessed  State = "unprocessed"
	StateDownloading  State = "downloading"
	StateTranscribing State = "transcribing"
	StateSummarizing  State = "summarizing"
	StatePublished    State = "published"
	StateFailed       State = "failed"
)

// Reason explains why an episode ended in StateFailed.
type Reason string

const (
	ReasonDownloadExhausted   Reason = "download_exhausted"
	ReasonDownloadRejected    Reason = "download_rejected"
	ReasonTranscriptionFailed Reason = "transcription_failed"
	ReasonSummarizationFailed Reason = "summarization_failed"
	ReasonPublicationFailed   Reason = "publication_failed"
	ReasonPublishedUnrecorded Reason = "published_unrecorded"
	ReasonInvalidRecord       Reason = "invalid_record"
	ReasonUnexpected          Reason = "unexpected_error"
)

var transitions = map[State][]State{
	StateUnprocessed:  {StateDownloading, StateFailed},
	StateDownloading:  {StateTranscribing, StateFailed},
	StateTranscribing: {StateSummarizing, StateFailed},
	StateSummarizing:  {StatePublished, StateFailed},
}

// Terminal reports whether no further transition is possible in this run.
func (s State) Terminal() bool {
	return s == StatePublished || s == StateFailed
}

// CanTransition reports whether the machine may move from s to next.
func (s State) CanTransition(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// machine tracks the current state and rejects illegal moves.
type machine struct {
	state State
}

func (m *machine) advance(next State) error {
	if !m.state.CanTransition(next) {
		return fmt.Errorf("illegal lifecycle transition %s -> %s", m.state, next)
	}
	m.state = next
	return nil
}
