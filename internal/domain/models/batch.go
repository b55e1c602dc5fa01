package models

import "time"

// FailureReason categorises why a symbol produced no forecast.
type FailureReason string

const (
	ReasonInsufficientData   FailureReason = "insufficient_data"
	ReasonTrainingFailure    FailureReason = "training_failure"
	ReasonPersistenceFailure FailureReason = "persistence_failure"
	ReasonLoadFailure        FailureReason = "load_failure"
)

// BatchRequest selects the symbol universe for one run. Symbols wins over TopN; a zero TopN
// uses the configured cutoff and a negative one takes every eligible symbol.
type BatchRequest struct {
	Symbols []string `json:"symbols"`
	TopN    int      `json:"top_n"`
}

// SymbolOutcome is reported once per processed symbol.
type SymbolOutcome struct {
	Index    int           `json:"index"`
	Total    int           `json:"total"`
	Symbol   string        `json:"symbol"`
	OK       bool          `json:"ok"`
	Reason   FailureReason `json:"reason,omitempty"`
	Err      error         `json:"-"`
	Forecast *Forecast     `json:"forecast,omitempty"`
	Elapsed  time.Duration `json:"elapsed"`
}

// BatchSummary aggregates a batch run.
type BatchSummary struct {
	RunID       string                `json:"run_id"`
	StartedAt   time.Time             `json:"started_at"`
	Elapsed     time.Duration         `json:"elapsed"`
	Total       int                   `json:"total"`
	Succeeded   int                   `json:"succeeded"`
	Failed      int                   `json:"failed"`
	Failures    map[FailureReason]int `json:"failures"`
	Signals     map[Signal]int        `json:"signals"`
	Interrupted bool                  `json:"interrupted"`
}

// NewBatchSummary returns a summary with every signal bucket present.
func NewBatchSummary(runID string, startedAt time.Time) BatchSummary {
	s := BatchSummary{
		RunID:     runID,
		StartedAt: startedAt,
		Failures:  make(map[FailureReason]int),
		Signals:   make(map[Signal]int, len(Signals)),
	}
	for _, sig := range Signals {
		s.Signals[sig] = 0
	}
	return s
}

// Record folds one outcome into the summary.
func (s *BatchSummary) Record(o SymbolOutcome) {
	if o.OK && o.Forecast != nil {
		s.Succeeded++
		s.Signals[o.Forecast.Signal]++
		return
	}
	s.Failed++
	s.Failures[o.Reason]++
}

// AvgPerSuccess is the mean wall time per successful symbol.
func (s BatchSummary) AvgPerSuccess() time.Duration {
	n := s.Succeeded
	if n < 1 {
		n = 1
	}
	return s.Elapsed / time.Duration(n)
}
