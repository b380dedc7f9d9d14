package models

import "time"

// LearningRecord is the persisted outcome of a manual learning run
// (<root>/manual_learning_<timestamp>.json).
type LearningRecord struct {
	Success         bool              `json:"success"`
	DecisionID      string            `json:"decision_id"`
	DecisionLogPath string            `json:"decision_log_path"`
	InputPnL        float64           `json:"input_pnl"`
	UserNotes       string            `json:"user_notes"`
	Reflections     map[string]string `json:"reflections"`
	Timestamp       string            `json:"timestamp"`
	Error           string            `json:"error,omitempty"`

	File string `json:"-"`
}

// MemoryRecord is one stored lesson for a role.
type MemoryRecord struct {
	ID             string
	Role           string
	DecisionID     string
	SourceID       string
	Situation      string
	Recommendation string
	Embedding      []float64
	CreatedAt      time.Time
}
