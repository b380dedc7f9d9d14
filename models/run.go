package models

import "time"

// RunRecord is the ledger row of one deliberation run.
type RunRecord struct {
	ID         string     `json:"id"`
	Symbol     string     `json:"symbol"`
	TradeDate  string     `json:"trade_date"`
	AssetClass AssetClass `json:"asset_class"`
	Status     string     `json:"status"`
	DecisionID string     `json:"decision_id,omitempty"`
	Action     Action     `json:"action,omitempty"`
	LogPath    string     `json:"log_path,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// StageRecord is the output of one graph node within a run.
type StageRecord struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Stage     string    `json:"stage"`
	Content   string    `json:"content"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
