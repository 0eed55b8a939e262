package analysis

import (
	"time"

	"github.com/google/uuid"
)

// AIAnalysis maps to the ai_analyses table. The result text is opaque to
// the server; it stores and returns whatever the provider produced.
type AIAnalysis struct {
	ID           uuid.UUID `db:"id" json:"id"`
	PatientID    uuid.UUID `db:"patient_id" json:"patient_id"`
	RequestedBy  uuid.UUID `db:"requested_by" json:"requested_by"`
	Provider     string    `db:"provider" json:"provider"`
	Model        string    `db:"model" json:"model"`
	Prompt       string    `db:"prompt" json:"-"`
	Result       string    `db:"result" json:"result"`
	InputTokens  int       `db:"input_tokens" json:"input_tokens"`
	OutputTokens int       `db:"output_tokens" json:"output_tokens"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// TrendDirection summarizes how a vital moved across recent entries.
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendStable  TrendDirection = "stable"
)

// VitalTrend is the mean and direction of one vital over the sampled
// window, oldest to newest.
type VitalTrend struct {
	Vital     string         `json:"vital"`
	Mean      float64        `json:"mean"`
	Direction TrendDirection `json:"direction"`
	Samples   int            `json:"samples"`
}
