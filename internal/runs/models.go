package runs

import "time"

// Kind distinguishes training runs from evaluation runs.
type Kind string

const (
	KindTrain Kind = "train"
	KindEval  Kind = "eval"
)

// Status is the lifecycle of a recorded run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Run is one row of history: a single training or evaluation invocation.
type Run struct {
	ID            string
	Kind          Kind
	Method        string
	ModelSize     string
	Status        Status
	Steps         int
	MetricName    string
	MetricValue   float64
	HasMetric     bool
	CheckpointDir string
	Error         string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}
