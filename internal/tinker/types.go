package tinker

import "time"

// Run statuses reported by the backend.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunRequest describes a new fine-tuning run.
type RunRequest struct {
	Model        string
	DatasetPath  string
	TrainingType string
	Epochs       int
	LearningRate float64
	BatchSize    int
}

// Run is a training run as the backend reports it. Optional fields are nil
// when the backend omits them.
type Run struct {
	ID           string       `json:"id"`
	Name         *string      `json:"name,omitempty"`
	Status       string       `json:"status"`
	Model        string       `json:"model,omitempty"`
	TrainingType string       `json:"training_type,omitempty"`
	CreatedAt    *time.Time   `json:"created_at,omitempty"`
	UpdatedAt    *time.Time   `json:"updated_at,omitempty"`
	Progress     *RunProgress `json:"progress,omitempty"`
	Error        *string      `json:"error,omitempty"`
	ModelID      *string      `json:"model_id,omitempty"`
}

// RunProgress carries step counters for an active or finished run.
type RunProgress struct {
	CurrentStep  *int     `json:"current_step,omitempty"`
	TotalSteps   *int     `json:"total_steps,omitempty"`
	CurrentEpoch *int     `json:"current_epoch,omitempty"`
	TotalEpochs  *int     `json:"total_epochs,omitempty"`
	Loss         *float64 `json:"loss,omitempty"`
	ETASeconds   *int64   `json:"eta_seconds,omitempty"`
}

// Model is a base model offered for fine-tuning.
type Model struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Parameters             string   `json:"parameters"`
	SupportedTrainingTypes []string `json:"supported_training_types"`
	MaxLoraRank            int      `json:"max_lora_rank"`
	PricePerMillionTokens  float64  `json:"price_per_million_tokens"`
}

// Checkpoint is a saved snapshot of a run.
type Checkpoint struct {
	ID        string             `json:"id"`
	RunID     string             `json:"run_id"`
	Step      int                `json:"step"`
	Path      string             `json:"path"`
	SizeBytes int64              `json:"size_bytes"`
	CreatedAt *time.Time         `json:"created_at,omitempty"`
	Metrics   *CheckpointMetrics `json:"metrics,omitempty"`
}

// CheckpointMetrics are evaluation numbers recorded with a checkpoint.
type CheckpointMetrics struct {
	Loss     *float64 `json:"loss,omitempty"`
	EvalLoss *float64 `json:"eval_loss,omitempty"`
	Accuracy *float64 `json:"accuracy,omitempty"`
}

type createRunBody struct {
	Model           string          `json:"model"`
	TrainingType    string          `json:"training_type"`
	DatasetPath     string          `json:"dataset_path"`
	Hyperparameters hyperparameters `json:"hyperparameters"`
}

type hyperparameters struct {
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
	NumEpochs    int     `json:"num_epochs"`
}

type listRunsBody struct {
	Runs    []Run `json:"runs"`
	Total   int   `json:"total"`
	Page    int   `json:"page"`
	PerPage int   `json:"per_page"`
}

type listCheckpointsBody struct {
	Checkpoints []Checkpoint `json:"checkpoints"`
	Total       int          `json:"total"`
	Page        int          `json:"page"`
	PerPage     int          `json:"per_page"`
}

type errorBody struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}
