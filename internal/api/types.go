package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/chatmle/tinker-api/internal/tinker"
)

// Training methods accepted by POST /train.
const (
	TrainingTypeLoRA  = "lora"
	TrainingTypeQLoRA = "qlora"
	TrainingTypeFull  = "full"
)

const (
	defaultTrainingType = TrainingTypeLoRA
	defaultEpochs       = 3
	defaultLearningRate = 2e-5
	defaultBatchSize    = 4
	defaultListLimit    = 20
)

// TrainRequest is a validated POST /train body.
type TrainRequest struct {
	Model        string  `json:"model"`
	DatasetURL   string  `json:"dataset_url"`
	TrainingType string  `json:"training_type"`
	Epochs       int     `json:"epochs"`
	LearningRate float64 `json:"learning_rate"`
	BatchSize    int     `json:"batch_size"`
}

// TrainResponse acknowledges a started job.
type TrainResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// JobStatus is the projection of a backend run. Nil fields were not reported
// by the backend and encode as null.
type JobStatus struct {
	JobID       string   `json:"job_id"`
	Status      string   `json:"status"`
	Progress    *float64 `json:"progress"`
	CurrentStep *int     `json:"current_step"`
	TotalSteps  *int     `json:"total_steps"`
	Loss        *float64 `json:"loss"`
	Error       *string  `json:"error"`
	ModelID     *string  `json:"model_id"`
}

// ListJobsResponse wraps GET /jobs results.
type ListJobsResponse struct {
	Jobs []JobStatus `json:"jobs"`
}

// MessageResponse carries a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ModelInfo describes a base model available for fine-tuning.
type ModelInfo struct {
	ID                     string   `json:"id"`
	Name                   string   `json:"name"`
	Parameters             string   `json:"parameters"`
	SupportedTrainingTypes []string `json:"supported_training_types"`
	MaxLoraRank            int      `json:"max_lora_rank"`
	PricePerMillionTokens  float64  `json:"price_per_million_tokens"`
}

// ListModelsResponse wraps GET /models results.
type ListModelsResponse struct {
	Models []ModelInfo `json:"models"`
}

// CheckpointInfo is the projection of a backend checkpoint.
type CheckpointInfo struct {
	ID        string     `json:"id"`
	RunID     string     `json:"run_id"`
	Step      int        `json:"step"`
	Path      string     `json:"path"`
	SizeBytes int64      `json:"size_bytes"`
	CreatedAt *time.Time `json:"created_at"`
	Loss      *float64   `json:"loss"`
	EvalLoss  *float64   `json:"eval_loss"`
	Accuracy  *float64   `json:"accuracy"`
}

// ListCheckpointsResponse wraps GET /jobs/{job_id}/checkpoints results.
type ListCheckpointsResponse struct {
	Checkpoints []CheckpointInfo `json:"checkpoints"`
}

// ConnectionResponse reports the result of GET /connection.
type ConnectionResponse struct {
	Connected bool `json:"connected"`
}

type errorResponse struct {
	Detail string `json:"detail"`
}

// trainRequestBody mirrors TrainRequest with pointers so omitted fields take defaults.
type trainRequestBody struct {
	Model        *string  `json:"model"`
	DatasetURL   *string  `json:"dataset_url"`
	TrainingType *string  `json:"training_type"`
	Epochs       *int     `json:"epochs"`
	LearningRate *float64 `json:"learning_rate"`
	BatchSize    *int     `json:"batch_size"`
}

func (b trainRequestBody) toTrainRequest() (TrainRequest, error) {
	if b.Model == nil || strings.TrimSpace(*b.Model) == "" {
		return TrainRequest{}, errors.New("model: field required")
	}
	if b.DatasetURL == nil || strings.TrimSpace(*b.DatasetURL) == "" {
		return TrainRequest{}, errors.New("dataset_url: field required")
	}
	req := TrainRequest{
		Model:        *b.Model,
		DatasetURL:   *b.DatasetURL,
		TrainingType: valueOrDefault(b.TrainingType, defaultTrainingType),
		Epochs:       valueOrDefault(b.Epochs, defaultEpochs),
		LearningRate: valueOrDefault(b.LearningRate, defaultLearningRate),
		BatchSize:    valueOrDefault(b.BatchSize, defaultBatchSize),
	}
	switch req.TrainingType {
	case TrainingTypeLoRA, TrainingTypeQLoRA, TrainingTypeFull:
	default:
		return TrainRequest{}, fmt.Errorf("training_type: must be one of lora, qlora, full (got %q)", req.TrainingType)
	}
	if req.Epochs <= 0 {
		return TrainRequest{}, errors.New("epochs: must be greater than 0")
	}
	if req.LearningRate <= 0 {
		return TrainRequest{}, errors.New("learning_rate: must be greater than 0")
	}
	if req.BatchSize <= 0 {
		return TrainRequest{}, errors.New("batch_size: must be greater than 0")
	}
	return req, nil
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func toRunRequest(req TrainRequest) tinker.RunRequest {
	return tinker.RunRequest{
		Model:        req.Model,
		DatasetPath:  req.DatasetURL,
		TrainingType: req.TrainingType,
		Epochs:       req.Epochs,
		LearningRate: req.LearningRate,
		BatchSize:    req.BatchSize,
	}
}

// projectRun maps a backend run onto JobStatus without inventing values.
func projectRun(run tinker.Run) JobStatus {
	status := JobStatus{
		JobID:   run.ID,
		Status:  run.Status,
		Error:   run.Error,
		ModelID: run.ModelID,
	}
	if p := run.Progress; p != nil {
		status.CurrentStep = p.CurrentStep
		status.TotalSteps = p.TotalSteps
		status.Loss = p.Loss
		if p.CurrentStep != nil && p.TotalSteps != nil && *p.TotalSteps > 0 {
			fraction := float64(*p.CurrentStep) / float64(*p.TotalSteps)
			status.Progress = &fraction
		}
	}
	return status
}

func projectRuns(runs []tinker.Run, limit int) []JobStatus {
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	jobs := make([]JobStatus, 0, len(runs))
	for _, run := range runs {
		jobs = append(jobs, projectRun(run))
	}
	return jobs
}

func projectModels(models []tinker.Model) []ModelInfo {
	out := make([]ModelInfo, 0, len(models))
	for _, m := range models {
		out = append(out, ModelInfo(m))
	}
	return out
}

func projectCheckpoints(checkpoints []tinker.Checkpoint, limit int) []CheckpointInfo {
	if limit > 0 && len(checkpoints) > limit {
		checkpoints = checkpoints[:limit]
	}
	out := make([]CheckpointInfo, 0, len(checkpoints))
	for _, c := range checkpoints {
		out = append(out, projectCheckpoint(c))
	}
	return out
}

func projectCheckpoint(c tinker.Checkpoint) CheckpointInfo {
	info := CheckpointInfo{
		ID:        c.ID,
		RunID:     c.RunID,
		Step:      c.Step,
		Path:      c.Path,
		SizeBytes: c.SizeBytes,
		CreatedAt: c.CreatedAt,
	}
	if m := c.Metrics; m != nil {
		info.Loss = m.Loss
		info.EvalLoss = m.EvalLoss
		info.Accuracy = m.Accuracy
	}
	return info
}
