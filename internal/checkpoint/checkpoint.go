package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"speechtune/internal/errs"
	"speechtune/internal/method"
	"speechtune/internal/model"
	"speechtune/internal/tensor"
)

const (
	metadataFile = "metadata.json"
	weightsFile  = "weights.bin"

	formatVersion = 1
)

// Hyperparameters records the attachment settings a checkpoint needs to
// reconstruct its strategy.
type Hyperparameters struct {
	LearningRate   float64 `json:"learning_rate"`
	Rank           int     `json:"rank"`
	Alpha          float64 `json:"alpha"`
	Layers         []int   `json:"layers,omitempty"`
	Positions      int     `json:"positions,omitempty"`
	TiedProjection bool    `json:"tied_projection,omitempty"`
	Steps          int     `json:"steps"`
	BatchSize      int     `json:"batch_size"`
	Seed           int64   `json:"seed"`
}

// Options returns the strategy attachment options the hyperparameters encode.
func (h Hyperparameters) Options() method.Options {
	return method.Options{
		Rank:           h.Rank,
		Alpha:          h.Alpha,
		Layers:         append([]int(nil), h.Layers...),
		Positions:      h.Positions,
		TiedProjection: h.TiedProjection,
		Seed:           h.Seed,
	}
}

// Metadata is the small record persisted beside the weights. It is sufficient
// to reconstruct the strategy at evaluation time and to detect mismatches.
type Metadata struct {
	Version         int             `json:"version"`
	Method          method.Method   `json:"method"`
	BaseModelID     string          `json:"base_model_id"`
	ModelSize       model.Size      `json:"model_size"`
	Step            int             `json:"step"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Snapshot is a checkpoint held in memory: metadata plus the trainable
// parameter values.
type Snapshot struct {
	Meta    Metadata
	Weights []*tensor.Tensor
}

// Capture builds a snapshot from an attached strategy. Weight data is copied
// so later training steps do not mutate the snapshot.
func Capture(s method.Strategy, m *model.Model, hp Hyperparameters, step int) *Snapshot {
	params := s.TrainableParameters()
	weights := make([]*tensor.Tensor, 0, len(params))
	for _, p := range params {
		weights = append(weights, p.Clone())
	}
	return &Snapshot{
		Meta: Metadata{
			Version:         formatVersion,
			Method:          s.Method(),
			BaseModelID:     m.ID,
			ModelSize:       m.Size,
			Step:            step,
			Hyperparameters: hp,
			CreatedAt:       time.Now().UTC(),
		},
		Weights: weights,
	}
}

// Save persists a snapshot into dir, overwriting files of the same name.
// Writes go through a temp file and rename so a crashed save never leaves a
// half-written checkpoint behind.
func Save(dir string, snap *Snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	metaJSON, err := json.MarshalIndent(snap.Meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint metadata: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, metadataFile), metaJSON); err != nil {
		return fmt.Errorf("write checkpoint metadata: %w", err)
	}

	weights, err := msgpack.Marshal(snap.Weights)
	if err != nil {
		return fmt.Errorf("encode checkpoint weights: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, weightsFile), weights); err != nil {
		return fmt.Errorf("write checkpoint weights: %w", err)
	}
	return nil
}

// Load reads a snapshot from dir.
func Load(dir string) (*Snapshot, error) {
	metaRaw, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("no checkpoint at %s: %w", dir, err)
		}
		return nil, fmt.Errorf("read checkpoint metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("parse checkpoint metadata: %w", err)
	}
	if meta.Version != formatVersion {
		return nil, fmt.Errorf("unsupported checkpoint version %d (expected %d)", meta.Version, formatVersion)
	}

	weightsRaw, err := os.ReadFile(filepath.Join(dir, weightsFile))
	if err != nil {
		return nil, fmt.Errorf("read checkpoint weights: %w", err)
	}
	var weights []*tensor.Tensor
	if err := msgpack.Unmarshal(weightsRaw, &weights); err != nil {
		return nil, fmt.Errorf("decode checkpoint weights: %w", err)
	}
	return &Snapshot{Meta: meta, Weights: weights}, nil
}

// Restore rebuilds the strategy a snapshot was trained with and loads its
// parameter values. The requested method and the base model must match what
// the checkpoint records.
func Restore(snap *Snapshot, m *model.Model, requested method.Method) (method.Strategy, error) {
	if snap.Meta.Method != requested {
		return nil, errs.Wrap(errs.ErrCheckpointMismatch, "checkpoint", "restore",
			fmt.Sprintf("checkpoint was trained with method %q, evaluation requested %q",
				snap.Meta.Method, requested), nil)
	}
	if snap.Meta.BaseModelID != m.ID {
		return nil, errs.Wrap(errs.ErrCheckpointMismatch, "checkpoint", "restore",
			fmt.Sprintf("checkpoint base model %q does not match loaded model %q",
				snap.Meta.BaseModelID, m.ID), nil)
	}

	strat, err := method.Attach(m, snap.Meta.Method, snap.Meta.Hyperparameters.Options())
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*tensor.Tensor, len(snap.Weights))
	for _, w := range snap.Weights {
		byName[w.Name] = w
	}
	for _, p := range strat.TrainableParameters() {
		saved, ok := byName[p.Name]
		if !ok {
			return nil, errs.Wrap(errs.ErrCheckpointMismatch, "checkpoint", "restore",
				fmt.Sprintf("checkpoint is missing parameter %q", p.Name), nil)
		}
		if len(saved.Data) != len(p.Data) {
			return nil, errs.Wrap(errs.ErrCheckpointMismatch, "checkpoint", "restore",
				fmt.Sprintf("parameter %q has %d values, expected %d",
					p.Name, len(saved.Data), len(p.Data)), nil)
		}
		copy(p.Data, saved.Data)
	}
	return strat, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
