package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"speechtune/internal/tensor"
)

const (
	baseMetadataFile = "base.json"
	baseWeightsFile  = "weights.bin"
	baseVocabFile    = "vocab.txt"
)

type baseMetadata struct {
	ID     string `json:"id"`
	Size   Size   `json:"size"`
	Hidden int    `json:"hidden"`
	Layers int    `json:"layers"`
}

// Save writes the model to a base-model directory: JSON metadata, a msgpack
// weight bundle, and a plain-text vocabulary.
func (m *Model) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	meta := baseMetadata{ID: m.ID, Size: m.Size, Hidden: m.Hidden, Layers: len(m.Layers)}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal base metadata: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, baseMetadataFile), metaJSON, 0o644); err != nil {
		return fmt.Errorf("write base metadata: %w", err)
	}

	weights, err := msgpack.Marshal(m.Parameters())
	if err != nil {
		return fmt.Errorf("encode base weights: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, baseWeightsFile), weights, 0o644); err != nil {
		return fmt.Errorf("write base weights: %w", err)
	}

	vocab := strings.Join(m.Vocab, "\n") + "\n"
	if err := os.WriteFile(filepath.Join(dir, baseVocabFile), []byte(vocab), 0o644); err != nil {
		return fmt.Errorf("write vocab: %w", err)
	}
	return nil
}

// Load reads a model from a base-model directory and verifies it matches the
// requested size.
func Load(dir string, size Size) (*Model, error) {
	metaRaw, err := os.ReadFile(filepath.Join(dir, baseMetadataFile))
	if err != nil {
		return nil, fmt.Errorf("read base metadata: %w", err)
	}
	var meta baseMetadata
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, fmt.Errorf("parse base metadata: %w", err)
	}
	if meta.Size != size {
		return nil, fmt.Errorf("base model at %s is size %q, requested %q", dir, meta.Size, size)
	}

	weightsRaw, err := os.ReadFile(filepath.Join(dir, baseWeightsFile))
	if err != nil {
		return nil, fmt.Errorf("read base weights: %w", err)
	}
	var params []*tensor.Tensor
	if err := msgpack.Unmarshal(weightsRaw, &params); err != nil {
		return nil, fmt.Errorf("decode base weights: %w", err)
	}

	vocabRaw, err := os.ReadFile(filepath.Join(dir, baseVocabFile))
	if err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}
	vocab := splitVocab(string(vocabRaw))

	m := &Model{ID: meta.ID, Size: meta.Size, Hidden: meta.Hidden, Vocab: vocab}
	byName := make(map[string]*tensor.Tensor, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}
	for i := 0; i < meta.Layers; i++ {
		w, ok := byName[fmt.Sprintf("encoder.%d.weight", i)]
		if !ok {
			return nil, fmt.Errorf("base weights missing encoder.%d.weight", i)
		}
		b, ok := byName[fmt.Sprintf("encoder.%d.bias", i)]
		if !ok {
			return nil, fmt.Errorf("base weights missing encoder.%d.bias", i)
		}
		m.Layers = append(m.Layers, &Layer{Index: i, Weight: w, Bias: b})
	}
	head, ok := byName["head.weight"]
	if !ok {
		return nil, fmt.Errorf("base weights missing head.weight")
	}
	m.Head = head
	return m, nil
}

// Resolve loads the base model from dir when set, otherwise falls back to the
// deterministic synthetic variant.
func Resolve(dir string, size Size, seed int64) (*Model, error) {
	if strings.TrimSpace(dir) == "" {
		return Synthetic(size, seed), nil
	}
	return Load(dir, size)
}

func splitVocab(raw string) []string {
	var vocab []string
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			vocab = append(vocab, line)
		}
	}
	return vocab
}
