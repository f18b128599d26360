package dataset

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
)

// Record is one manifest entry: an audio reference and its ground truth.
// Features may be inline or live in a raw little-endian float32 file next to
// the manifest.
type Record struct {
	ID          string    `json:"id,omitempty"`
	Audio       string    `json:"audio,omitempty"`
	Features    []float32 `json:"features,omitempty"`
	Text        string    `json:"text"`
	Translation string    `json:"translation,omitempty"`
}

// Manifest is an ordered set of records plus the directory audio paths are
// resolved against.
type Manifest struct {
	Path    string
	Records []Record
}

// Load reads a JSONL manifest. Blank lines and #-comments are skipped;
// anything else that fails to parse reports its line number.
func Load(path string) (*Manifest, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open manifest: %w", err)
	}
	defer file.Close()

	m := &Manifest{Path: path}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 1<<16), 1<<22)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("manifest %s line %d: %w", path, line, err)
		}
		if err := rec.validate(); err != nil {
			return nil, fmt.Errorf("manifest %s line %d: %w", path, line, err)
		}
		if rec.ID == "" {
			rec.ID = fmt.Sprintf("item-%d", len(m.Records)+1)
		}
		m.Records = append(m.Records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return m, nil
}

func (r *Record) validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("record %q has no reference text", r.ID)
	}
	if r.Audio == "" && len(r.Features) == 0 {
		return fmt.Errorf("record %q has neither audio path nor inline features", r.ID)
	}
	return nil
}

// LoadFeatures returns the record's feature vector, reading the audio feature
// file relative to the manifest when features are not inline.
func (m *Manifest) LoadFeatures(rec Record) ([]float32, error) {
	if len(rec.Features) > 0 {
		return rec.Features, nil
	}
	path := rec.Audio
	if !filepath.IsAbs(path) {
		path = filepath.Join(filepath.Dir(m.Path), path)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read features for %q: %w", rec.ID, err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("feature file for %q is not a float32 stream (%d bytes)", rec.ID, len(raw))
	}
	features := make([]float32, len(raw)/4)
	for i := range features {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		features[i] = math.Float32frombits(bits)
	}
	return features, nil
}

// Batches splits records into fixed-size batches preserving manifest order.
// The final batch may be short.
func (m *Manifest) Batches(size int) [][]Record {
	if size < 1 {
		size = 1
	}
	var batches [][]Record
	for start := 0; start < len(m.Records); start += size {
		end := start + size
		if end > len(m.Records) {
			end = len(m.Records)
		}
		batches = append(batches, m.Records[start:end])
	}
	return batches
}
