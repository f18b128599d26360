package dataset_test

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"speechtune/internal/dataset"
)

func writeManifest(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "manifest.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}
	return path
}

func TestLoadManifest(t *testing.T) {
	path := writeManifest(t,
		`# comment line`,
		`{"id":"a","features":[0.1,0.2],"text":"hello world"}`,
		``,
		`{"features":[0.3],"text":"second","translation":"zweite"}`,
	)
	m, err := dataset.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(m.Records) != 2 {
		t.Fatalf("record count %d, want 2", len(m.Records))
	}
	if m.Records[0].ID != "a" || m.Records[1].ID != "item-2" {
		t.Fatalf("unexpected ids: %q, %q", m.Records[0].ID, m.Records[1].ID)
	}
	if m.Records[1].Translation != "zweite" {
		t.Fatalf("translation not preserved: %q", m.Records[1].Translation)
	}
}

func TestLoadManifestRejectsBadRecords(t *testing.T) {
	cases := map[string]string{
		"invalid json":    `{"text": "x"`,
		"missing text":    `{"features":[0.1]}`,
		"missing feature": `{"text":"no source"}`,
	}
	for name, line := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := dataset.Load(writeManifest(t, line))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "line 1") {
				t.Fatalf("error should cite the line: %v", err)
			}
		})
	}
}

func TestLoadFeaturesFromFile(t *testing.T) {
	dir := t.TempDir()
	want := []float32{0.5, -1.25, 3}
	raw := make([]byte, len(want)*4)
	for i, v := range want {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	if err := os.WriteFile(filepath.Join(dir, "utt1.f32"), raw, 0o644); err != nil {
		t.Fatalf("write features: %v", err)
	}
	path := filepath.Join(dir, "manifest.jsonl")
	if err := os.WriteFile(path, []byte(`{"audio":"utt1.f32","text":"hi"}`+"\n"), 0o644); err != nil {
		t.Fatalf("write manifest: %v", err)
	}

	m, err := dataset.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	got, err := m.LoadFeatures(m.Records[0])
	if err != nil {
		t.Fatalf("LoadFeatures: %v", err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("feature %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBatches(t *testing.T) {
	path := writeManifest(t,
		`{"features":[1],"text":"a"}`,
		`{"features":[2],"text":"b"}`,
		`{"features":[3],"text":"c"}`,
	)
	m, err := dataset.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	batches := m.Batches(2)
	if len(batches) != 2 || len(batches[0]) != 2 || len(batches[1]) != 1 {
		t.Fatalf("unexpected batch shape: %v", batches)
	}
}
