package ingest

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
)

// writeCapture drops a throughput and (optionally) a pkt-stats file
// for one cell into dir.
func writeCapture(t *testing.T, dir string, cellID int, throughput, stats string) {
	t.Helper()
	thr := filepath.Join(dir, fmt.Sprintf("throughput-cell-%d.dat", cellID))
	if err := os.WriteFile(thr, []byte(throughput), 0o644); err != nil {
		t.Fatalf("write %s: %v", thr, err)
	}
	if stats != "" {
		st := filepath.Join(dir, fmt.Sprintf("pkt-stats-cell-%d.dat", cellID))
		if err := os.WriteFile(st, []byte(stats), 0o644); err != nil {
			t.Fatalf("write %s: %v", st, err)
		}
	}
}

// symbolRows renders n "timestamp bits" rows with a fixed bit count.
func symbolRows(n int, bits float64) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "%d.0 %g\n", i, bits)
	}
	return b.String()
}

func TestLoader_DiscoverCells(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, 3, symbolRows(14, 100), "")
	writeCapture(t, dir, 1, symbolRows(14, 100), "")
	writeCapture(t, dir, 12, symbolRows(14, 100), "")
	// A stats-only cell has nothing to analyze and must not show up.
	if err := os.WriteFile(filepath.Join(dir, "pkt-stats-cell-99.dat"), []byte("h\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	l := NewLoader(dir, core.DefaultConfig(), nil)
	ids, err := l.DiscoverCells()
	if err != nil {
		t.Fatalf("DiscoverCells: %v", err)
	}
	want := []int{1, 3, 12}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
}

func TestLoader_AggregatesSymbolsToSlots(t *testing.T) {
	dir := t.TempDir()
	cfg := core.DefaultConfig()

	// 28 symbols of 1e6 bits each: exactly two slots of 14e6 bits.
	writeCapture(t, dir, 1, symbolRows(28, 1e6), "header\n0 10 10 0\n1 10 8 1\n")

	l := NewLoader(dir, cfg, nil)
	s, err := l.LoadCell(context.Background(), 1)
	if err != nil {
		t.Fatalf("LoadCell: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("slots = %d, want 2", s.Len())
	}
	wantGbps := 14e6 / cfg.SlotDurationSec() / 1e9
	for i, v := range s.ThroughputGbps {
		if math.Abs(v-wantGbps) > 1e-9 {
			t.Errorf("slot %d = %v Gbps, want %v", i, v, wantGbps)
		}
	}

	// Row 2 of the stats file: loss = (10-8)+1 = 3.
	if s.Loss[0] != 0 || s.Loss[1] != 3 {
		t.Errorf("loss = %v, want [0 3]", s.Loss)
	}
}

func TestLoader_SumsDuplicateTimestamps(t *testing.T) {
	dir := t.TempDir()
	cfg := core.DefaultConfig()
	cfg.SymbolsPerSlot = 2

	// Two rows share timestamp 0: their bits belong to one symbol.
	capture := "0.0 100\n0.0 50\n1.0 200\n"
	writeCapture(t, dir, 1, capture, "")

	l := NewLoader(dir, cfg, nil)
	s, err := l.LoadCell(context.Background(), 1)
	if err != nil {
		t.Fatalf("LoadCell: %v", err)
	}

	// One slot of (150 + 200) bits.
	if s.Len() != 1 {
		t.Fatalf("slots = %d, want 1", s.Len())
	}
	want := 350 / cfg.SlotDurationSec() / 1e9
	if math.Abs(s.ThroughputGbps[0]-want) > 1e-12 {
		t.Errorf("slot 0 = %v, want %v", s.ThroughputGbps[0], want)
	}
}

func TestLoader_DropsPartialTrailingSlot(t *testing.T) {
	dir := t.TempDir()
	cfg := core.DefaultConfig()

	// 20 symbols with 14 per slot: one full slot, 6 leftovers dropped.
	writeCapture(t, dir, 1, symbolRows(20, 1e6), "")

	l := NewLoader(dir, cfg, nil)
	s, err := l.LoadCell(context.Background(), 1)
	if err != nil {
		t.Fatalf("LoadCell: %v", err)
	}
	if s.Len() != 1 {
		t.Errorf("slots = %d, want 1 (partial slot dropped)", s.Len())
	}
}

func TestLoader_LoadAllAlignsAcrossCells(t *testing.T) {
	dir := t.TempDir()
	cfg := core.DefaultConfig()
	cfg.SymbolsPerSlot = 2

	// Cell 1 has 4 slots, cell 2 has 2: both must come back with 2.
	writeCapture(t, dir, 1, symbolRows(8, 1e3), "h\n0 5 5 0\n1 5 5 0\n2 5 4 0\n3 5 5 0\n")
	writeCapture(t, dir, 2, symbolRows(4, 1e3), "h\n0 5 5 0\n1 5 3 0\n")

	l := NewLoader(dir, cfg, nil)
	series, err := l.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}

	if len(series) != 2 {
		t.Fatalf("cells = %d, want 2", len(series))
	}
	for id, s := range series {
		if s.Len() != 2 {
			t.Errorf("cell %d length = %d, want 2", id, s.Len())
		}
		if len(s.Loss) != 2 {
			t.Errorf("cell %d loss length = %d, want 2", id, len(s.Loss))
		}
	}

	// The aligned output must be valid core input.
	if _, err := core.DiscoverTopology(series, core.DefaultConfig()); err != nil {
		t.Errorf("aligned series rejected by discovery: %v", err)
	}
}

func TestLoader_MissingStatsMeansLossless(t *testing.T) {
	dir := t.TempDir()
	writeCapture(t, dir, 1, symbolRows(28, 1e6), "")

	l := NewLoader(dir, core.DefaultConfig(), nil)
	s, err := l.LoadCell(context.Background(), 1)
	if err != nil {
		t.Fatalf("LoadCell: %v", err)
	}
	for i, v := range s.Loss {
		if v != 0 {
			t.Errorf("loss[%d] = %v, want 0 without a stats file", i, v)
		}
	}
}

func TestLoader_MalformedRows(t *testing.T) {
	cases := []struct {
		name       string
		throughput string
		stats      string
	}{
		{"non-numeric bits", "0.0 abc\n", ""},
		{"missing column", "0.0\n", ""},
		{"bad stats row", symbolRows(14, 1), "header\n0 ten 10 0\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			writeCapture(t, dir, 1, tc.throughput, tc.stats)

			l := NewLoader(dir, core.DefaultConfig(), nil)
			if _, err := l.LoadCell(context.Background(), 1); err == nil {
				t.Errorf("expected parse error")
			}
		})
	}
}

func TestLoader_EmptyDirectory(t *testing.T) {
	l := NewLoader(t.TempDir(), core.DefaultConfig(), nil)
	if _, err := l.LoadAll(context.Background()); err == nil {
		t.Fatalf("expected error for a directory without captures")
	}
}
