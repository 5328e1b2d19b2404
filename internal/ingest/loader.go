// Package ingest parses raw symbol-level telemetry captures into the
// aligned per-cell series the analysis core consumes. It owns the
// messy parts of the input contract: whitespace formats, duplicate
// timestamps, header rows, missing files, and series of unequal
// length. The core receives dense, co-indexed slot series only.
package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/signalsfoundry/fronthaul-optimizer/core"
	"github.com/signalsfoundry/fronthaul-optimizer/internal/logging"
)

var cellIDPattern = regexp.MustCompile(`cell-(\d+)\.dat$`)

// File name templates of the capture tooling.
const (
	throughputFilePattern = "throughput-cell-*.dat"
	statsFilePattern      = "pkt-stats-cell-*.dat"
)

// Loader reads one capture directory.
type Loader struct {
	dir string
	cfg core.Config
	log logging.Logger
}

// NewLoader constructs a Loader over a capture directory.
func NewLoader(dir string, cfg core.Config, log logging.Logger) *Loader {
	if log == nil {
		log = logging.Noop()
	}
	return &Loader{dir: dir, cfg: cfg, log: log}
}

// DiscoverCells lists the cell IDs that have a throughput capture in
// the directory, ascending. Cells without throughput data cannot be
// analyzed and are not reported.
func (l *Loader) DiscoverCells() ([]int, error) {
	matches, err := filepath.Glob(filepath.Join(l.dir, throughputFilePattern))
	if err != nil {
		return nil, fmt.Errorf("ingest: scan %q: %w", l.dir, err)
	}

	var ids []int
	for _, m := range matches {
		if id, ok := cellIDFromPath(m); ok {
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}

// LoadAll reads every discovered cell and returns series aligned on a
// common slot index. Alignment is guaranteed by truncating all series
// to the shortest one; capture tails of differing length carry no
// cross-cell information anyway.
func (l *Loader) LoadAll(ctx context.Context) (map[int]*core.CellSeries, error) {
	ids, err := l.DiscoverCells()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("ingest: no %s files in %q", throughputFilePattern, l.dir)
	}

	series := make(map[int]*core.CellSeries, len(ids))
	for _, id := range ids {
		s, err := l.LoadCell(ctx, id)
		if err != nil {
			return nil, err
		}
		series[id] = s
	}

	alignSeries(series)

	l.log.Info(ctx, "telemetry loaded",
		logging.String("dir", l.dir),
		logging.Int("cells", len(series)),
		logging.Int("slots", seriesLength(series)),
	)
	return series, nil
}

// LoadCell reads one cell's throughput and packet-stats captures and
// aggregates symbols into slots. A missing pkt-stats file yields a
// lossless series rather than an error; a missing throughput file is
// fatal for the cell.
func (l *Loader) LoadCell(ctx context.Context, cellID int) (*core.CellSeries, error) {
	thrPath := filepath.Join(l.dir, fmt.Sprintf("throughput-cell-%d.dat", cellID))
	f, err := os.Open(thrPath)
	if err != nil {
		return nil, fmt.Errorf("ingest: cell %d: %w", cellID, err)
	}
	bits, err := parseThroughput(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("ingest: cell %d: %s: %w", cellID, thrPath, err)
	}

	throughput := l.aggregateSlots(bits)

	loss, err := l.loadLoss(ctx, cellID, len(throughput))
	if err != nil {
		return nil, err
	}

	// Per-cell alignment: throughput and loss must cover the same
	// slots before cross-cell alignment truncates further.
	n := len(throughput)
	if len(loss) < n {
		n = len(loss)
	}

	return &core.CellSeries{
		CellID:         cellID,
		ThroughputGbps: throughput[:n],
		Loss:           loss[:n],
	}, nil
}

func (l *Loader) loadLoss(ctx context.Context, cellID, slots int) ([]float64, error) {
	statsPath := filepath.Join(l.dir, fmt.Sprintf("pkt-stats-cell-%d.dat", cellID))
	f, err := os.Open(statsPath)
	if os.IsNotExist(err) {
		l.log.Warn(ctx, "no packet stats for cell, assuming lossless",
			logging.Int("cell", cellID))
		return make([]float64, slots), nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: cell %d: %w", cellID, err)
	}
	defer f.Close()

	loss, err := parseStats(f)
	if err != nil {
		return nil, fmt.Errorf("ingest: cell %d: %s: %w", cellID, statsPath, err)
	}
	return loss, nil
}

// aggregateSlots folds per-symbol bit counts into slot-level Gbps:
// SymbolsPerSlot consecutive symbols sum into one slot, and the sum is
// divided by the slot duration. A trailing partial slot is dropped so
// every slot covers the same amount of time.
func (l *Loader) aggregateSlots(bitsPerSymbol []float64) []float64 {
	perSlot := l.cfg.SymbolsPerSlot
	slotSec := l.cfg.SlotDurationSec()

	n := len(bitsPerSymbol) / perSlot
	out := make([]float64, n)
	for slot := 0; slot < n; slot++ {
		sum := 0.0
		for s := slot * perSlot; s < (slot+1)*perSlot; s++ {
			sum += bitsPerSymbol[s]
		}
		out[slot] = sum / slotSec / 1e9
	}
	return out
}

// parseThroughput reads "timestamp bits" rows. Rows sharing a
// timestamp are summed: the capture tooling emits one row per spatial
// stream, all stamped with the same symbol time.
func parseThroughput(r io.Reader) ([]float64, error) {
	type symbol struct {
		ts   float64
		bits float64
	}
	var symbols []symbol
	byTS := map[float64]int{}

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 2 {
			return nil, fmt.Errorf("line %d: want \"timestamp bits\", got %q", line, sc.Text())
		}
		ts, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad timestamp: %w", line, err)
		}
		bits, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad bit count: %w", line, err)
		}

		if idx, seen := byTS[ts]; seen {
			symbols[idx].bits += bits
		} else {
			byTS[ts] = len(symbols)
			symbols = append(symbols, symbol{ts: ts, bits: bits})
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	sort.Slice(symbols, func(i, j int) bool { return symbols[i].ts < symbols[j].ts })
	out := make([]float64, len(symbols))
	for i, s := range symbols {
		out[i] = s.bits
	}
	return out, nil
}

// parseStats reads "timestamp tx rx too_late" rows, skipping the
// header row the capture tooling writes first. Effective loss per slot
// is (tx - rx) + too_late: packets that never arrived plus packets
// that arrived after their deadline.
func parseStats(r io.Reader) ([]float64, error) {
	var loss []float64

	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) < 4 {
			return nil, fmt.Errorf("line %d: want \"timestamp tx rx too_late\", got %q", line, sc.Text())
		}

		tx, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad tx count: %w", line, err)
		}
		rx, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad rx count: %w", line, err)
		}
		tooLate, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: bad too_late count: %w", line, err)
		}

		loss = append(loss, (tx-rx)+tooLate)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return loss, nil
}

// alignSeries truncates every series to the shortest one so the core's
// shared-index invariant holds.
func alignSeries(series map[int]*core.CellSeries) {
	min := -1
	for _, s := range series {
		if min < 0 || s.Len() < min {
			min = s.Len()
		}
	}
	if min < 0 {
		return
	}
	for _, s := range series {
		s.ThroughputGbps = s.ThroughputGbps[:min]
		s.Loss = s.Loss[:min]
	}
}

func seriesLength(series map[int]*core.CellSeries) int {
	for _, s := range series {
		return s.Len()
	}
	return 0
}

func cellIDFromPath(path string) (int, bool) {
	m := cellIDPattern.FindStringSubmatch(filepath.Base(path))
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}
