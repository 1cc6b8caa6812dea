// Package csvlog appends telemetry readings to a CSV file with header and
// size-based rotation, for offline inspection of the live stream.
package csvlog

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/relabs-tech/drainguard_node/internal/telemetry"
)

var header = []string{"timestamp", "water_level_cm", "gas_level", "reading", "uptime", "status", "anomaly"}

// Logger is a thread-safe CSV appender. When the file reaches maxRows it is
// renamed to a timestamped archive and a fresh file is started.
type Logger struct {
	mu      sync.Mutex
	path    string
	maxRows int
	rows    int
}

// New creates the file with a header row if it does not exist, otherwise
// counts the existing rows so rotation picks up where it left off.
func New(path string, maxRows int) (*Logger, error) {
	l := &Logger{path: path, maxRows: maxRows}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return l, l.writeHeader()
	}
	if err != nil {
		return nil, fmt.Errorf("csvlog: open %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvlog: read %s: %w", path, err)
	}
	if n := len(records); n > 0 {
		l.rows = n - 1 // minus header
	}
	return l, nil
}

// Append writes one reading, rotating first if the file is full.
func (l *Logger) Append(r telemetry.Reading) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.rows >= l.maxRows {
		if err := l.rotate(); err != nil {
			return err
		}
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csvlog: open %s: %w", l.path, err)
	}
	defer f.Close()

	ts := r.Timestamp
	if ts == "" {
		ts = time.Now().Format(time.RFC3339)
	}
	w := csv.NewWriter(f)
	if err := w.Write([]string{
		ts,
		strconv.FormatFloat(r.WaterLevel, 'f', 2, 64),
		strconv.Itoa(r.GasLevel),
		strconv.FormatUint(r.Index, 10),
		strconv.FormatInt(r.Uptime, 10),
		string(r.Status),
		strconv.FormatBool(r.Anomaly),
	}); err != nil {
		return fmt.Errorf("csvlog: write row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("csvlog: flush: %w", err)
	}

	l.rows++
	return nil
}

// Rows reports how many data rows the current file holds.
func (l *Logger) Rows() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows
}

func (l *Logger) rotate() error {
	archive := fmt.Sprintf("%s.%s", l.path, time.Now().Format("20060102_150405"))
	if err := os.Rename(l.path, archive); err != nil {
		return fmt.Errorf("csvlog: rotate: %w", err)
	}
	if err := l.writeHeader(); err != nil {
		return err
	}
	l.rows = 0
	return nil
}

func (l *Logger) writeHeader() error {
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("csvlog: create %s: %w", l.path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("csvlog: write header: %w", err)
	}
	w.Flush()
	return w.Error()
}
