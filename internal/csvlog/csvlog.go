// Package csvlog persists samples as an append-only CSV time series.
//
// Every Append is an independent open/write/sync/close cycle, so a crash
// between ticks loses at most the in-flight row and external tools may tail
// or rotate the file between ticks.
package csvlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	apperrors "github.com/agbru/procmon/internal/errors"
	"github.com/agbru/procmon/internal/sysmon"
)

// TimestampLayout is ISO-8601 local time with microsecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000000"

const filePerm = 0o644

// Header is the fixed column header of the log.
var Header = []string{"Timestamp", "CPU_Percent", "Memory_Percent", "Memory_RSS_MB", "Memory_VMS_MB"}

// Writer appends samples to a CSV file.
type Writer struct {
	path string
	sync bool
}

// Option configures a Writer.
type Option func(*Writer)

// WithSync controls whether each append is fsynced before close (default true).
func WithSync(enabled bool) Option {
	return func(w *Writer) { w.sync = enabled }
}

// NewWriter creates a writer for path. No file is touched until
// EnsureHeader or Append is called.
func NewWriter(path string, opts ...Option) *Writer {
	w := &Writer{path: path, sync: true}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Path returns the destination path.
func (w *Writer) Path() string { return w.path }

// EnsureHeader creates the file with the header row if it is missing or
// empty. A non-empty file is left untouched.
func (w *Writer) EnsureHeader() error {
	if info, err := os.Stat(w.path); err == nil && info.Size() > 0 {
		return nil
	}
	return w.appendRows(nil)
}

// Append writes one record, preceded by the header when the file is empty.
func (w *Writer) Append(s sysmon.Sample) error {
	return w.appendRows([][]string{FormatRecord(s)})
}

func (w *Writer) appendRows(rows [][]string) (err error) {
	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, filePerm)
	if err != nil {
		return w.fail("open", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = w.fail("close", cerr)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return w.fail("stat", err)
	}

	cw := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := cw.Write(Header); err != nil {
			return w.fail("write", err)
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return w.fail("write", err)
	}
	if w.sync {
		if err := f.Sync(); err != nil {
			return w.fail("sync", err)
		}
	}
	return nil
}

func (w *Writer) fail(op string, err error) error {
	return apperrors.PersistenceError{Path: w.path, Op: op, Cause: err}
}

// FormatRecord renders a sample as one CSV record.
func FormatRecord(s sysmon.Sample) []string {
	return []string{
		s.Timestamp.Local().Format(TimestampLayout),
		formatFloat(s.CPUPercent),
		formatFloat(s.MemoryPercent),
		formatFloat(s.RSSMegabytes()),
		formatFloat(s.VMSMegabytes()),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

// Record is one parsed row of the log.
type Record struct {
	Timestamp     time.Time
	CPUPercent    float64
	MemoryPercent float64
	RSSMegabytes  float64
	VMSMegabytes  float64
}

// ErrBadHeader is returned by Read when the first row is not Header.
var ErrBadHeader = errors.New("csvlog: unexpected header")

// Read parses a log: the header row followed by zero or more records.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(Header)

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrBadHeader
		}
		return nil, err
	}
	for i, col := range Header {
		if head[i] != col {
			return nil, fmt.Errorf("%w: column %d is %q", ErrBadHeader, i, head[i])
		}
	}

	var records []Record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		rec, err := parseRecord(row)
		if err != nil {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("csvlog: line %d: %w", line, err)
		}
		records = append(records, rec)
	}
}

// ReadFile parses the log at path.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func parseRecord(row []string) (Record, error) {
	ts, err := time.ParseInLocation(TimestampLayout, row[0], time.Local)
	if err != nil {
		return Record{}, err
	}
	var vals [4]float64
	for i := range vals {
		if vals[i], err = strconv.ParseFloat(row[i+1], 64); err != nil {
			return Record{}, err
		}
	}
	return Record{
		Timestamp:     ts,
		CPUPercent:    vals[0],
		MemoryPercent: vals[1],
		RSSMegabytes:  vals[2],
		VMSMegabytes:  vals[3],
	}, nil
}
