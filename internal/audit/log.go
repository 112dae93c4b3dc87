package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// ErrClosed is returned by operations on a closed log
var ErrClosed = errors.New("audit log is closed")

// ErrDuplicate is returned when a sequence number is appended twice
var ErrDuplicate = errors.New("record already exists")

// Log is an append-only store of verification records, one stream per report
type Log interface {
	// Append stores rec under its citation sequence number. Records are never updated.
	Append(ctx context.Context, report string, seq int, rec *model.VerificationRecord) error
	// Records returns a report's records in sequence order, regardless of write order
	Records(ctx context.Context, report string) ([]model.VerificationRecord, error)
	Close() error
}

// JSONLLog keeps one JSON-lines file per report under dir. Like the
// Badger log it refuses a sequence number already present in the file,
// including ones written by earlier processes.
type JSONLLog struct {
	dir string

	mu      sync.Mutex
	streams map[string]*jsonlStream
	closed  bool
}

type jsonlStream struct {
	f    *os.File
	seen map[int]struct{}
}

// NewJSONLLog creates a log rooted at dir
func NewJSONLLog(dir string) (*JSONLLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	return &JSONLLog{dir: dir, streams: make(map[string]*jsonlStream)}, nil
}

// Path returns the file backing a report's records
func (l *JSONLLog) Path(report string) string {
	return filepath.Join(l.dir, safeName(filepath.Base(report))+".records.jsonl")
}

// Append writes one line and fsyncs it before returning
func (l *JSONLLog) Append(ctx context.Context, report string, seq int, rec *model.VerificationRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := *rec
	stored.Sequence = seq
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return ErrClosed
	}

	st, ok := l.streams[report]
	if !ok {
		st, err = l.openStream(ctx, report)
		if err != nil {
			return err
		}
		l.streams[report] = st
	}
	if _, dup := st.seen[seq]; dup {
		return fmt.Errorf("%w: %s sequence %d", ErrDuplicate, report, seq)
	}
	if _, err := st.f.Write(data); err != nil {
		return fmt.Errorf("append record: %w", err)
	}
	if err := st.f.Sync(); err != nil {
		return fmt.Errorf("sync record log: %w", err)
	}
	st.seen[seq] = struct{}{}
	return nil
}

// openStream opens a report file for appending and indexes the sequence
// numbers it already holds
func (l *JSONLLog) openStream(ctx context.Context, report string) (*jsonlStream, error) {
	existing, err := l.read(ctx, report)
	if err != nil {
		return nil, err
	}
	seen := make(map[int]struct{}, len(existing))
	for _, rec := range existing {
		seen[rec.Sequence] = struct{}{}
	}
	f, err := os.OpenFile(l.Path(report), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}
	return &jsonlStream{f: f, seen: seen}, nil
}

// Records reads back a report's records ordered by sequence
func (l *JSONLLog) Records(ctx context.Context, report string) ([]model.VerificationRecord, error) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	records, err := l.read(ctx, report)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Sequence < records[j].Sequence
	})
	return records, nil
}

// read decodes a report file in write order
func (l *JSONLLog) read(ctx context.Context, report string) ([]model.VerificationRecord, error) {
	f, err := os.Open(l.Path(report))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open record log: %w", err)
	}
	defer f.Close()

	var records []model.VerificationRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var rec model.VerificationRecord
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(records)+1, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read record log: %w", err)
	}
	return records, nil
}

// Close closes every open report file
func (l *JSONLLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true

	var errs []error
	for _, st := range l.streams {
		errs = append(errs, st.f.Close())
	}
	l.streams = nil
	return errors.Join(errs...)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeName maps a name onto a single path component
func safeName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "_")
	if strings.Trim(name, ".") == "" {
		return "unnamed"
	}
	return name
}

// Open returns the record log selected by cfg.Backend
func Open(cfg model.AuditConfig, logger *slog.Logger) (Log, error) {
	switch cfg.Backend {
	case "", "jsonl":
		return NewJSONLLog(cfg.Dir)
	case "badger":
		return OpenBadgerLog(BadgerConfig{
			Path:       cfg.BadgerPath,
			SyncWrites: true,
			GCInterval: 5 * time.Minute,
			Logger:     logger,
		})
	default:
		return nil, fmt.Errorf("unknown audit backend: %s", cfg.Backend)
	}
}
