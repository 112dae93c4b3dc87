package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ppiankov/trustbutverify/internal/model"
)

// ErrInvalidFinding is returned for findings missing required fields
var ErrInvalidFinding = errors.New("invalid finding")

// FindingLog appends investigator findings to <dir>/findings.jsonl
type FindingLog struct {
	path string
	mu   sync.Mutex
}

// NewFindingLog creates the findings log under dir
func NewFindingLog(dir string) (*FindingLog, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create findings dir: %w", err)
	}
	return &FindingLog{path: filepath.Join(dir, "findings.jsonl")}, nil
}

// AppendFinding validates and appends f, assigning an id when missing
func (l *FindingLog) AppendFinding(ctx context.Context, f model.Finding) (model.Finding, error) {
	if err := ctx.Err(); err != nil {
		return f, err
	}
	if strings.TrimSpace(f.TopicID) == "" || strings.TrimSpace(f.Quote) == "" || f.Source == "" {
		return f, fmt.Errorf("%w: topic, quote and source are required", ErrInvalidFinding)
	}
	if f.LineStart < 1 || f.LineEnd < f.LineStart {
		return f, fmt.Errorf("%w: bad line range %d-%d", ErrInvalidFinding, f.LineStart, f.LineEnd)
	}
	switch f.Confidence {
	case "":
		f.Confidence = "Medium"
	case "High", "Medium", "Low":
	default:
		return f, fmt.Errorf("%w: confidence %q", ErrInvalidFinding, f.Confidence)
	}
	if f.ID == "" {
		f.ID = uuid.NewString()
	}

	data, err := json.Marshal(f)
	if err != nil {
		return f, fmt.Errorf("marshal finding: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return f, fmt.Errorf("open findings: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(data, '\n')); err != nil {
		return f, fmt.Errorf("append finding: %w", err)
	}
	return f, file.Sync()
}

// Findings returns every finding for topic, or all findings when topic is empty
func (l *FindingLog) Findings(topic string) ([]model.Finding, error) {
	l.mu.Lock()
	data, err := os.ReadFile(l.path)
	l.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read findings: %w", err)
	}

	var out []model.Finding
	for _, row := range strings.Split(string(data), "\n") {
		if row == "" {
			continue
		}
		var f model.Finding
		if err := json.Unmarshal([]byte(row), &f); err != nil {
			return nil, fmt.Errorf("decode finding: %w", err)
		}
		if topic == "" || f.TopicID == topic {
			out = append(out, f)
		}
	}
	return out, nil
}
