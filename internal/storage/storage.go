// Package storage persists debatebench results: the append-only debate
// record log, the ratings snapshot, the progress file, and the
// failed-judge sink.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"debatebench/internal/judge"
	"debatebench/internal/schema"
)

// RecordLog is an append-only line-delimited JSON log of completed
// debates, one record per line. Appends are serialized so concurrent
// task completions never interleave lines.
type RecordLog struct {
	mu   sync.Mutex
	path string
}

// NewRecordLog creates a log handle; the file is created on first append.
func NewRecordLog(path string) *RecordLog {
	return &RecordLog{path: path}
}

// Path returns the log's file location.
func (l *RecordLog) Path() string { return l.path }

// Append writes one completed debate to the log.
func (l *RecordLog) Append(rec schema.DebateRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("storage: opening %s: %w", l.path, err)
	}
	defer f.Close()

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("storage: appending to %s: %w", l.path, err)
	}
	return nil
}

// Load reads every record from the log. A missing file is an empty log.
func (l *RecordLog) Load() ([]schema.DebateRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: opening %s: %w", l.path, err)
	}
	defer f.Close()

	var records []schema.DebateRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec schema.DebateRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("storage: invalid record at %s:%d: %w", l.path, lineNo, err)
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("storage: reading %s: %w", l.path, err)
	}
	return records, nil
}

// WriteRatings stores the full ratings table as a single JSON document.
func WriteRatings(path string, ratings schema.RatingsFile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	data, err := json.MarshalIndent(ratings, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", path, err)
	}
	return nil
}

// ReadRatings loads a ratings table.
func ReadRatings(path string) (schema.RatingsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return schema.RatingsFile{}, fmt.Errorf("storage: reading %s: %w", path, err)
	}
	var ratings schema.RatingsFile
	if err := json.Unmarshal(data, &ratings); err != nil {
		return schema.RatingsFile{}, fmt.Errorf("storage: parsing %s: %w", path, err)
	}
	return ratings, nil
}

// Progress is the point-in-time run summary an external monitor or a
// resumed run reads to reconstruct state without replaying the log.
type Progress struct {
	RunTag                string    `json:"run_tag"`
	DebatesFile           string    `json:"debates_file"`
	TotalPlannedRemaining int       `json:"total_planned_remaining"`
	CompletedNew          int       `json:"completed_new"`
	CompletedPrior        int       `json:"completed_prior"`
	CompletedTotal        int       `json:"completed_total"`
	Timestamp             time.Time `json:"timestamp"`
	BannedModels          []string  `json:"banned_models"`
}

// WriteProgress overwrites the snapshot wholesale; it is a summary,
// not an append log.
func WriteProgress(path string, p Progress) error {
	if p.BannedModels == nil {
		p.BannedModels = []string{}
	}
	sort.Strings(p.BannedModels)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: writing %s: %w", path, err)
	}
	return nil
}

// FailedJudgeLog appends unsalvageable judge responses as JSONL.
type FailedJudgeLog struct {
	mu   sync.Mutex
	path string
}

// NewFailedJudgeLog creates the sink handle.
func NewFailedJudgeLog(path string) *FailedJudgeLog {
	return &FailedJudgeLog{path: path}
}

// SinkFailedJudge implements judge.FailureSink.
func (l *FailedJudgeLog) SinkFailedJudge(f judge.FailedJudge) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	fh, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("storage: opening %s: %w", l.path, err)
	}
	defer fh.Close()

	line, err := json.Marshal(f)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if _, err := fh.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("storage: appending to %s: %w", l.path, err)
	}
	return nil
}
