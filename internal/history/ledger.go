package history

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Statuses recorded for terminal candidate outcomes.
const (
	StatusCompleted    = "completed"
	StatusSkipped      = "skipped"
	StatusUploadFailed = "upload_failed"
)

// Skip reason codes.
const (
	ReasonDurationOutOfRange = "duration_out_of_range"
	ReasonBlacklistedChannel = "blacklisted_channel"
	ReasonTooOld             = "too_old"
	ReasonDuplicate          = "duplicate"
)

// Record is one terminal event for a candidate. Records are append-only;
// corrections happen via new records, never rewrites.
type Record struct {
	ID         string   `json:"yt_id"`
	URL        string   `json:"yt_url,omitempty"`
	Status     string   `json:"status"`
	Reason     string   `json:"reason,omitempty"`
	Title      string   `json:"title,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Desc       string   `json:"desc,omitempty"`
	TaskID     string   `json:"task_id,omitempty"`
	Attempts   int      `json:"attempts,omitempty"`
	Channel    string   `json:"channel,omitempty"`
	Duration   int      `json:"duration,omitempty"`
	UploadDate string   `json:"upload_date,omitempty"`
	Verdict    *Verdict `json:"verdict,omitempty"`
	RecordedAt string   `json:"recorded_at"`
}

// Verdict mirrors the duplicate decision stored alongside a skipped record.
type Verdict struct {
	Duplicate  bool    `json:"duplicate"`
	Reason     string  `json:"reason,omitempty"`
	Matched    []Match `json:"matched,omitempty"`
	QueryTitle string  `json:"zh_title,omitempty"`
}

// Match is one (title, URL) pair the duplicate judge flagged.
type Match struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// MarksProcessed reports whether a record of this status removes the
// candidate from future runs. Upload failures stay retry-eligible.
func MarksProcessed(status string) bool {
	return status != StatusUploadFailed
}

// Ledger is an append-only JSONL history bound to a file path.
type Ledger struct {
	path string
	now  func() time.Time
}

// Option customizes the ledger.
type Option func(*Ledger)

// WithClock overrides timestamping (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

// New constructs a ledger for the given path. The backing file is created
// lazily on first append.
func New(path string, opts ...Option) (*Ledger, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("history: ledger path required")
	}
	ledger := &Ledger{path: path, now: time.Now}
	for _, opt := range opts {
		opt(ledger)
	}
	return ledger, nil
}

// Path returns the backing file location.
func (l *Ledger) Path() string {
	return l.path
}

// Load reconstructs the processed-identifier set from every persisted record
// whose status still marks the candidate as processed. Malformed lines are
// skipped silently; a missing file yields an empty set.
func (l *Ledger) Load() (map[string]struct{}, error) {
	processed := make(map[string]struct{})
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return processed, nil
		}
		return nil, fmt.Errorf("history: open ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		if rec.ID == "" || !MarksProcessed(rec.Status) {
			continue
		}
		processed[rec.ID] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: read ledger: %w", err)
	}
	return processed, nil
}

// Records returns every well-formed record in append order.
func (l *Ledger) Records() ([]Record, error) {
	var records []Record
	file, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return records, nil
		}
		return nil, fmt.Errorf("history: open ledger: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: read ledger: %w", err)
	}
	return records, nil
}

// Append writes one record as a single flushed JSON line, creating the file
// and parent directories on first use. The write is the unit of durability:
// a crash before Append leaves no trace and the candidate is retried next run.
func (l *Ledger) Append(rec Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return errors.New("history: record id required")
	}
	if rec.RecordedAt == "" {
		rec.RecordedAt = l.now().UTC().Format(time.RFC3339)
	}
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("history: encode record: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("history: create ledger directory: %w", err)
		}
	}
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("history: open ledger for append: %w", err)
	}
	defer file.Close()
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("history: append record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("history: flush record: %w", err)
	}
	return nil
}
