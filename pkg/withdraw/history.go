package withdraw

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultHistoryFileName is where submissions are persisted under the home
// directory when no path is configured.
const DefaultHistoryFileName = ".near-intents-withdrawals.json"

// SubmissionStatus tracks a withdrawal through settlement.
type SubmissionStatus string

const (
	StatusPending SubmissionStatus = "pending"
	StatusSettled SubmissionStatus = "settled"
	StatusFailed  SubmissionStatus = "failed"
)

// Submission is one recorded withdrawal, enough to resume a status watcher
// across process restarts.
type Submission struct {
	ID             string           `json:"id"`
	CreatedAt      time.Time        `json:"created_at"`
	AssetID        string           `json:"asset_id"`
	Chain          string           `json:"chain"`
	Recipient      string           `json:"recipient"`
	Amount         string           `json:"amount"`
	DepositAddress string           `json:"deposit_address,omitempty"`
	TxHash         string           `json:"tx_hash,omitempty"`
	Status         SubmissionStatus `json:"status"`
}

// History persists submissions to a JSON file with atomic writes.
type History struct {
	filePath string
	mu       sync.RWMutex
	items    map[string]*Submission
}

type historyFile struct {
	Submissions map[string]*Submission `json:"submissions"`
}

// NewHistory opens (or lazily creates) the history file.
func NewHistory(filePath string) (*History, error) {
	if filePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		filePath = filepath.Join(home, DefaultHistoryFileName)
	}

	h := &History{
		filePath: filePath,
		items:    make(map[string]*Submission),
	}
	if err := h.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load withdrawal history: %w", err)
		}
	}
	return h, nil
}

func (h *History) load() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := os.ReadFile(h.filePath)
	if err != nil {
		return err
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to unmarshal history: %w", err)
	}
	h.items = file.Submissions
	if h.items == nil {
		h.items = make(map[string]*Submission)
	}
	return nil
}

func (h *History) save() error {
	h.mu.RLock()
	data, err := json.MarshalIndent(historyFile{Submissions: h.items}, "", "  ")
	h.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}

	dir := filepath.Dir(h.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Temp file plus rename keeps the file whole if we crash mid-write.
	tempFile := h.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := os.Rename(tempFile, h.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Record appends a new pending submission and returns its generated id.
func (h *History) Record(sub Submission) (string, error) {
	sub.ID = uuid.NewString()
	sub.CreatedAt = time.Now().UTC()
	if sub.Status == "" {
		sub.Status = StatusPending
	}

	h.mu.Lock()
	h.items[sub.ID] = &sub
	h.mu.Unlock()

	return sub.ID, h.save()
}

// UpdateStatus moves a submission to a new status, optionally attaching the
// settlement transaction hash.
func (h *History) UpdateStatus(id string, status SubmissionStatus, txHash string) error {
	h.mu.Lock()
	sub, ok := h.items[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("submission '%s' not found", id)
	}
	sub.Status = status
	if txHash != "" {
		sub.TxHash = txHash
	}
	h.mu.Unlock()

	return h.save()
}

// Get retrieves one submission by id.
func (h *History) Get(id string) (*Submission, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sub, ok := h.items[id]
	if !ok {
		return nil, fmt.Errorf("submission '%s' not found", id)
	}
	copied := *sub
	return &copied, nil
}

// List returns all submissions, newest first.
func (h *History) List() []*Submission {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Submission, 0, len(h.items))
	for _, sub := range h.items {
		copied := *sub
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Pending returns the submissions still awaiting settlement, for resuming
// status watchers after a restart.
func (h *History) Pending() []*Submission {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]*Submission, 0)
	for _, sub := range h.items {
		if sub.Status == StatusPending {
			copied := *sub
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// FilePath returns the backing file's location.
func (h *History) FilePath() string {
	return h.filePath
}
