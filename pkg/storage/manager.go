package storage

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"appgrowth-segmenter/pkg/appgrowth"
)

type SessionRecord struct {
	BaseURL   string              `json:"baseUrl"`
	Username  string              `json:"username"`
	Cookies   []*appgrowth.Cookie `json:"cookies"`
	LastLogin time.Time           `json:"lastLogin"`
	Key       string              `json:"key"`
}

type SegmentRecord struct {
	RunID      string    `json:"runId"`
	Name       string    `json:"name"`
	Created    bool      `json:"created"`
	StatusCode int       `json:"statusCode,omitempty"`
	Diagnostic string    `json:"diagnostic,omitempty"`
	At         time.Time `json:"at"`
}

type SegmentLedger struct {
	Segments    []SegmentRecord `json:"segments"`
	LastUpdated time.Time       `json:"lastUpdated"`
}

// StorageManager keeps session cookies and the segment ledger as JSON files
// in one directory.
type StorageManager struct {
	dataDir string
	mu      sync.Mutex
}

func NewStorageManager(dataDir string) (*StorageManager, error) {
	if dataDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		dataDir = filepath.Join(cwd, ".appgrowth-data")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, err
	}

	return &StorageManager{
		dataDir: dataDir,
	}, nil
}

func (sm *StorageManager) GetDataDir() string {
	return sm.dataDir
}

func sessionKey(baseURL, username string) string {
	host := baseURL
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		host = u.Host
	}

	r := strings.NewReplacer("@", "_at_", ".", "_", ":", "_", "/", "_")
	return fmt.Sprintf("%s_%s", r.Replace(host), r.Replace(username))
}

func (sm *StorageManager) sessionFilePath(baseURL, username string) string {
	return filepath.Join(sm.dataDir, fmt.Sprintf("session_%s.json", sessionKey(baseURL, username)))
}

func (sm *StorageManager) ledgerPath() string {
	return filepath.Join(sm.dataDir, "segments.json")
}

// GetSession returns nil, nil when nothing is stored.
func (sm *StorageManager) GetSession(baseURL, username string) (*SessionRecord, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	data, err := os.ReadFile(sm.sessionFilePath(baseURL, username))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}

	return &rec, nil
}

func (sm *StorageManager) SaveSession(baseURL, username string, cookies []*appgrowth.Cookie) error {
	rec := SessionRecord{
		BaseURL:   baseURL,
		Username:  username,
		Cookies:   cookies,
		LastLogin: time.Now(),
		Key:       sessionKey(baseURL, username),
	}

	sm.mu.Lock()
	defer sm.mu.Unlock()
	return writeJSON(sm.sessionFilePath(baseURL, username), rec)
}

func (sm *StorageManager) RemoveSession(baseURL, username string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	err := os.Remove(sm.sessionFilePath(baseURL, username))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (sm *StorageManager) GetLedger() (*SegmentLedger, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	return sm.readLedger()
}

func (sm *StorageManager) readLedger() (*SegmentLedger, error) {
	data, err := os.ReadFile(sm.ledgerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return &SegmentLedger{Segments: []SegmentRecord{}}, nil
		}
		return nil, err
	}

	var ledger SegmentLedger
	if err := json.Unmarshal(data, &ledger); err != nil {
		return nil, err
	}

	return &ledger, nil
}

// RecordSegment appends one creation attempt to the ledger.
func (sm *StorageManager) RecordSegment(runID string, res appgrowth.CreateResult) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ledger, err := sm.readLedger()
	if err != nil {
		return err
	}

	ledger.Segments = append(ledger.Segments, SegmentRecord{
		RunID:      runID,
		Name:       res.Name,
		Created:    res.Created,
		StatusCode: res.StatusCode,
		Diagnostic: res.Diagnostic,
		At:         time.Now(),
	})
	ledger.LastUpdated = time.Now()

	return writeJSON(sm.ledgerPath(), ledger)
}

// SegmentsForRun returns the ledger entries of one run, or all of them when
// runID is empty.
func (sm *StorageManager) SegmentsForRun(runID string) ([]SegmentRecord, error) {
	ledger, err := sm.GetLedger()
	if err != nil {
		return nil, err
	}

	if runID == "" {
		return ledger.Segments, nil
	}

	var out []SegmentRecord
	for _, s := range ledger.Segments {
		if s.RunID == runID {
			out = append(out, s)
		}
	}

	return out, nil
}

// WasCreated reports whether the ledger holds a successful creation of name.
func (sm *StorageManager) WasCreated(name string) (bool, error) {
	ledger, err := sm.GetLedger()
	if err != nil {
		return false, err
	}

	for _, s := range ledger.Segments {
		if s.Name == name && s.Created {
			return true, nil
		}
	}

	return false, nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}
