package ledger

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/vadiminshakov/gowal"
)

const (
	entryAccount = "account"
	entryBalance = "balance"
	entryAppend  = "append"
	entryCommit  = "commit"

	journalKeyPrefix    = "ledger_"
	journalFilePrefix   = "ledger_"
	journalSegmentLimit = 1000
	journalMaxSegments  = 100
)

// JournalEntry is one replayable ledger event. Balances hold post-commit
// values of every touched account.
type JournalEntry struct {
	Kind        string             `json:"kind"`
	Address     string             `json:"address,omitempty"`
	Transaction *Transaction       `json:"transaction,omitempty"`
	Balances    map[string]Balance `json:"balances,omitempty"`
}

// Journal persists ledger events so an in-memory ledger survives restarts.
type Journal interface {
	Record(entry JournalEntry) error
	Entries() ([]JournalEntry, error)
	Close() error
}

// WALJournal stores journal entries in a segmented write-ahead log.
type WALJournal struct {
	mu  sync.Mutex
	wal *gowal.Wal
}

// NewWALJournal opens (or creates) a journal under dir.
func NewWALJournal(dir string) (*WALJournal, error) {
	if dir == "" {
		return nil, fmt.Errorf("journal dir is required")
	}
	wal, err := gowal.NewWAL(gowal.Config{
		Dir:              dir,
		Prefix:           journalFilePrefix,
		SegmentThreshold: journalSegmentLimit,
		MaxSegments:      journalMaxSegments,
		IsInSyncDiskMode: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init ledger journal: %w", err)
	}
	return &WALJournal{wal: wal}, nil
}

// Record appends entry at the next WAL index.
func (j *WALJournal) Record(entry JournalEntry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode journal entry: %w", err)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Write(j.wal.CurrentIndex()+1, journalKeyPrefix+entry.Kind, payload)
}

// Entries returns every journaled entry in write order.
func (j *WALJournal) Entries() ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var entries []JournalEntry
	n := 0
	for msg := range j.wal.Iterator() {
		n++
		if !strings.HasPrefix(msg.Key, journalKeyPrefix) {
			continue
		}
		var e JournalEntry
		if err := json.Unmarshal(msg.Value, &e); err != nil {
			return nil, fmt.Errorf("decode journal entry %d: %w", n, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close flushes and closes the WAL.
func (j *WALJournal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.wal.Close()
}
