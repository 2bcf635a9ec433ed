// Package ledger implements the append-only changelog for the
// knowledge base. Entries are stored as JSON lines in dated files, one
// file per calendar day, under the corpus state directory. Entries are
// never rewritten or deleted; corrections reference the entry they
// supersede.
package ledger

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
)

// Common ledger errors.
var (
	// ErrIntegrity is returned when an entry fails validation: no
	// impacted paths, an unknown document path, or a correction
	// referencing an entry that does not exist.
	ErrIntegrity = errors.New("ledger integrity")

	// ErrNotFound is returned when an entry ID is not in the ledger.
	ErrNotFound = errors.New("entry not found")
)

// DateLayout is the date format used for entry dates and file names.
const DateLayout = "2006-01-02"

// CorrectionTag prefixes the summary of entries that supersede an
// earlier entry, so corrections stand out in rendered changelogs.
const CorrectionTag = "CORRECTION"

// EntryID identifies a ledger entry.
type EntryID string

// NewEntryID generates a unique entry ID.
func NewEntryID() EntryID {
	return EntryID(uuid.New().String())
}

// Entry records one accepted change to the knowledge base.
type Entry struct {
	ID            EntryID   `json:"id"`
	Seq           uint64    `json:"seq"`
	Date          string    `json:"date"`
	Summary       string    `json:"summary"`
	Reason        string    `json:"reason"`
	ImpactedPaths []string  `json:"impacted_paths"`
	Breaking      bool      `json:"breaking,omitempty"`
	Corrects      EntryID   `json:"corrects,omitempty"`
	CommittedAt   time.Time `json:"committed_at"`
}

// IsCorrection reports whether the entry supersedes an earlier one.
func (e Entry) IsCorrection() bool {
	return e.Corrects != ""
}

// Ledger is an append-only changelog backed by dated JSONL files.
type Ledger struct {
	mu      sync.Mutex
	dir     string
	entries []Entry
	byID    map[EntryID]int
	nextSeq uint64
	now     func() time.Time
}

// Open loads the ledger from dir, creating the directory if needed.
func Open(dir string) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}

	l := &Ledger{
		dir:  dir,
		byID: make(map[EntryID]int),
		now:  time.Now,
	}
	if err := l.load(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Ledger) load() error {
	paths, err := filepath.Glob(filepath.Join(l.dir, "*.jsonl"))
	if err != nil {
		return fmt.Errorf("listing ledger files: %w", err)
	}
	sort.Strings(paths)

	for _, path := range paths {
		if err := l.loadFile(path); err != nil {
			return err
		}
	}

	// Files are read in date order but entries are ordered by the
	// sequence assigned at append time.
	sort.SliceStable(l.entries, func(i, j int) bool {
		return l.entries[i].Seq < l.entries[j].Seq
	})
	for i, e := range l.entries {
		l.byID[e.ID] = i
		if e.Seq >= l.nextSeq {
			l.nextSeq = e.Seq + 1
		}
	}
	return nil
}

func (l *Ledger) loadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening ledger file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry Entry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return fmt.Errorf("%w: %s line %d: %v", ErrIntegrity, filepath.Base(path), lineNo, err)
		}
		l.entries = append(l.entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading ledger file %s: %w", path, err)
	}
	return nil
}

// Append validates and records a new entry. known, when non-nil,
// reports whether an impacted path exists in the corpus. The stored
// entry with its assigned ID and sequence is returned.
func (l *Ledger) Append(entry Entry, known func(path string) bool) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(entry.ImpactedPaths) == 0 {
		return Entry{}, fmt.Errorf("%w: entry has no impacted paths", ErrIntegrity)
	}
	if known != nil {
		for _, path := range entry.ImpactedPaths {
			if !known(path) {
				return Entry{}, fmt.Errorf("%w: impacted path %q is not a known document", ErrIntegrity, path)
			}
		}
	}
	if entry.Corrects != "" {
		if _, ok := l.byID[entry.Corrects]; !ok {
			return Entry{}, fmt.Errorf("%w: correction references unknown entry %s", ErrIntegrity, entry.Corrects)
		}
	}
	if entry.Summary == "" {
		return Entry{}, fmt.Errorf("%w: entry has no summary", ErrIntegrity)
	}
	if entry.Corrects != "" && !strings.HasPrefix(entry.Summary, CorrectionTag) {
		entry.Summary = CorrectionTag + ": " + entry.Summary
	}

	committedAt := l.now().UTC()
	if entry.Date == "" {
		entry.Date = committedAt.Format(DateLayout)
	} else if _, err := time.Parse(DateLayout, entry.Date); err != nil {
		return Entry{}, fmt.Errorf("%w: date %q is not a valid %s date", ErrIntegrity, entry.Date, DateLayout)
	}

	entry.ID = NewEntryID()
	entry.Seq = l.nextSeq
	entry.CommittedAt = committedAt

	if err := l.persist(entry); err != nil {
		return Entry{}, err
	}

	l.entries = append(l.entries, entry)
	l.byID[entry.ID] = len(l.entries) - 1
	l.nextSeq++
	return entry, nil
}

// persist appends the entry to its dated file via an atomic rewrite, so
// a crash never leaves a partial line behind.
func (l *Ledger) persist(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding ledger entry: %w", err)
	}

	path := filepath.Join(l.dir, entry.Date+".jsonl")
	existing, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading ledger file %s: %w", path, err)
	}

	var buf bytes.Buffer
	buf.Write(existing)
	buf.Write(line)
	buf.WriteByte('\n')

	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("writing ledger file %s: %w", path, err)
	}
	return nil
}

// Entries returns all entries in insertion order.
func (l *Ledger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// EntriesSince returns entries dated on or after the given date, in
// insertion order.
func (l *Ledger) EntriesSince(date time.Time) []Entry {
	cutoff := date.Format(DateLayout)

	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Entry
	for _, e := range l.entries {
		if e.Date >= cutoff {
			out = append(out, e)
		}
	}
	return out
}

// Get returns the entry with the given ID.
func (l *Ledger) Get(id EntryID) (Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i, ok := l.byID[id]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return l.entries[i], nil
}

// Len returns the number of entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
