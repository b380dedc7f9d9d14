package reflection

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ProcessedLog is the append-only ledger of fill ids that have been consumed.
// Lines are never rewritten or removed.
type ProcessedLog struct {
	path string

	mu     sync.Mutex
	ids    map[string]struct{}
	loaded bool
}

func NewProcessedLog(path string) *ProcessedLog {
	return &ProcessedLog{path: path, ids: make(map[string]struct{})}
}

func (p *ProcessedLog) Path() string { return p.path }

// Load reads the ledger from disk. A missing file is an empty ledger.
func (p *ProcessedLog) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loadLocked()
}

func (p *ProcessedLog) loadLocked() error {
	f, err := os.Open(p.path)
	if errors.Is(err, os.ErrNotExist) {
		p.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("open processed fills log: %w", err)
	}
	defer f.Close()

	ids := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if id := strings.TrimSpace(sc.Text()); id != "" {
			ids[id] = struct{}{}
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read processed fills log: %w", err)
	}
	p.ids = ids
	p.loaded = true
	return nil
}

func (p *ProcessedLog) Contains(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.ids[strings.TrimSpace(id)]
	return ok
}

func (p *ProcessedLog) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

// Append records id. Appending an id that is already present writes nothing.
func (p *ProcessedLog) Append(id string) error {
	id = strings.TrimSpace(id)
	if id == "" || strings.ContainsAny(id, "\r\n") {
		return fmt.Errorf("invalid fill id %q", id)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		if err := p.loadLocked(); err != nil {
			return err
		}
	}
	if _, ok := p.ids[id]; ok {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("create processed fills dir: %w", err)
	}
	f, err := os.OpenFile(p.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open processed fills log: %w", err)
	}
	line := id + "\n"
	terminated, err := endsWithNewline(f)
	if err != nil {
		f.Close()
		return err
	}
	if !terminated {
		line = "\n" + line
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return fmt.Errorf("append processed fill: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync processed fills log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close processed fills log: %w", err)
	}
	p.ids[id] = struct{}{}
	return nil
}

// endsWithNewline reports whether f is empty or its last byte is a line
// terminator, so an unterminated trailing id is never glued to the next one.
func endsWithNewline(f *os.File) (bool, error) {
	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("stat processed fills log: %w", err)
	}
	if info.Size() == 0 {
		return true, nil
	}
	var last [1]byte
	if _, err := f.ReadAt(last[:], info.Size()-1); err != nil {
		return false, fmt.Errorf("read processed fills log tail: %w", err)
	}
	return last[0] == '\n', nil
}
