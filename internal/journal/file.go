package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Rajchodisetti/structimb-edge/internal/position"
)

const entryTrade = "trade"

// Entry is one line of the journal file.
type Entry struct {
	Type  string          `json:"type"`
	RunID string          `json:"run_id,omitempty"`
	Data  json.RawMessage `json:"data"`
	Event time.Time       `json:"event"`
}

// FileSink appends trade records to a JSON-lines file.
type FileSink struct {
	path  string
	runID string
}

// NewFileSink creates the parent directory of path. runID tags every line.
func NewFileSink(path, runID string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("journal dir: %w", err)
	}
	return &FileSink{path: path, runID: runID}, nil
}

func (s *FileSink) Path() string { return s.path }

// Append writes rec as one line, stamped with its exit time.
func (s *FileSink) Append(rec position.TradeRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.appendEntry(Entry{Type: entryTrade, RunID: s.runID, Data: data, Event: rec.ExitTime})
}

func (s *FileSink) appendEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.Write(append(line, '\n'))
	return err
}

// Load reads every trade from a journal file. When runID is non-empty only
// that run's trades are returned. Malformed lines are skipped.
func Load(path, runID string) ([]position.TradeRecord, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []position.TradeRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil || e.Type != entryTrade {
			continue
		}
		if runID != "" && e.RunID != runID {
			continue
		}
		var rec position.TradeRecord
		if err := json.Unmarshal(e.Data, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, sc.Err()
}
