// Package feed supplies recorded top-of-book snapshots to the replay
// runner.
package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/Rajchodisetti/structimb-edge/internal/market"
)

// Source yields snapshots in file order. Next returns io.EOF when
// exhausted.
type Source interface {
	Next(ctx context.Context) (market.BookSnapshot, error)
	Close() error
}

// JSONLSource reads one snapshot per line:
//
//	{"ts":"2024-03-04T15:00:00Z","bid":"5000.00","bid_size":12,"ask":"5000.25","ask_size":9,"stale":false}
//
// Prices may be JSON strings or numbers. Blank lines are skipped.
type JSONLSource struct {
	sc     *bufio.Scanner
	closer io.Closer
	line   int
}

func NewJSONLSource(r io.Reader) *JSONLSource {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	s := &JSONLSource{sc: sc}
	if c, ok := r.(io.Closer); ok {
		s.closer = c
	}
	return s
}

// OpenJSONL opens a snapshot file.
func OpenJSONL(path string) (*JSONLSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open feed: %w", err)
	}
	return NewJSONLSource(f), nil
}

func (s *JSONLSource) Next(ctx context.Context) (market.BookSnapshot, error) {
	for {
		if err := ctx.Err(); err != nil {
			return market.BookSnapshot{}, err
		}
		if !s.sc.Scan() {
			if err := s.sc.Err(); err != nil {
				return market.BookSnapshot{}, fmt.Errorf("feed line %d: %w", s.line+1, err)
			}
			return market.BookSnapshot{}, io.EOF
		}
		s.line++
		raw := bytes.TrimSpace(s.sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var snap market.BookSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return market.BookSnapshot{}, fmt.Errorf("feed line %d: %w", s.line, err)
		}
		snap.Timestamp = snap.Timestamp.UTC()
		return snap, nil
	}
}

func (s *JSONLSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// SliceSource replays an in-memory slice.
type SliceSource struct {
	snaps []market.BookSnapshot
	pos   int
}

func NewSliceSource(snaps []market.BookSnapshot) *SliceSource {
	return &SliceSource{snaps: snaps}
}

func (s *SliceSource) Next(ctx context.Context) (market.BookSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return market.BookSnapshot{}, err
	}
	if s.pos >= len(s.snaps) {
		return market.BookSnapshot{}, io.EOF
	}
	snap := s.snaps[s.pos]
	s.pos++
	return snap, nil
}

func (s *SliceSource) Close() error { return nil }
