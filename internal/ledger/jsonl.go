package ledger

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"time"

	"doctag/internal/util"
)

// Log is an append-only JSONL file of T records. Each Append is a single
// O_APPEND write of one complete line.
type Log[T any] struct {
	path string
	log  *slog.Logger
}

func NewLog[T any](path string, l *slog.Logger) *Log[T] {
	if l == nil {
		l = slog.Default()
	}
	return &Log[T]{path: path, log: l}
}

func (l *Log[T]) Path() string { return l.path }

func (l *Log[T]) Append(rec T) error {
	if err := util.AppendJSONLine(l.path, rec); err != nil {
		return fmt.Errorf("append %s: %w", l.path, err)
	}
	return nil
}

// Scan returns a lazy iterator over the records in file order. Every range
// reopens the file, so the iterator can be restarted. Lines that do not
// decode are logged and skipped. A missing file yields nothing. On I/O
// failure or cancellation the iterator yields a final error.
func (l *Log[T]) Scan(ctx context.Context) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		f, err := os.Open(l.path)
		if errors.Is(err, os.ErrNotExist) {
			return
		}
		if err != nil {
			yield(zero, fmt.Errorf("open %s: %w", l.path, err))
			return
		}
		defer f.Close()

		r := bufio.NewReaderSize(f, 64*1024)
		lineNo := 0
		for {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			line, readErr := r.ReadBytes('\n')
			if len(line) > 0 {
				lineNo++
				line = bytes.TrimSpace(line)
				if len(line) > 0 {
					var rec T
					if err := json.Unmarshal(line, &rec); err != nil {
						l.log.Warn("skipping unparsable ledger line", "path", l.path, "line", lineNo, "err", err)
					} else if !yield(rec, nil) {
						return
					}
				}
			}
			if readErr == io.EOF {
				return
			}
			if readErr != nil {
				yield(zero, fmt.Errorf("read %s: %w", l.path, readErr))
				return
			}
		}
	}
}

type timestamped interface {
	At() time.Time
}

// Since filters seq to records stamped at or after cutoff. A zero cutoff
// keeps everything. Errors pass through.
func Since[T timestamped](seq iter.Seq2[T, error], cutoff time.Time) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for rec, err := range seq {
			if err == nil && !cutoff.IsZero() && rec.At().Before(cutoff) {
				continue
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}

// Collect drains seq, stopping at the first error.
func Collect[T any](seq iter.Seq2[T, error]) ([]T, error) {
	var out []T
	for rec, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// WindowStart returns the cutoff for a lookback of days ending at now. A
// non-positive window means no cutoff.
func WindowStart(now time.Time, days int) time.Time {
	if days <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -days)
}
