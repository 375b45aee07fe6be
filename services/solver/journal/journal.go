// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal persists the execute/undo events of solver runs in
// BadgerDB so a search can be inspected after the fact.
//
// Key layout:
//
//	run:<run id>                       → JSON RunInfo
//	event:<run id>:<8-byte BE seq>     → [4-byte CRC32][JSON Record]
//
// Big-endian sequence numbers keep a run's events in append order under
// prefix iteration.
package journal

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/AleutianSolver/services/solver/decision"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Package-level error definitions.
var (
	// ErrCorrupted is returned when a stored event fails its checksum.
	ErrCorrupted = errors.New("journal entry corrupted")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("journal closed")

	// ErrUnknownRun is returned for a run id with no RunInfo.
	ErrUnknownRun = errors.New("unknown run")
)

const (
	runPrefix   = "run:"
	eventPrefix = "event:"
)

// RunInfo describes one solver run.
type RunInfo struct {
	ID        string    `json:"id"`
	Scenario  string    `json:"scenario"`
	StartedAt time.Time `json:"started_at"`
}

// Record is one journaled driver event.
type Record struct {
	Seq      uint64             `json:"seq"`
	Step     int                `json:"step"`
	Level    int                `json:"level"`
	Kind     decision.EventKind `json:"kind"`
	PointID  string             `json:"point_id"`
	Decision string             `json:"decision"`
	At       time.Time          `json:"at"`
}

// Journal stores runs and their events.
//
// Thread Safety: Safe for concurrent use.
type Journal struct {
	db     *badger.DB
	logger *slog.Logger
	tracer trace.Tracer
	closed atomic.Bool
}

// Open opens the journal described by cfg.
//
// Outputs:
//   - *Journal: Caller must Close it.
//   - error: Invalid config or BadgerDB failure.
func Open(cfg Config) (*Journal, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	j := &Journal{
		db:     db,
		logger: logger.With(slog.String("component", "journal")),
		tracer: otel.Tracer("solver.journal"),
	}
	j.logger.Debug("journal opened",
		slog.String("path", cfg.Path),
		slog.Bool("in_memory", cfg.InMemory),
	)
	return j, nil
}

// Close closes the database. Further calls return ErrClosed.
func (j *Journal) Close() error {
	if j.closed.Swap(true) {
		return ErrClosed
	}
	return j.db.Close()
}

// StartRun records a new run and returns a handle to append its events.
func (j *Journal) StartRun(ctx context.Context, scenario string) (*Run, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info := RunInfo{ID: uuid.NewString(), Scenario: scenario, StartedAt: time.Now().UTC()}
	data, err := json.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode run info: %w", err)
	}
	if err := j.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(runPrefix+info.ID), data)
	}); err != nil {
		return nil, fmt.Errorf("store run %s: %w", info.ID, err)
	}

	j.logger.Info("run started", slog.String("run_id", info.ID), slog.String("scenario", scenario))
	return &Run{journal: j, info: info}, nil
}

// Runs lists every recorded run in key order.
func (j *Journal) Runs(ctx context.Context) ([]RunInfo, error) {
	if j.closed.Load() {
		return nil, ErrClosed
	}

	var runs []RunInfo
	prefix := []byte(runPrefix)
	err := j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var info RunInfo
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &info)
			}); err != nil {
				return fmt.Errorf("decode run %s: %w", it.Item().Key(), err)
			}
			runs = append(runs, info)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return runs, nil
}

// Lookup returns the metadata of a run.
func (j *Journal) Lookup(ctx context.Context, runID string) (RunInfo, error) {
	if j.closed.Load() {
		return RunInfo{}, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return RunInfo{}, err
	}

	var info RunInfo
	err := j.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(runPrefix + runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &info)
		})
	})
	return info, err
}

// Events replays a run's events in append order.
//
// Outputs:
//   - []Record: The events. Empty for a run without events.
//   - error: ErrCorrupted on a checksum mismatch, ErrUnknownRun, ErrClosed.
func (j *Journal) Events(ctx context.Context, runID string) (records []Record, err error) {
	ctx, span := j.tracer.Start(ctx, "journal.Events",
		trace.WithAttributes(attribute.String("journal.run_id", runID)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if _, err := j.Lookup(ctx, runID); err != nil {
		return nil, err
	}

	prefix := eventKeyPrefix(runID)
	err = j.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			seq := binary.BigEndian.Uint64(item.Key()[len(prefix):])
			if err := item.Value(func(val []byte) error {
				rec, err := decodeRecord(val)
				if err != nil {
					return fmt.Errorf("run %s seq %d: %w", runID, seq, err)
				}
				records = append(records, rec)
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("journal.events", len(records)))
	return records, nil
}

func (j *Journal) append(ctx context.Context, runID string, rec Record) error {
	if j.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	return j.db.Update(func(txn *badger.Txn) error {
		return txn.Set(eventKey(runID, rec.Seq), data)
	})
}

// -----------------------------------------------------------------------------
// Run
// -----------------------------------------------------------------------------

// Run appends the events of one solver run. It is a decision.Observer.
//
// Thread Safety: Safe for concurrent use; sequence numbers are atomic.
type Run struct {
	journal *Journal
	info    RunInfo
	seq     atomic.Uint64
}

// ID returns the run id.
func (r *Run) ID() string { return r.info.ID }

// Info returns the run's metadata.
func (r *Run) Info() RunInfo { return r.info }

// Observe journals a driver event.
func (r *Run) Observe(ctx context.Context, ev decision.Event) error {
	rec := Record{
		Seq:      r.seq.Add(1),
		Step:     ev.Step,
		Level:    ev.Level,
		Kind:     ev.Kind,
		PointID:  ev.PointID,
		Decision: ev.Decision,
		At:       time.Now().UTC(),
	}
	if err := r.journal.append(ctx, r.info.ID, rec); err != nil {
		return fmt.Errorf("append event %d of run %s: %w", rec.Seq, r.info.ID, err)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Encoding
// -----------------------------------------------------------------------------

func eventKeyPrefix(runID string) []byte {
	return []byte(eventPrefix + runID + ":")
}

func eventKey(runID string, seq uint64) []byte {
	prefix := eventKeyPrefix(runID)
	key := make([]byte, len(prefix)+8)
	copy(key, prefix)
	binary.BigEndian.PutUint64(key[len(prefix):], seq)
	return key
}

// encodeRecord produces [4-byte CRC32][JSON].
func encodeRecord(rec Record) ([]byte, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], crc32.ChecksumIEEE(payload))
	copy(out[4:], payload)
	return out, nil
}

func decodeRecord(data []byte) (Record, error) {
	if len(data) < 5 {
		return Record{}, fmt.Errorf("%w: entry too short", ErrCorrupted)
	}
	stored := binary.BigEndian.Uint32(data[:4])
	payload := data[4:]
	if computed := crc32.ChecksumIEEE(payload); stored != computed {
		return Record{}, fmt.Errorf("%w: stored=%08x computed=%08x", ErrCorrupted, stored, computed)
	}
	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

// Compile-time check.
var _ decision.Observer = (*Run)(nil)
