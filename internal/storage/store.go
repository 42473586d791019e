// Package storage je perzistentní vrstva: historie měření v Postgres/TimescaleDB,
// poslední hodnota uzlu v Valkey (Redis) a asynchronní zapisovač pro ingest.
package storage

import (
	"context"
	"errors"
	"fmt"

	"templine/internal/telemetry"
)

// ErrNotFound vrací čtecí metody, pokud v úložišti zatím nejsou žádná data.
var ErrNotFound = errors.New("no readings stored")

// PersistenceError obaluje selhání zápisu/čtení úložiště.
type PersistenceError struct {
	Op  string // insert, cache, query
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("storage %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Saver uloží jedno měření.
type Saver interface {
	Save(ctx context.Context, reading telemetry.Reading) error
}

// Querier jsou čtecí cesty pro API.
type Querier interface {
	// QueryLatest vrací nejnovější měření uzlu nodeID, nebo libovolného uzlu pro "".
	QueryLatest(ctx context.Context, nodeID string) (telemetry.Reading, error)

	// QueryRecent vrací posledních limit měření, nejnovější první.
	QueryRecent(ctx context.Context, limit int) ([]telemetry.Reading, error)
}

// Store je úplné úložiště (Repository i MemoryStore).
type Store interface {
	Saver
	Querier
}
