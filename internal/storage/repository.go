package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"templine/internal/telemetry"
)

// Jak dlouho drží Valkey poslední hodnotu. Mrtvé uzly z cache samy zmizí.
const lastValueTTL = 24 * time.Hour

// Repository zapouzdřuje práci s databázemi.
// Zbytek aplikace neví, jak se píše SQL, jen volá metody repozitáře.
//
// Tabulka (schéma spravuje nasazení, ne tato služba):
//
//	CREATE TABLE ds18b20 (
//	    temperature DOUBLE PRECISION NOT NULL,
//	    timestamp   TIMESTAMPTZ      NOT NULL,
//	    mac         TEXT             NOT NULL,
//	    node_id     TEXT             NOT NULL
//	);
type Repository struct {
	pgPool *pgxpool.Pool // Pool spojení do TimescaleDB
	redis  *redis.Client // Klient pro Valkey, nil = hot cache vypnutá
}

// NewRepository vytvoří a ověří připojení k oběma databázím.
// Prázdná valkeyAddr znamená, že běžíme jen nad Postgresem.
func NewRepository(ctx context.Context, postgresURL, valkeyAddr string) (*Repository, error) {
	// 1. Připojení k Postgres
	pool, err := pgxpool.New(ctx, postgresURL)
	if err != nil {
		return nil, fmt.Errorf("chyba konfigurace DB: %w", err)
	}
	// Ověření spojení (Ping)
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("DB není dostupná: %w", err)
	}

	repo := &Repository{pgPool: pool}

	// 2. Připojení k Valkey (Redis)
	if valkeyAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: valkeyAddr,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			pool.Close()
			rdb.Close()
			return nil, fmt.Errorf("Valkey není dostupný: %w", err)
		}
		repo.redis = rdb
	}

	return repo, nil
}

// Close uzavře spojení při ukončení aplikace.
func (r *Repository) Close() {
	r.pgPool.Close()
	if r.redis != nil {
		r.redis.Close()
	}
}

func lastValueKey(nodeID string) string {
	return fmt.Sprintf("sensor:last:%s", nodeID)
}

// Save uloží měření do obou úložišť (Cold Path & Hot Path).
func (r *Repository) Save(ctx context.Context, reading telemetry.Reading) error {
	// A. Uložení do TimescaleDB (historie, "Source of Truth")
	query := `INSERT INTO ds18b20 (temperature, timestamp, mac, node_id) VALUES ($1, $2, $3, $4)`

	_, err := r.pgPool.Exec(ctx, query, reading.Value, reading.ObservedAt, reading.DeviceID, reading.NodeID)
	if err != nil {
		return &PersistenceError{Op: "insert", Err: err}
	}

	// B. Uložení do Valkey (aktuální stav). Přepisujeme stále dokola poslední hodnotu.
	if r.redis == nil {
		return nil
	}
	payload, err := json.Marshal(reading)
	if err != nil {
		return &PersistenceError{Op: "cache", Err: err}
	}
	if err := r.redis.Set(ctx, lastValueKey(reading.NodeID), payload, lastValueTTL).Err(); err != nil {
		// Data v PG máme, jen o chybě cache musíme vědět.
		return &PersistenceError{Op: "cache", Err: err}
	}
	return nil
}

// QueryLatest vrací poslední měření. Pro konkrétní uzel zkusí nejdřív Valkey.
func (r *Repository) QueryLatest(ctx context.Context, nodeID string) (telemetry.Reading, error) {
	if nodeID != "" && r.redis != nil {
		raw, err := r.redis.Get(ctx, lastValueKey(nodeID)).Bytes()
		if err == nil {
			var reading telemetry.Reading
			if jsonErr := json.Unmarshal(raw, &reading); jsonErr == nil {
				return reading, nil
			}
		}
		// redis.Nil nebo výpadek cache -> spadneme na SQL.
	}

	query := `
		SELECT temperature, timestamp, mac, node_id
		FROM ds18b20
		ORDER BY timestamp DESC
		LIMIT 1
	`
	args := []any{}
	if nodeID != "" {
		query = `
			SELECT temperature, timestamp, mac, node_id
			FROM ds18b20
			WHERE node_id = $1
			ORDER BY timestamp DESC
			LIMIT 1
		`
		args = append(args, nodeID)
	}

	var reading telemetry.Reading
	err := r.pgPool.QueryRow(ctx, query, args...).Scan(&reading.Value, &reading.ObservedAt, &reading.DeviceID, &reading.NodeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return telemetry.Reading{}, ErrNotFound
	}
	if err != nil {
		return telemetry.Reading{}, &PersistenceError{Op: "query", Err: err}
	}
	reading.ObservedAt = reading.ObservedAt.UTC()
	return reading, nil
}

// QueryRecent vrací posledních limit měření (nejnovější první).
func (r *Repository) QueryRecent(ctx context.Context, limit int) ([]telemetry.Reading, error) {
	if limit <= 0 {
		return []telemetry.Reading{}, nil
	}

	query := `
		SELECT temperature, timestamp, mac, node_id
		FROM ds18b20
		ORDER BY timestamp DESC
		LIMIT $1
	`

	rows, err := r.pgPool.Query(ctx, query, limit)
	if err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	defer rows.Close() // Uvolnění connection zpět do poolu

	readings := make([]telemetry.Reading, 0, limit)
	for rows.Next() {
		var rd telemetry.Reading
		if err := rows.Scan(&rd.Value, &rd.ObservedAt, &rd.DeviceID, &rd.NodeID); err != nil {
			return nil, &PersistenceError{Op: "query", Err: err}
		}
		rd.ObservedAt = rd.ObservedAt.UTC()
		readings = append(readings, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "query", Err: err}
	}
	return readings, nil
}
