package store

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PG backs all four stores with one Postgres pool. Domain records are kept
// as jsonb rows keyed by their natural identifier, which keeps the schema
// stable while the agronomy data evolves.
type PG struct {
	Pool *pgxpool.Pool
	log  zerolog.Logger
}

// Connect opens the pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string, log zerolog.Logger) (*PG, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}

	cfg.MaxConns = 10
	cfg.MinConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	log.Info().
		Str("url", maskDSN(databaseURL)).
		Int32("max_conns", cfg.MaxConns).
		Msg("knowledge database connected")

	return &PG{Pool: pool, log: log}, nil
}

func maskDSN(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil {
		return "***"
	}
	if u.User != nil {
		if _, hasPass := u.User.Password(); hasPass {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}

// HealthCheck pings the pool with a short deadline.
func (pg *PG) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return pg.Pool.Ping(ctx)
}

// Close releases the pool.
func (pg *PG) Close() {
	pg.log.Info().Msg("closing knowledge database pool")
	pg.Pool.Close()
}

// Stores returns the interface bundle backed by this pool.
func (pg *PG) Stores() Stores {
	return Stores{
		Profiles: (*pgProfiles)(pg),
		Soil:     (*pgSoil)(pg),
		Pests:    (*pgPests)(pg),
		Schemes:  (*pgSchemes)(pg),
	}
}

// Migrate creates the knowledge tables if they do not exist.
func (pg *PG) Migrate(ctx context.Context) error {
	_, err := pg.Pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS farmer_profiles (
			phone      text PRIMARY KEY,
			profile    jsonb NOT NULL,
			updated_at timestamptz NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS soil_records (
			soil_type text PRIMARY KEY,
			record    jsonb NOT NULL
		);
		CREATE TABLE IF NOT EXISTS pest_records (
			name   text PRIMARY KEY,
			record jsonb NOT NULL
		);
		CREATE TABLE IF NOT EXISTS schemes (
			id     text PRIMARY KEY,
			record jsonb NOT NULL
		);
	`)
	return err
}

type pgProfiles PG

func (s *pgProfiles) Get(ctx context.Context, phone string) (*FarmerProfile, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT profile FROM farmer_profiles WHERE phone = $1`, phone).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", phone, err)
	}
	var p FarmerProfile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", phone, err)
	}
	p.Phone = phone
	return &p, nil
}

func (s *pgProfiles) Put(ctx context.Context, p *FarmerProfile) error {
	if p.Phone == "" {
		return fmt.Errorf("profile has no phone key")
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.Pool.Exec(ctx, `
		INSERT INTO farmer_profiles (phone, profile, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (phone) DO UPDATE SET profile = $2, updated_at = now()
	`, p.Phone, raw)
	return err
}

type pgSoil PG

func (s *pgSoil) Get(ctx context.Context, soilType string) (*SoilRecord, error) {
	var raw []byte
	err := s.Pool.QueryRow(ctx,
		`SELECT record FROM soil_records WHERE soil_type = $1`, soilType).Scan(&raw)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get soil %s: %w", soilType, err)
	}
	var rec SoilRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode soil %s: %w", soilType, err)
	}
	return &rec, nil
}

type pgPests PG

func (s *pgPests) ByNames(ctx context.Context, names []string, limit int) ([]PestRecord, error) {
	if len(names) == 0 {
		return nil, nil
	}

	// Identified names arrive lowercased; match case-insensitively on a
	// substring, same contract as the memory store.
	patterns := make([]string, 0, len(names))
	for _, name := range names {
		if needle := strings.ToLower(strings.TrimSpace(name)); needle != "" {
			patterns = append(patterns, "%"+needle+"%")
		}
	}
	if len(patterns) == 0 {
		return nil, nil
	}

	rows, err := s.Pool.Query(ctx,
		`SELECT record FROM pest_records WHERE lower(name) LIKE ANY($1)`, patterns)
	if err != nil {
		return nil, fmt.Errorf("query pests: %w", err)
	}
	byName, err := scanPests(rows)
	if err != nil {
		return nil, err
	}
	return matchPestNames(byName, names, limit), nil
}

// matchPestNames picks records for the requested names, case-insensitive
// substring match, preserving request order (which carries identification
// confidence).
func matchPestNames(byName map[string]PestRecord, names []string, limit int) []PestRecord {
	recNames := make([]string, 0, len(byName))
	for n := range byName {
		recNames = append(recNames, n)
	}
	sort.Strings(recNames)

	var out []PestRecord
	for _, name := range names {
		needle := strings.ToLower(strings.TrimSpace(name))
		if needle == "" {
			continue
		}
		for _, rn := range recNames {
			if strings.Contains(strings.ToLower(rn), needle) {
				out = append(out, byName[rn])
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func (s *pgPests) All(ctx context.Context) ([]PestRecord, error) {
	rows, err := s.Pool.Query(ctx, `SELECT record FROM pest_records ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query pests: %w", err)
	}
	byName, err := scanPests(rows)
	if err != nil {
		return nil, err
	}
	out := make([]PestRecord, 0, len(byName))
	for _, rec := range byName {
		out = append(out, rec)
	}
	return out, nil
}

func scanPests(rows pgx.Rows) (map[string]PestRecord, error) {
	defer rows.Close()
	out := make(map[string]PestRecord)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var rec PestRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode pest record: %w", err)
		}
		out[rec.Name] = rec
	}
	return out, rows.Err()
}

type pgSchemes PG

func (s *pgSchemes) ByNames(ctx context.Context, names []string) ([]Scheme, error) {
	all, err := s.All(ctx)
	if err != nil {
		return nil, err
	}
	return filterSchemesByNames(all, names), nil
}

func (s *pgSchemes) All(ctx context.Context) ([]Scheme, error) {
	rows, err := s.Pool.Query(ctx, `SELECT record FROM schemes ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query schemes: %w", err)
	}
	defer rows.Close()

	var out []Scheme
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var sc Scheme
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, fmt.Errorf("decode scheme record: %w", err)
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}
