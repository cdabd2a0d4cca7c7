// SPDX-FileCopyrightText: © 2023 Siemens AG
// SPDX-License-Identifier: MIT

// Package db provides read-only access to the relational store that answers
// the friend-recommendation engine's (C7) static bootstrap queries: direct
// friends, common friends, and shared employers/schools. The store is opened
// once per worker at startup and never written to.
package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Store wraps a read-only connection to the relational store.
type Store struct {
	db *sql.DB
}

// Open connects to the relational store at dsn. Bootstrap failure here is
// fatal at startup per the pipeline's error-handling design: there is no
// partial service.
func Open(dsn string) (*Store, error) {
	d, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db: open: %w", err)
	}
	if err := d.Ping(); err != nil {
		d.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return &Store{db: d}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Friends returns the direct friends of personId.
func (s *Store) Friends(ctx context.Context, personId uint64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT person_id2 FROM person_knows_person WHERE person_id1 = $1`, personId)
	if err != nil {
		return nil, fmt.Errorf("db: friends: %w", err)
	}
	defer rows.Close()
	return scanIds(rows)
}

// Forums returns the forums personId is a member of.
func (s *Store) Forums(ctx context.Context, personId uint64) ([]uint64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT forum_id FROM forum_hasMember_person WHERE person_id = $1`, personId)
	if err != nil {
		return nil, fmt.Errorf("db: forums: %w", err)
	}
	defer rows.Close()
	return scanIds(rows)
}

// CommonFriends returns, for every candidate other than personId who shares
// at least one friend with personId, the number of friends in common. The
// result may include personId's own direct friends.
func (s *Store) CommonFriends(ctx context.Context, personId uint64) (map[uint64]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ff.person_id3, COUNT(*) AS cnt
		FROM person_knows_person AS f,
			(SELECT person_id1 AS person_id2, person_id2 AS person_id3
			 FROM person_knows_person
			 WHERE person_id1 != $1 AND person_id2 != $1) ff
		WHERE f.person_id1 = $1 AND f.person_id2 = ff.person_id2
		GROUP BY ff.person_id3
		ORDER BY cnt DESC`, personId)
	if err != nil {
		return nil, fmt.Errorf("db: common_friends: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

// WorkAt returns, for every candidate who shares an employer with personId,
// the number of organisations in common.
func (s *Store) WorkAt(ctx context.Context, personId uint64) (map[uint64]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t2.person_id, COUNT(*) AS cnt
		FROM person_workAt_organisation AS t1, person_workAt_organisation AS t2
		WHERE t2.organisation_id = t1.organisation_id
		AND t1.person_id = $1
		AND t2.person_id <> $1
		GROUP BY t2.person_id`, personId)
	if err != nil {
		return nil, fmt.Errorf("db: work_at: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

// StudyAt returns, for every candidate who shares a school with personId,
// the number of organisations in common.
func (s *Store) StudyAt(ctx context.Context, personId uint64) (map[uint64]uint64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t2.person_id, COUNT(*) AS cnt
		FROM person_studyAt_organisation AS t1, person_studyAt_organisation AS t2
		WHERE t2.organisation_id = t1.organisation_id
		AND t1.person_id = $1
		AND t2.person_id <> $1
		GROUP BY t2.person_id`, personId)
	if err != nil {
		return nil, fmt.Errorf("db: study_at: %w", err)
	}
	defer rows.Close()
	return scanCounts(rows)
}

func scanIds(rows *sql.Rows) ([]uint64, error) {
	var ids []uint64
	for rows.Next() {
		var id uint64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanCounts(rows *sql.Rows) (map[uint64]uint64, error) {
	out := make(map[uint64]uint64)
	for rows.Next() {
		var id, count uint64
		if err := rows.Scan(&id, &count); err != nil {
			return nil, err
		}
		out[id] = count
	}
	return out, rows.Err()
}
