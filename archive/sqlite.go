// gdcs: a tool for finding conserved probe sequences in rMLST alleles.
// Copyright (c) 2020 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/gdcs/blob/master/LICENSE.txt>.

package archive

import (
	"bufio"
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"github.com/exascience/gdcs/fasta"
	"github.com/exascience/gdcs/internal"
)

// SQLiteIndex is an archive index stored in a SQLite database.
type SQLiteIndex struct {
	db     *sql.DB
	lookup *sql.Stmt
}

const createSequencesTable = `CREATE TABLE IF NOT EXISTS sequences (
	id TEXT PRIMARY KEY,
	seq BLOB NOT NULL
)`

// CreateSQLiteIndex stores all records of the given FASTA archive in a
// fresh SQLite database at indexPath.
func CreateSQLiteIndex(fastaPath, indexPath string) (err error) {
	f, err := os.Open(fastaPath)
	if err != nil {
		return err
	}
	defer internal.Close(f)
	if err := os.Remove(indexPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer func() {
		if nerr := db.Close(); err == nil {
			err = nerr
		}
	}()
	if _, err := db.Exec(createSequencesTable); err != nil {
		return fmt.Errorf("create sequences table: %w", err)
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	insert, err := tx.Prepare(`INSERT INTO sequences(id, seq) VALUES(?, ?)`)
	if err != nil {
		return err
	}
	defer func() {
		_ = insert.Close()
	}()
	count := 0
	err = fasta.Read(bufio.NewReader(f), true, func(record fasta.Record) error {
		if _, err := insert.Exec(record.ID, record.Seq); err != nil {
			return fmt.Errorf("insert %v: %w", record.ID, err)
		}
		count++
		return nil
	})
	if err != nil {
		return fmt.Errorf("%v, while indexing fasta file %v", err, fastaPath)
	}
	if count == 0 {
		err = fmt.Errorf("empty fasta file %v", fastaPath)
		return err
	}
	return tx.Commit()
}

// OpenSQLiteIndex opens an existing SQLite archive index.
func OpenSQLiteIndex(indexPath string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", indexPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	lookup, err := db.Prepare(`SELECT seq FROM sequences WHERE id = ?`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%v is not an archive index: %w", indexPath, err)
	}
	return &SQLiteIndex{db: db, lookup: lookup}, nil
}

// Seq fetches the sequence for the given identifier.
func (index *SQLiteIndex) Seq(id string) (seq []byte, err error) {
	err = index.lookup.QueryRow(id).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, id)
	}
	return seq, err
}

// Len returns the number of records in the index.
func (index *SQLiteIndex) Len() (n int, err error) {
	err = index.db.QueryRow(`SELECT COUNT(*) FROM sequences`).Scan(&n)
	return n, err
}

// Close closes the underlying database.
func (index *SQLiteIndex) Close() error {
	err := index.lookup.Close()
	if nerr := index.db.Close(); err == nil {
		err = nerr
	}
	return err
}
