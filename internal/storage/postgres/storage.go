package postgres

import (
	"database/sql"
)

type Storage struct {
	db *sql.DB
	*PrincipalRepository
	*RecordRepository
}

func NewStorage(db *sql.DB) *Storage {
	return &Storage{
		db:                  db,
		PrincipalRepository: NewPrincipalRepository(db),
		RecordRepository:    NewRecordRepository(db),
	}
}
