package postgres

import "errors"

var (
	ErrFailedToParseConfig = errors.New("postgres: failed to parse connection configuration")
	ErrConnectionFailed    = errors.New("postgres: failed to open connection")
	ErrSetDialect          = errors.New("postgres migrator: failed to set dialect")
	ErrApplyMigrations     = errors.New("postgres migrator: failed to apply migrations")
	ErrAccountNotFound     = errors.New("postgres: account not found")
	ErrContactNotFound     = errors.New("postgres: contact not found")
)
