package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrDuplicate reports a unique constraint violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrEmailTaken reports that a profile already uses the e-mail.
	ErrEmailTaken = errors.New("email already registered")
	// ErrNotEmpty reports a folder that still holds files or subfolders.
	ErrNotEmpty = errors.New("folder not empty")
	// ErrLastAdmin reports an attempt to remove a school's only admin.
	ErrLastAdmin = errors.New("school must keep at least one admin")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqForeignKeyViolation
}
