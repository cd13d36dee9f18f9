package repository

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var schoolRowColumns = []string{"id", "name", "accent_color", "logo_url", "contact_email", "contact_phone", "address", "website", "admin_ids", "created_at", "updated_at"}

func TestRemoveAdminKeepsLastAdmin(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FROM schools WHERE id = \\$1 FOR UPDATE").WithArgs("s1").
		WillReturnRows(sqlmock.NewRows(schoolRowColumns).AddRow("s1", "School", "#000000", nil, nil, nil, nil, nil, "{u1}", now, now))
	mock.ExpectRollback()

	err := repo.RemoveAdmin(context.Background(), "s1", "u1")
	assert.ErrorIs(t, err, ErrLastAdmin)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveAdminDemotes(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WillReturnRows(sqlmock.NewRows(schoolRowColumns).AddRow("s1", "School", "#000000", nil, nil, nil, nil, nil, "{u1,u2}", now, now))
	mock.ExpectExec("array_remove").WithArgs("s1", "u2", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("SET role = 'TEACHER'").WithArgs("u2", "s1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.RemoveAdmin(context.Background(), "s1", "u2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddAdminRejectsStudents(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSchoolRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("SET role = 'ADMIN'").WithArgs("st1", "s1", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AddAdmin(context.Background(), "s1", "st1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
