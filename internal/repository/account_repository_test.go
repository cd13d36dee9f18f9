package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
)

var inviteRowColumns = []string{"id", "school_id", "email", "role", "full_name", "grade_level", "student_number", "class_ids", "status", "invited_by", "last_sent_at", "created_at", "expires_at"}

func TestSignUpConsumesInviteAndEnrolls(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WithArgs("kid@school.test").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("DELETE FROM pending_invites").WithArgs("kid@school.test", now).
		WillReturnRows(sqlmock.NewRows(inviteRowColumns).
			AddRow("inv1", "s1", "kid@school.test", "STUDENT", "Kid", "10", "S-7", "{c1,c2}", "PENDING", "admin1", nil, now, now.Add(time.Hour)))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("INSERT INTO class_students").
		WithArgs("u1", now, "s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"class_id"}).AddRow("c1"))
	mock.ExpectExec("INSERT INTO submissions").WithArgs("u1", sqlmock.AnyArg(), now).WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	var seen *models.PendingInvite
	build := func(invite *models.PendingInvite) (*models.User, *models.School, error) {
		seen = invite
		return &models.User{ID: "u1", SchoolID: invite.SchoolID, Email: invite.Email, Role: invite.Role, FullName: invite.FullName, Active: true}, nil, nil
	}

	result, err := repo.SignUp(context.Background(), "kid@school.test", build, &models.AuditLog{Action: models.AuditActionSignUp, Resource: "user"})
	require.NoError(t, err)
	require.NotNil(t, seen)
	assert.Equal(t, pq.StringArray{"c1", "c2"}, seen.ClassIDs)
	assert.Equal(t, []string{"c1"}, result.Enrolled)
	assert.Equal(t, models.RoleStudent, result.User.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpWithAdminInviteJoinsAdminList(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)
	now := time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("DELETE FROM pending_invites").
		WillReturnRows(sqlmock.NewRows(inviteRowColumns).
			AddRow("inv2", "s1", "head@school.test", "ADMIN", "Head", nil, nil, "{}", "PENDING", "admin1", nil, now, now.Add(time.Hour)))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE schools SET admin_ids = array_append").WithArgs("s1", "u9", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	build := func(invite *models.PendingInvite) (*models.User, *models.School, error) {
		return &models.User{ID: "u9", SchoolID: invite.SchoolID, Email: invite.Email, Role: invite.Role, Active: true}, nil, nil
	}

	result, err := repo.SignUp(context.Background(), "head@school.test", build, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, result.User.Role)
	assert.Empty(t, result.Enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpWithoutInviteCreatesSchool(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("DELETE FROM pending_invites").WillReturnRows(sqlmock.NewRows(inviteRowColumns))
	mock.ExpectExec("INSERT INTO schools").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	build := func(invite *models.PendingInvite) (*models.User, *models.School, error) {
		assert.Nil(t, invite)
		return &models.User{ID: "u1", SchoolID: "s-new", Role: models.RoleAdmin},
			&models.School{ID: "s-new", Name: "New School", AdminIDs: pq.StringArray{"u1"}}, nil
	}

	result, err := repo.SignUp(context.Background(), "owner@school.test", build, nil)
	require.NoError(t, err)
	require.NotNil(t, result.School)
	assert.Nil(t, result.Invite)
	assert.Empty(t, result.Enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpRejectsTakenEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.SignUp(context.Background(), "taken@school.test", func(*models.PendingInvite) (*models.User, *models.School, error) {
		t.Fatal("builder must not run")
		return nil, nil, nil
	}, nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpRollsBackWhenUserInsertRaces(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("DELETE FROM pending_invites").WillReturnRows(sqlmock.NewRows(inviteRowColumns))
	mock.ExpectExec("INSERT INTO schools").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO users").WillReturnError(&pq.Error{Code: pqUniqueViolation})
	mock.ExpectRollback()

	_, err := repo.SignUp(context.Background(), "race@school.test", func(*models.PendingInvite) (*models.User, *models.School, error) {
		return &models.User{ID: "u2", SchoolID: "s2", Role: models.RoleAdmin}, &models.School{ID: "s2"}, nil
	}, nil)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignUpBuilderErrorRollsBack(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAccountRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT EXISTS").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectQuery("DELETE FROM pending_invites").WillReturnRows(sqlmock.NewRows(inviteRowColumns))
	mock.ExpectRollback()

	boom := errors.New("boom")
	_, err := repo.SignUp(context.Background(), "x@school.test", func(*models.PendingInvite) (*models.User, *models.School, error) {
		return nil, nil, boom
	}, nil)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
