package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
)

var classRowColumns = []string{"id", "school_id", "teacher_id", "year_batch_id", "name", "subject", "section", "color", "icon", "banner_url", "is_archived", "created_at", "updated_at", "teacher_name", "student_count"}

func TestListClassesForTeacher(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE c.teacher_id = $1 AND c.school_id = $2 AND c.is_archived = FALSE ORDER BY c.created_at DESC")).
		WithArgs("t1", "s1").
		WillReturnRows(sqlmock.NewRows(classRowColumns).
			AddRow("c1", "s1", "t1", nil, "Biology", "Science", "A", "#16a34a", "leaf", nil, false, now, now, "Ms Teacher", 12))

	classes, err := repo.List(context.Background(), models.ClassFilter{SchoolID: "s1", TeacherID: "t1"})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, 12, classes[0].StudentCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListClassesForStudentUsesMembership(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("JOIN class_students m ON m.class_id = c.id WHERE m.student_id = $1 AND c.school_id = $2")).
		WithArgs("st1", "s1").
		WillReturnRows(sqlmock.NewRows(classRowColumns))

	classes, err := repo.List(context.Background(), models.ClassFilter{SchoolID: "s1", StudentID: "st1", IncludeArchived: true})
	require.NoError(t, err)
	assert.Empty(t, classes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddStudentsSkipsExistingAndBackfills(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)
	now := time.Date(2024, 10, 1, 0, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO class_students").
		WithArgs("c1", now, "s1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"student_id"}).AddRow("st2"))
	mock.ExpectExec("INSERT INTO submissions").WithArgs("c1", sqlmock.AnyArg(), now).WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	added, err := repo.AddStudents(context.Background(), "s1", "c1", []string{"st1", "st2"})
	require.NoError(t, err)
	assert.Equal(t, []string{"st2"}, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddStudentsAllPresent(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO class_students").WillReturnRows(sqlmock.NewRows([]string{"student_id"}))
	mock.ExpectCommit()

	added, err := repo.AddStudents(context.Background(), "s1", "c1", []string{"st1"})
	require.NoError(t, err)
	assert.Empty(t, added)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveStudentNotMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM class_students").WithArgs("c1", "st9").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.RemoveStudent(context.Background(), "c1", "st9")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteClassRemovesFileTree(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT TRUE FROM classes").WithArgs("c1", "s1").
		WillReturnRows(sqlmock.NewRows([]string{"bool"}).AddRow(true))
	mock.ExpectQuery("DELETE FROM class_files WHERE class_id = \\$1 RETURNING storage_key").WithArgs("c1").
		WillReturnRows(sqlmock.NewRows([]string{"storage_key"}).AddRow("classes/c1/Week 1/1_notes.pdf").AddRow("classes/c1/2_map.png"))
	mock.ExpectExec("DELETE FROM class_folders WHERE class_id").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM classes WHERE id").WithArgs("c1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	keys, err := repo.Delete(context.Background(), "s1", "c1")
	require.NoError(t, err)
	assert.Equal(t, []string{"classes/c1/Week 1/1_notes.pdf", "classes/c1/2_map.png"}, keys)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteClassOfOtherSchool(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewClassRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT TRUE FROM classes").WithArgs("c1", "s2").WillReturnRows(sqlmock.NewRows([]string{"bool"}))
	mock.ExpectRollback()

	_, err := repo.Delete(context.Background(), "s2", "c1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
