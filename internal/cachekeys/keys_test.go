package cachekeys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeysAreScopedByForeignID(t *testing.T) {
	assert.Equal(t, "users:s1:STUDENT:1:20", Users("s1", "STUDENT", 1, 20))
	assert.Equal(t, "users:s1:*", UsersOfSchool("s1"))
	assert.Equal(t, "classes:teacher:t1", ClassesForTeacher("t1"))
	assert.Equal(t, "files:c1:root", Files("c1", ""))
	assert.Equal(t, "assignments:c1:teacher", Assignments("c1", "teacher"))
}

func TestIsPattern(t *testing.T) {
	assert.True(t, IsPattern(FilesOfClass("c1")))
	assert.False(t, IsPattern(Posts("c1")))
	assert.False(t, IsPattern(""))
}
