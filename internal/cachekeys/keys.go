// Package cachekeys names the cached queries. Each key is scoped by the foreign id the
// query filters on so a write can invalidate exactly what it changed.
package cachekeys

import "fmt"

// School caches one school row.
func School(schoolID string) string { return "school:" + schoolID }

// Users caches a page of a school's users with one role.
func Users(schoolID, role string, page, size int) string {
	return fmt.Sprintf("users:%s:%s:%d:%d", schoolID, role, page, size)
}

// UsersOfSchool matches every cached users page of a school.
func UsersOfSchool(schoolID string) string { return "users:" + schoolID + ":*" }

// Invites caches the pending invite list of a school.
func Invites(schoolID, role, status string) string {
	return fmt.Sprintf("invites:%s:%s:%s", schoolID, role, status)
}

// InvitesOfSchool matches every cached invite list of a school.
func InvitesOfSchool(schoolID string) string { return "invites:" + schoolID + ":*" }

// ClassesForTeacher caches the classes a teacher owns.
func ClassesForTeacher(teacherID string) string { return "classes:teacher:" + teacherID }

// ClassesForStudent caches the classes a student is enrolled in.
func ClassesForStudent(studentID string) string { return "classes:student:" + studentID }

// ClassesOfSchool caches every class of a school.
func ClassesOfSchool(schoolID string) string { return "classes:school:" + schoolID }

// Roster caches a class roster.
func Roster(classID string) string { return "roster:" + classID }

// Assignments caches a class's assignment list as seen by viewer ("teacher" or a student id).
func Assignments(classID, viewer string) string { return "assignments:" + classID + ":" + viewer }

// AssignmentsOfClass matches every cached assignment list of a class.
func AssignmentsOfClass(classID string) string { return "assignments:" + classID + ":*" }

// Posts caches a class stream.
func Posts(classID string) string { return "posts:" + classID }

// Files caches one folder level of a class ("root" for the top level).
func Files(classID, folderID string) string {
	if folderID == "" {
		folderID = "root"
	}
	return "files:" + classID + ":" + folderID
}

// FilesOfClass matches every cached folder level of a class.
func FilesOfClass(classID string) string { return "files:" + classID + ":*" }

// YearBatches caches a school's year batches.
func YearBatches(schoolID string) string { return "year_batches:" + schoolID }

// Gradebook caches a class gradebook.
func Gradebook(classID string) string { return "gradebook:" + classID }

// IsPattern reports whether key is a glob pattern rather than an exact key.
func IsPattern(key string) bool {
	return len(key) > 0 && key[len(key)-1] == '*'
}
