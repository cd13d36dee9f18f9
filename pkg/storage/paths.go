package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

const maxNameLength = 120

var (
	reUnsafeName  = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
	reRepeatedSep = regexp.MustCompile(`[_-]{2,}`)
)

// SanitizeName folds diacritics and keeps [A-Za-z0-9._-] so names are safe as key segments.
func SanitizeName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))

	var b strings.Builder
	for _, r := range norm.NFD.String(name) {
		if unicode.Is(unicode.Mn, r) {
			continue
		}
		b.WriteRune(r)
	}

	out := reUnsafeName.ReplaceAllString(b.String(), "_")
	out = reRepeatedSep.ReplaceAllString(out, "_")
	out = strings.Trim(out, "._-")
	if out == "" {
		out = "file"
	}
	if utf8.RuneCountInString(out) > maxNameLength {
		ext := path.Ext(out)
		if len(ext) > 16 {
			ext = ""
		}
		out = out[:maxNameLength-len(ext)] + ext
	}
	return out
}

// SchoolLogoKey is the fixed key of a school's logo.
func SchoolLogoKey(schoolID string) string {
	return fmt.Sprintf("schools/%s/logo", schoolID)
}

// UserPhotoKey is the fixed key of a user's profile photo.
func UserPhotoKey(userID string) string {
	return fmt.Sprintf("users/%s/photo", userID)
}

// ClassFileKey builds classes/{classId}/{folder?}/{unixMillis}_{sanitizedName}.
func ClassFileKey(classID, folder, filename string, at time.Time) string {
	name := fmt.Sprintf("%d_%s", at.UnixMilli(), SanitizeName(filename))
	if folder = strings.Trim(folder, "/ "); folder != "" {
		return path.Join("classes", classID, SanitizeName(folder), name)
	}
	return path.Join("classes", classID, name)
}
