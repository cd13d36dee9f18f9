package storage

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Resume_final.pdf", SanitizeName("Résumé final.pdf"))
	assert.Equal(t, "passwd", SanitizeName("../../etc/passwd"))
	assert.Equal(t, "file", SanitizeName("   "))

	long := strings.Repeat("x", 300) + ".docx"
	got := SanitizeName(long)
	assert.Equal(t, maxNameLength, len(got))
	assert.True(t, strings.HasSuffix(got, ".docx"))
}

func TestKeys(t *testing.T) {
	at := time.UnixMilli(1714557600123)
	assert.Equal(t, "schools/s1/logo", SchoolLogoKey("s1"))
	assert.Equal(t, "users/u1/photo", UserPhotoKey("u1"))
	assert.Equal(t, "classes/c1/1714557600123_Lab_1.pdf", ClassFileKey("c1", "", "Lab 1.pdf", at))
	assert.Equal(t, "classes/c1/Week_2/1714557600123_notes.txt", ClassFileKey("c1", "Week 2", "notes.txt", at))
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir(), "/storage")
	require.NoError(t, err)

	obj, err := store.Put(ctx, "classes/c1/1_a.txt", strings.NewReader("hello"), "text/plain")
	require.NoError(t, err)
	assert.Equal(t, int64(5), obj.Size)
	assert.Equal(t, "/storage/classes/c1/1_a.txt", obj.URL)
	assert.Equal(t, "1_a.txt", obj.Name)

	rc, err := store.Open(ctx, "classes/c1/1_a.txt")
	require.NoError(t, err)
	body, _ := io.ReadAll(rc)
	_ = rc.Close()
	assert.Equal(t, "hello", string(body))

	require.NoError(t, store.Delete(ctx, "classes/c1/1_a.txt"))
	require.NoError(t, store.Delete(ctx, "classes/c1/1_a.txt"))
	_, err = store.Open(ctx, "classes/c1/1_a.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = store.Put(ctx, "../escape", strings.NewReader("x"), "text/plain")
	assert.Error(t, err)
}

func TestLocalStoreCleanup(t *testing.T) {
	store, err := NewLocalStore(t.TempDir(), "")
	require.NoError(t, err)
	_, err = store.Put(context.Background(), "exports/a.csv", strings.NewReader("a"), "text/csv")
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(-time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/a.csv"}, deleted)
}

func TestThumbnailFitsLogo(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 1024, 256))
	src.Set(0, 0, color.White)
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, src))

	out, err := Thumbnail(&buf, LogoSize)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, 512, img.Bounds().Dx())
	assert.Equal(t, 128, img.Bounds().Dy())

	_, err = Thumbnail(strings.NewReader("not an image"), LogoSize)
	assert.Error(t, err)
}

func TestB2StoreURL(t *testing.T) {
	s := &B2Store{bucketName: "classroom-files", publicHost: "https://f002.backblazeb2.com"}
	assert.Equal(t, "https://f002.backblazeb2.com/file/classroom-files/classes/c1/1_notes.pdf", s.URL("classes/c1/1_notes.pdf"))
}
