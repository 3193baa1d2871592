package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalPutURLDelete(t *testing.T) {
	ctx := context.Background()
	disk, err := NewLocal(t.TempDir(), "http://localhost:8080/storage/")
	require.NoError(t, err)

	path := "product-images/1700000000000_lamp.jpg"
	require.NoError(t, disk.Put(ctx, path, strings.NewReader("jpeg"), 4, "image/jpeg"))

	data, err := os.ReadFile(filepath.Join(disk.Root(), filepath.FromSlash(path)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))
	assert.Equal(t, "http://localhost:8080/storage/product-images/1700000000000_lamp.jpg", disk.URL(path))

	require.NoError(t, disk.Delete(ctx, path))
	require.NoError(t, disk.Delete(ctx, path), "deleting twice is fine")
}

func TestLocalRejectsEscapingPaths(t *testing.T) {
	disk, err := NewLocal(t.TempDir(), "http://x")
	require.NoError(t, err)
	err = disk.Put(context.Background(), "../outside.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	disk, err := Open(context.Background(), "none")
	require.NoError(t, err)
	assert.Nil(t, disk)

	_, err = Open(context.Background(), "ftp")
	assert.Error(t, err)
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Options{})
	assert.Error(t, err)
}

func TestS3URL(t *testing.T) {
	disk, err := NewS3(context.Background(), S3Options{
		Bucket: "campus", Region: "eu-west-1", Key: "k", Secret: "s",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://campus.s3.eu-west-1.amazonaws.com/product-images/a.png", disk.URL("/product-images/a.png"))
}
