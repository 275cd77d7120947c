package main

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"arxiv-frontend/config"
	"arxiv-frontend/models"
	"arxiv-frontend/services"
	"arxiv-frontend/storage"
)

type memoryBucket struct {
	objects map[string][]byte
	deleted []string
}

func (b *memoryBucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	b.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *memoryBucket) ListObjectsV2(_ context.Context, _ *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	out := &s3.ListObjectsV2Output{}
	for key := range b.objects {
		// Schlüssel enthalten den Zeitstempel, das genügt als Änderungszeit.
		mod, err := time.Parse("snapshot-2006-01-02T15-04-05Z.bib.gz", key)
		if err != nil {
			return nil, err
		}
		out.Contents = append(out.Contents, types.Object{Key: aws.String(key), LastModified: aws.Time(mod)})
	}
	return out, nil
}

func (b *memoryBucket) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	delete(b.objects, key)
	b.deleted = append(b.deleted, key)
	return &s3.DeleteObjectOutput{}, nil
}

func newCatalog(t *testing.T) *services.Catalog {
	t.Helper()
	cfg := &config.Config{DBDriver: config.DriverSQLite, DBName: filepath.Join(t.TempDir(), "backup.db")}
	db, err := storage.Open(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, storage.Migrate(db))
	t.Cleanup(func() { _ = storage.Close(db) })

	require.NoError(t, db.Create(&models.Paper{
		ArxivID:       "2401.00001v3",
		Title:         "Graphs",
		PublishedDate: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	}).Error)
	return services.NewCatalog(db, zap.NewNop())
}

func TestBackupUploadsAndRotates(t *testing.T) {
	bucket := &memoryBucket{objects: map[string][]byte{
		"snapshot-2024-01-01T00-00-00Z.bib.gz": nil,
		"snapshot-2024-01-02T00-00-00Z.bib.gz": nil,
	}}
	cfg := BackupConfig{S3Config: storage.S3Config{Bucket: "arxiv"}, KeepBackups: 2}
	now := time.Date(2024, 1, 3, 4, 5, 6, 0, time.UTC)

	require.NoError(t, backup(context.Background(), newCatalog(t), bucket, cfg, now, zap.NewNop()))

	assert.Equal(t, []string{"snapshot-2024-01-01T00-00-00Z.bib.gz"}, bucket.deleted)
	data, ok := bucket.objects["snapshot-2024-01-03T04-05-06Z.bib.gz"]
	require.True(t, ok)

	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	text, err := io.ReadAll(gz)
	require.NoError(t, err)
	assert.Contains(t, string(text), "@article{arxiv2024x,")
	assert.Contains(t, string(text), "Eprint = {2401.00001},")
}

func TestBackupRejectsInvalidKeep(t *testing.T) {
	bucket := &memoryBucket{objects: map[string][]byte{}}
	cfg := BackupConfig{S3Config: storage.S3Config{Bucket: "arxiv"}, KeepBackups: 0}

	err := backup(context.Background(), newCatalog(t), bucket, cfg, time.Now(), zap.NewNop())
	assert.ErrorContains(t, err, "KEEP_BACKUPS")
	assert.Empty(t, bucket.objects, "nothing is uploaded")
}
