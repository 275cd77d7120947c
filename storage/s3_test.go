package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeS3 struct {
	objects   map[string]time.Time
	bodies    map[string]string
	prefixes  []string
	deleteErr map[string]error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]time.Time{}, bodies: map[string]string{}, deleteErr: map[string]error{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Key)
	f.bodies[key] = string(data)
	f.objects[key] = time.Now()
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	f.prefixes = append(f.prefixes, prefix)
	out := &s3.ListObjectsV2Output{}
	for key, mod := range f.objects {
		if strings.HasPrefix(key, prefix) {
			out.Contents = append(out.Contents, types.Object{Key: aws.String(key), LastModified: aws.Time(mod)})
		}
	}
	return out, nil
}

func (f *fakeS3) DeleteObject(_ context.Context, in *s3.DeleteObjectInput, _ ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	key := aws.ToString(in.Key)
	if err := f.deleteErr[key]; err != nil {
		return nil, err
	}
	delete(f.objects, key)
	return &s3.DeleteObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	client := newFakeS3()
	require.NoError(t, Upload(context.Background(), client, "bucket", "snapshot-a.bib.gz", strings.NewReader("data")))
	assert.Equal(t, "data", client.bodies["snapshot-a.bib.gz"])
}

func TestRotateKeepsNewest(t *testing.T) {
	client := newFakeS3()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, key := range []string{"snapshot-1", "snapshot-2", "snapshot-3", "snapshot-4", "snapshot-5"} {
		client.objects[key] = base.Add(time.Duration(i) * time.Hour)
	}
	client.objects["other.txt"] = base

	deleted, err := Rotate(context.Background(), client, "bucket", "snapshot-", 3, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-2", "snapshot-1"}, deleted)
	assert.Equal(t, []string{"snapshot-"}, client.prefixes)

	assert.Contains(t, client.objects, "snapshot-5")
	assert.Contains(t, client.objects, "snapshot-3")
	assert.Contains(t, client.objects, "other.txt", "foreign objects are never touched")
}

func TestRotateNothingToDo(t *testing.T) {
	client := newFakeS3()
	client.objects["snapshot-1"] = time.Now()

	deleted, err := Rotate(context.Background(), client, "bucket", "snapshot-", 4, zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, deleted)
	assert.Len(t, client.objects, 1)
}

func TestRotateContinuesAfterDeleteError(t *testing.T) {
	client := newFakeS3()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client.objects["snapshot-1"] = base
	client.objects["snapshot-2"] = base.Add(time.Hour)
	client.objects["snapshot-3"] = base.Add(2 * time.Hour)
	client.deleteErr["snapshot-2"] = errors.New("access denied")

	deleted, err := Rotate(context.Background(), client, "bucket", "snapshot-", 1, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshot-1"}, deleted)
	assert.Contains(t, client.objects, "snapshot-2")
}

func TestRotateRejectsKeepBelowOne(t *testing.T) {
	for _, keep := range []int{0, -1} {
		client := newFakeS3()
		client.objects["snapshot-a"] = time.Now()

		deleted, err := Rotate(context.Background(), client, "bucket", "snapshot-", keep, zap.NewNop())
		require.Error(t, err, "keep=%d", keep)
		assert.Empty(t, deleted)
		assert.Contains(t, client.objects, "snapshot-a")
	}
}
