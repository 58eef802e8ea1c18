package backup

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/minio/minio-go/v7"
	"github.com/prudhvinik1/notesync/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewTarget_None(t *testing.T) {
	target, err := NewTarget(context.Background(), config.BackupConfig{Driver: config.BackupDriverNone})

	require.NoError(t, err)
	assert.Nil(t, target)
}

func TestNewTarget_Unknown(t *testing.T) {
	_, err := NewTarget(context.Background(), config.BackupConfig{Driver: "ftp"})

	assert.Error(t, err)
}

func TestNewS3Target(t *testing.T) {
	target, err := NewS3Target(context.Background(), config.BackupConfig{
		Driver:    config.BackupDriverS3,
		Endpoint:  "localhost:4566",
		AccessKey: "test",
		SecretKey: "test",
		Bucket:    "backups",
		Region:    "us-east-1",
	})

	require.NoError(t, err)
	assert.Equal(t, "backups", target.bucket)
}

func TestMinioTarget_CreatesMissingBucket(t *testing.T) {
	client := new(mockMinioClient)
	client.On("BucketExists", mock.Anything, "backups").Return(false, nil)
	client.On("MakeBucket", mock.Anything, "backups", minio.MakeBucketOptions{Region: "us-east-1"}).Return(nil)

	_, err := newMinioTarget(context.Background(), client, "backups", "us-east-1")

	require.NoError(t, err)
	client.AssertExpectations(t)
}

func TestMinioTarget_ExistingBucket(t *testing.T) {
	client := new(mockMinioClient)
	client.On("BucketExists", mock.Anything, "backups").Return(true, nil)

	_, err := newMinioTarget(context.Background(), client, "backups", "")

	require.NoError(t, err)
	client.AssertNotCalled(t, "MakeBucket", mock.Anything, mock.Anything, mock.Anything)
}

func TestMinioTarget_Put(t *testing.T) {
	client := new(mockMinioClient)
	data := []byte(`{"item":{}}`)
	client.On("PutObject", mock.Anything, "backups", "a/b/c.json", mock.Anything, int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/json"}).Return(minio.UploadInfo{}, nil)
	target := &MinioTarget{client: client, bucket: "backups"}

	require.NoError(t, target.Put(context.Background(), "a/b/c.json", data))
	client.AssertExpectations(t)
}

func TestMinioTarget_PutError(t *testing.T) {
	client := new(mockMinioClient)
	client.On("PutObject", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(minio.UploadInfo{}, errors.New("access denied"))
	target := &MinioTarget{client: client, bucket: "backups"}

	err := target.Put(context.Background(), "k", []byte("x"))

	assert.ErrorContains(t, err, "access denied")
}

func TestS3Target_Put(t *testing.T) {
	client := new(mockS3Client)
	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "backups" && *in.Key == "a/b/c.json" && *in.ContentLength == 3
	})).Return(&s3.PutObjectOutput{}, nil)
	target := &S3Target{client: client, bucket: "backups"}

	require.NoError(t, target.Put(context.Background(), "a/b/c.json", []byte("abc")))
	client.AssertExpectations(t)
}

func TestEndpointURL(t *testing.T) {
	assert.Equal(t, "http://localhost:9000", endpointURL("localhost:9000", false))
	assert.Equal(t, "https://s3.example.com", endpointURL("s3.example.com", true))
	assert.Equal(t, "http://minio:9000", endpointURL("http://minio:9000", true))
}
