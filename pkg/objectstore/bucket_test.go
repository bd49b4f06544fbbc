package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func bucketsUnderTest(t *testing.T) map[string]Bucket {
	t.Helper()

	dir, err := NewDirBucket(filepath.Join(t.TempDir(), "objects"))
	require.NoError(t, err)

	bolt, err := OpenBoltBucket(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]Bucket{
		"mem":  NewMemBucket(),
		"dir":  dir,
		"bolt": bolt,
	}
}

func TestBuckets_GetPut(t *testing.T) {
	ctx := context.Background()

	for name, bucket := range bucketsUnderTest(t) {
		bucket := bucket
		t.Run(name, func(t *testing.T) {
			_, err := bucket.Get(ctx, "birthdays.csv")
			assert.ErrorIs(t, err, ErrObjectNotFound)

			require.NoError(t, bucket.Put(ctx, "birthdays.csv", []byte("name,birthday\n")))
			require.NoError(t, bucket.Put(ctx, "birthdays.csv", []byte("name,birthday\nAna,01/02\n")))

			got, err := bucket.Get(ctx, "birthdays.csv")
			require.NoError(t, err)
			assert.Equal(t, "name,birthday\nAna,01/02\n", string(got))

			require.NoError(t, bucket.Put(ctx, "nested/dir/key.csv", []byte("x")))
			got, err = bucket.Get(ctx, "nested/dir/key.csv")
			require.NoError(t, err)
			assert.Equal(t, "x", string(got))
		})
	}
}

type mockS3 struct {
	mock.Mock
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func TestS3Bucket_Get(t *testing.T) {
	ctx := context.Background()
	api := new(mockS3)
	bucket := NewS3Bucket(api, "birthdays")

	api.On("GetObject", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Bucket == "birthdays" && *in.Key == "present.csv"
	})).Return(&s3.GetObjectOutput{Body: io.NopCloser(bytes.NewBufferString("name,birthday\n"))}, nil)
	api.On("GetObject", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "missing.csv"
	})).Return(nil, &types.NoSuchKey{})
	api.On("GetObject", ctx, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return *in.Key == "broken.csv"
	})).Return(nil, errors.New("connection reset"))

	got, err := bucket.Get(ctx, "present.csv")
	require.NoError(t, err)
	assert.Equal(t, "name,birthday\n", string(got))

	_, err = bucket.Get(ctx, "missing.csv")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	_, err = bucket.Get(ctx, "broken.csv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrObjectNotFound)

	api.AssertExpectations(t)
}

func TestS3Bucket_Put(t *testing.T) {
	ctx := context.Background()
	api := new(mockS3)
	bucket := NewS3Bucket(api, "birthdays")

	api.On("PutObject", ctx, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		body, _ := io.ReadAll(in.Body)
		return *in.Bucket == "birthdays" && *in.Key == "b.csv" && string(body) == "data"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	require.NoError(t, bucket.Put(ctx, "b.csv", []byte("data")))
	api.AssertExpectations(t)
}
