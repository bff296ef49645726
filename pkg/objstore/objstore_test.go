package objstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		uri        string
		wantBucket string
		wantPrefix string
		wantErr    bool
	}{
		{"s3://log-bucket/logs/", "log-bucket", "logs/", false},
		{"s3://log-bucket", "log-bucket", "", false},
		{"s3://log-bucket/a/b/c.log", "log-bucket", "a/b/c.log", false},
		{"s3:///logs", "", "", true},
		{"https://log-bucket/logs", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.uri, func(t *testing.T) {
			bucket, prefix, err := ParseS3URI(tt.uri)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestMemStoreListPaginates(t *testing.T) {
	m := NewMemStore()
	m.PageSize = 2
	m.PutString("b", "logs/3.log", "ccc")
	m.PutString("b", "logs/1.log", "a")
	m.PutString("b", "logs/2.log", "bb")
	m.PutString("b", "other/x.log", "x")
	m.PutString("other-bucket", "logs/9.log", "z")

	var got []ObjectInfo
	err := m.List(context.Background(), "b", "logs/", func(info ObjectInfo) error {
		got = append(got, info)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []ObjectInfo{
		{Key: "logs/1.log", Size: 1},
		{Key: "logs/2.log", Size: 2},
		{Key: "logs/3.log", Size: 3},
	}, got)
	assert.Equal(t, 2, m.ListPages())
}

func TestMemStoreListEmpty(t *testing.T) {
	m := NewMemStore()
	calls := 0
	err := m.List(context.Background(), "empty", "", func(ObjectInfo) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestMemStoreListFailure(t *testing.T) {
	m := NewMemStore()
	m.PageSize = 1
	m.PutString("b", "logs/1.log", "a")
	m.PutString("b", "logs/2.log", "b")

	boom := errors.New("access denied")
	m.FailList(boom)

	var keys []string
	err := m.List(context.Background(), "b", "logs/", func(info ObjectInfo) error {
		keys = append(keys, info.Key)
		return nil
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"logs/1.log"}, keys)
}

func TestMemStoreListCallbackErrorStops(t *testing.T) {
	m := NewMemStore()
	m.PutString("b", "1", "")
	m.PutString("b", "2", "")

	stop := errors.New("stop")
	calls := 0
	err := m.List(context.Background(), "b", "", func(ObjectInfo) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestMemStoreOpen(t *testing.T) {
	m := NewMemStore()
	m.PutString("b", "k", "hello")

	rc, err := m.Open(context.Background(), "b", "k")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "hello", string(data))

	_, err = m.Open(context.Background(), "b", "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	injected := errors.New("connection reset")
	m.FailOpen("k", injected)
	_, err = m.Open(context.Background(), "b", "k")
	assert.ErrorIs(t, err, injected)

	assert.Equal(t, 2, m.Opens("k"))
	assert.Equal(t, 3, m.TotalOpens())
}

func TestMemStoreOpenCancelled(t *testing.T) {
	m := NewMemStore()
	m.PutString("b", "k", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Open(ctx, "b", "k")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefaultDownloaderConfig(t *testing.T) {
	cfg := DefaultDownloaderConfig()
	assert.GreaterOrEqual(t, cfg.Concurrency, 2)
	assert.LessOrEqual(t, cfg.Concurrency, 8)
	assert.Equal(t, int64(8*1024*1024), cfg.PartSize)
}

func TestTempFileReaderRemovesFileOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obj.tmp")
	content := bytes.Repeat([]byte("[INFO] line\n"), 1000)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)

	reader := &tempFileReader{file: f, path: path}
	got, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, content, got)

	require.NoError(t, reader.Close())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "temp file should be removed on close")
}

// TestClientIntegration requires a reachable S3-compatible endpoint.
// To run: S3LOG_INTEGRATION_TEST=1 S3LOG_TEST_BUCKET=... go test -run TestClientIntegration -v.
func TestClientIntegration(t *testing.T) {
	if os.Getenv("S3LOG_INTEGRATION_TEST") == "" {
		t.Skip("skipping integration test; set S3LOG_INTEGRATION_TEST=1 to run")
	}
	bucket := os.Getenv("S3LOG_TEST_BUCKET")
	if bucket == "" {
		t.Skip("S3LOG_TEST_BUCKET required for integration test")
	}

	ctx := context.Background()
	client, err := NewClient(ctx, Config{
		Endpoint:  os.Getenv("S3_ENDPOINT"),
		AccessKey: os.Getenv("S3_ACCESS_KEY"),
		SecretKey: os.Getenv("S3_SECRET_KEY"),
	})
	require.NoError(t, err)

	var first string
	err = client.List(ctx, bucket, os.Getenv("S3LOG_TEST_PREFIX"), func(info ObjectInfo) error {
		if first == "" {
			first = info.Key
		}
		return nil
	})
	require.NoError(t, err)
	if first == "" {
		t.Skip("bucket has no objects under the test prefix")
	}

	rc, err := client.Open(ctx, bucket, first)
	require.NoError(t, err)
	defer rc.Close()
	_, err = io.Copy(io.Discard, rc)
	require.NoError(t, err)

	_, err = client.Open(ctx, bucket, first+".does-not-exist")
	assert.ErrorIs(t, err, ErrNotFound)
}
