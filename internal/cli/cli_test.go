package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eunmann/s3-log-levels/internal/config"
	"github.com/eunmann/s3-log-levels/pkg/benchutil"
	"github.com/eunmann/s3-log-levels/pkg/levels"
	"github.com/eunmann/s3-log-levels/pkg/logscan"
	"github.com/eunmann/s3-log-levels/pkg/objstore"
	"github.com/eunmann/s3-log-levels/pkg/report"
)

// useMemStore points the CLI at store for the duration of the test.
func useMemStore(t *testing.T, store *objstore.MemStore) {
	t.Helper()
	prev := openStore
	openStore = func(context.Context, config.Config) (objstore.Lister, logscan.GetterFactory, error) {
		return store, logscan.SharedGetter(store), nil
	}
	t.Cleanup(func() { openStore = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd(&stdout, &stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func TestRunNoArgs(t *testing.T) {
	err := Run(nil)
	if err == nil {
		t.Fatal("expected error with no args")
	}
	if !strings.Contains(err.Error(), "usage") {
		t.Errorf("expected usage message, got: %v", err)
	}
}

func TestRunUnknownCommand(t *testing.T) {
	err := Run([]string{"unknown"})
	if err == nil {
		t.Fatal("expected error with unknown command")
	}
	if !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected 'unknown command' error, got: %v", err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "s3log-levels dev"), out)
}

func TestCountTextReport(t *testing.T) {
	store := objstore.NewMemStore()
	for i := 0; i < 3; i++ {
		obj := benchutil.AlternatingObject(fmt.Sprintf("logs/log_file_%04d.log", i), 10, levels.Error, levels.Info)
		store.Put("log-bucket", obj.Key, obj.Body)
	}
	useMemStore(t, store)

	out, err := execute(t, "count", "--workers", "2")
	require.NoError(t, err)

	assert.Regexp(t, `ERROR:\s+15\n`, out)
	assert.Regexp(t, `INFO:\s+15\n`, out)
	assert.Regexp(t, `WARNING:\s+0\n`, out)
	assert.Regexp(t, `DEBUG:\s+0\n`, out)
}

func TestCountJSONReport(t *testing.T) {
	store := objstore.NewMemStore()
	objects, want := benchutil.NewGenerator(benchutil.DefaultConfig(25)).Populate(store, "app-logs")
	useMemStore(t, store)

	out, err := execute(t, "count", "--bucket", "app-logs", "--format", "json", "--workers", "4")
	require.NoError(t, err)

	var got report.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, report.NewLevelCounts(want), got.Counts)
	assert.Equal(t, int64(len(objects)), got.ObjectsOK)
}

func TestCountWritesObjectsParquet(t *testing.T) {
	store := objstore.NewMemStore()
	benchutil.NewGenerator(benchutil.DefaultConfig(5)).Populate(store, "log-bucket")
	useMemStore(t, store)

	path := filepath.Join(t.TempDir(), "objects.parquet")
	_, err := execute(t, "count", "--objects-out", path)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestCountInvalidConfig(t *testing.T) {
	useMemStore(t, objstore.NewMemStore())

	_, err := execute(t, "count", "--workers", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")

	_, err = execute(t, "count", "--format", "xml")
	require.Error(t, err)
}

func TestCountListingFailure(t *testing.T) {
	store := objstore.NewMemStore()
	store.FailList(errors.New("access denied"))
	useMemStore(t, store)

	_, err := execute(t, "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestCountRejectsArgs(t *testing.T) {
	_, err := execute(t, "count", "extra")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	store := objstore.NewMemStore()
	store.PutString("log-bucket", "logs/a.log", "[INFO] x\n")
	store.PutString("log-bucket", "logs/b.log", "[INFO] y\n")
	store.Put("log-bucket", "logs/dir/", nil)
	useMemStore(t, store)

	out, err := execute(t, "list", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"keys": 2`)
	assert.Contains(t, out, `"skipped": 1`)
	assert.Zero(t, store.TotalOpens())
}
