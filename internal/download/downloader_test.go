package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	payload := []byte("installer bytes")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer server.Close()

	var lastDone int64
	d := NewDownloader(
		WithHTTPClient(server.Client()),
		WithProgressFunc(func(done, total int64) {
			atomic.StoreInt64(&lastDone, done)
		}),
	)

	destDir := t.TempDir()
	saved, err := d.Fetch(context.Background(), server.URL+"/python-3.12.8.tar.xz", destDir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(destDir, "python-3.12.8.tar.xz"), saved)
	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, int64(len(payload)), atomic.LoadInt64(&lastDone))

	// 临时文件应全部清理。
	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFetchNotFoundDoesNotRetry(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := NewDownloader(WithHTTPClient(server.Client()), WithMaxRetries(3))

	_, err := d.Fetch(context.Background(), server.URL+"/missing.exe", t.TempDir())
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("eventually fine"))
	}))
	defer server.Close()

	d := NewDownloader(WithHTTPClient(server.Client()), WithMaxRetries(3))

	saved, err := d.Fetch(context.Background(), server.URL+"/artifact.tgz", t.TempDir())
	require.NoError(t, err)
	assert.FileExists(t, saved)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestFetchExhaustsRetries(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewDownloader(WithHTTPClient(server.Client()), WithMaxRetries(2))

	_, err := d.Fetch(context.Background(), server.URL+"/artifact.tgz", t.TempDir())
	assert.ErrorIs(t, err, ErrFailed)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestFetchRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	d := NewDownloader()

	for _, raw := range []string{"ftp://example.com/a.tgz", "not a url", "file:///etc/passwd"} {
		_, err := d.Fetch(context.Background(), raw, t.TempDir())
		assert.ErrorIs(t, err, ErrFailed, raw)
	}
}

func TestFetchCancelledContextStops(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := NewDownloader(WithHTTPClient(server.Client()), WithMaxRetries(5))

	_, err := d.Fetch(ctx, server.URL+"/artifact.tgz", t.TempDir())
	require.Error(t, err)
	// 取消后绝不重试。
	assert.LessOrEqual(t, atomic.LoadInt32(&hits), int32(1))
}

func TestFetchOverwritesExistingFile(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("fresh"))
	}))
	defer server.Close()

	destDir := t.TempDir()
	stale := filepath.Join(destDir, "artifact.tgz")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0o644))

	d := NewDownloader(WithHTTPClient(server.Client()))

	saved, err := d.Fetch(context.Background(), server.URL+"/artifact.tgz", destDir)
	require.NoError(t, err)

	data, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), data)
}
