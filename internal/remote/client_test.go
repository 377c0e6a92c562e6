package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releasesPayload = `[
	{"cycle": "3.13", "latest": "3.13.1", "eol": "2099-10-31", "support": "2099-10-01"},
	{"cycle": "3.9", "latest": "3.9.21", "eol": "2099-10-31", "support": "2022-05-17"},
	{"cycle": "3.12", "latest": "3.12.8", "eol": false, "support": true},
	{"cycle": "2.7", "latest": "2.7.18", "eol": true, "support": true}
]`

func TestFetchReleasesParsesAndSorts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(releasesPayload))
	}))
	defer server.Close()

	client := NewClient(WithReleasesURL(server.URL), WithHTTPClient(server.Client()))

	releases, err := client.FetchReleases(context.Background())
	require.NoError(t, err)
	require.Len(t, releases, 4)

	// 按系列号数值降序：3.13 > 3.12 > 3.9 > 2.7。
	series := []string{releases[0].Series, releases[1].Series, releases[2].Series, releases[3].Series}
	assert.Equal(t, []string{"3.13", "3.12", "3.9", "2.7"}, series)
}

func TestFetchReleasesDerivesStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(releasesPayload))
	}))
	defer server.Close()

	client := NewClient(WithReleasesURL(server.URL), WithHTTPClient(server.Client()))

	releases, err := client.FetchReleases(context.Background())
	require.NoError(t, err)

	byStatus := map[string]string{}
	for _, rel := range releases {
		byStatus[rel.Series] = rel.Status
	}

	// eol 日期未到且 support 日期已过 → security。
	assert.Equal(t, "security", byStatus["3.9"])
	// support 日期未到 → bugfix。
	assert.Equal(t, "bugfix", byStatus["3.13"])
	// 布尔 support=true 表示主动维护已结束。
	assert.Equal(t, "security", byStatus["3.12"])
	// 布尔 eol=true 无条件终止。
	assert.Equal(t, "end-of-life", byStatus["2.7"])
}

func TestFetchReleasesCachesWithinTTL(t *testing.T) {
	t.Parallel()

	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = w.Write([]byte(releasesPayload))
	}))
	defer server.Close()

	client := NewClient(
		WithReleasesURL(server.URL),
		WithHTTPClient(server.Client()),
		WithCacheTTL(time.Hour),
	)

	for i := 0; i < 3; i++ {
		_, err := client.FetchReleases(context.Background())
		require.NoError(t, err)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestFetchReleasesRejectsBadStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(WithReleasesURL(server.URL), WithHTTPClient(server.Client()))

	_, err := client.FetchReleases(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestFetchChecksumTakesFirstField(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/python-3.12.8.exe.sha256", r.URL.Path)
		_, _ = w.Write([]byte("abc123def  python-3.12.8.exe\n"))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))

	sum, err := client.FetchChecksum(context.Background(), server.URL+"/python-3.12.8.exe")
	require.NoError(t, err)
	assert.Equal(t, "abc123def", sum)
}

func TestFetchChecksumEmptyBody(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("   \n"))
	}))
	defer server.Close()

	client := NewClient(WithHTTPClient(server.Client()))

	_, err := client.FetchChecksum(context.Background(), server.URL+"/artifact")
	require.Error(t, err)
}
