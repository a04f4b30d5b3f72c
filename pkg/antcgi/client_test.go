package antcgi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// digestServer serves fn behind a digest challenge: unauthenticated
// requests get a 401, requests carrying any well-formed digest header for
// username "root" get through.
func digestServer(t *testing.T, fn http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth == "" {
			w.Header().Set("WWW-Authenticate", `Digest realm="antMiner Configuration", nonce="abc123", qop="auth"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.HasPrefix(auth, "Digest ") || !strings.Contains(auth, `username="root"`) {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		fn(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *Client {
	host := strings.TrimPrefix(srv.URL, "http://")
	return NewClient(host, NewDigestAuth(DefaultUsername, DefaultPassword))
}

func TestGetSystemInfoWithDigestChallenge(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, SystemInfoEndpoint, r.URL.Path)
		w.Write([]byte(`{"minertype":"Antminer Z15j","hostname":"miner1","macaddr":"aa:bb:cc:dd:ee:ff"}`))
	})

	info, err := testClient(srv).GetSystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Antminer Z15j", info.MinerType)
	assert.Equal(t, "miner1", info.Hostname)
}

func TestGetSystemInfoNon200(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := testClient(srv).GetSystemInfo(context.Background())
	assert.ErrorIs(t, err, ErrUnexpectedStatus)
}

func TestGetKernelLog(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, KernelLogEndpoint, r.URL.Path)
		w.Write([]byte("line one\nNo 2 Fan find, check again\n"))
	})

	content, err := testClient(srv).GetKernelLog(context.Background())
	require.NoError(t, err)
	assert.Contains(t, content, "No 2 Fan find, check again")
}

func TestGetHlogSendsXHRHeaders(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, HlogEndpoint, r.URL.Path)
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		w.Write([]byte("2025-06-28 09:23:01 driver started\n"))
	})

	content, err := testClient(srv).GetHlog(context.Background())
	require.NoError(t, err)
	assert.Contains(t, content, "driver started")
}

func TestGetIndex(t *testing.T) {
	srv := digestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/", r.URL.Path)
		w.Write([]byte("<title>Antminer Z15j</title>"))
	})

	page, err := testClient(srv).GetIndex(context.Background())
	require.NoError(t, err)
	assert.Contains(t, strings.ToLower(page), "z15j")
}
