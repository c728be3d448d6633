package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewTransport_ProxyDisablesKeepAlive(t *testing.T) {
	tr, err := newTransport("http://127.0.0.1:8080", 0)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式下应禁用 keep-alive")
	}
}

func TestNewTransport_NoProxyKeepsDefault(t *testing.T) {
	tr, err := newTransport("", 0)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive，但 Base.DisableKeepAlives=true")
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	_, err := NewClient(Options{ProxyURL: "http://[::1"}, nil)
	if err == nil {
		t.Fatalf("期望错误，但得到 nil")
	}
}

func TestClient_FetchSendsIdentificationHeaders(t *testing.T) {
	var got http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		_, _ = w.Write([]byte("  <html>ok</html>\n"))
	}))
	defer srv.Close()

	c, err := NewClient(Options{Headers: map[string]string{
		"User-Agent":  "rttop-test",
		"From":        "someone@example.test",
		"Course-Info": "https://example.test/course",
		"X-Empty":     "",
	}}, nil)
	require.NoError(t, err)

	body, err := c.Fetch(context.Background(), srv.URL+"/top")
	require.NoError(t, err)
	// 响应体原样返回，不做 trim。
	require.Equal(t, "  <html>ok</html>\n", body)
	require.Equal(t, "rttop-test", got.Get("User-Agent"))
	require.Equal(t, "someone@example.test", got.Get("From"))
	require.Equal(t, "https://example.test/course", got.Get("Course-Info"))
	require.Empty(t, got.Values("X-Empty"))
}

func TestClient_FetchDefaultUserAgent(t *testing.T) {
	var ua string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ua = r.Header.Get("User-Agent")
	}))
	defer srv.Close()

	c, err := NewClient(Options{}, nil)
	require.NoError(t, err)
	_, err = c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, defaultUserAgent, ua)
}

func TestClient_FetchNon2xx(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	c, err := NewClient(Options{}, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), srv.URL+"/m/x")
	var se *HTTPStatusError
	require.True(t, errors.As(err, &se), "期望 *HTTPStatusError，实际：%T %v", err, err)
	require.Equal(t, http.StatusForbidden, se.StatusCode)
	require.Equal(t, srv.URL+"/m/x", se.URL)
	require.EqualValues(t, 1, atomic.LoadInt32(&hits), "默认不重试")
}

func TestClient_MinInterval(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	const interval = 80 * time.Millisecond
	c, err := NewClient(Options{MinInterval: interval}, nil)
	require.NoError(t, err)

	started := time.Now()
	for i := 0; i < 3; i++ {
		_, err := c.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
	}
	// 第一个请求立即发出，后两个各等待约一个间隔。
	require.GreaterOrEqual(t, time.Since(started), 2*interval-10*time.Millisecond)
}

func TestClient_MinIntervalHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	c, err := NewClient(Options{MinInterval: time.Hour}, nil)
	require.NoError(t, err)

	_, err = c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Fetch(ctx, srv.URL)
	require.Error(t, err)
}
