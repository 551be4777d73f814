package httpx

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestNewPageClient_ProxyDisablesKeepAlive(t *testing.T) {
	c, err := NewPageClient("http://127.0.0.1:8080")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr, ok := c.Transport.(*Transport)
	if !ok {
		t.Fatalf("期望 *Transport，实际 %T", c.Transport)
	}
	if tr.Base.Proxy == nil {
		t.Fatalf("期望启用代理，但 Proxy=nil")
	}
	if !tr.Base.DisableKeepAlives || !tr.DisableKeepAlives {
		t.Fatalf("代理模式应禁用 keep-alive：base=%v req=%v", tr.Base.DisableKeepAlives, tr.DisableKeepAlives)
	}
}

func TestNewPageClient_NoProxyKeepsDefault(t *testing.T) {
	c, err := NewPageClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	tr := c.Transport.(*Transport)
	if tr.Base.Proxy != nil {
		t.Fatalf("不期望启用代理，但 Proxy!=nil")
	}
	if tr.Base.DisableKeepAlives {
		t.Fatalf("不期望禁用 keep-alive")
	}
}

func TestNewImageClient_ImageProxySwitch(t *testing.T) {
	c1, err := NewImageClient("http://127.0.0.1:8080", false)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c1.Transport.(*Transport).Base.Proxy != nil {
		t.Fatalf("image_proxy=false 时不应走代理")
	}

	c2, err := NewImageClient("http://127.0.0.1:8080", true)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if c2.Transport.(*Transport).Base.Proxy == nil {
		t.Fatalf("image_proxy=true 时应走代理")
	}

	if _, err := NewImageClient("", true); err == nil {
		t.Fatalf("image_proxy=true 且无 proxy.url 时应报错")
	}
}

func TestNewPageClient_InvalidProxyURL(t *testing.T) {
	for _, raw := range []string{"http://[::1", "127.0.0.1:8080"} {
		if _, err := NewPageClient(raw); err == nil {
			t.Fatalf("期望错误，但得到 nil：%q", raw)
		}
	}
}

func TestTransport_RetriesGatewayErrorsThenSucceeds(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Errorf("请求缺少 User-Agent")
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c, err := NewPageClient("")
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	c.Transport.(*Transport).Backoff = time.Millisecond

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("期望 200，实际 %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != 3 {
		t.Fatalf("期望 3 次请求，实际 %d", got)
	}
}

func TestTransport_ReturnsLastStatusWhenRetriesExhausted(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c, _ := NewPageClient("")
	c.Transport.(*Transport).Backoff = time.Millisecond

	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("期望 502，实际 %d", resp.StatusCode)
	}
	if got := atomic.LoadInt32(&hits); got != defaultRetryMax+1 {
		t.Fatalf("期望 %d 次请求，实际 %d", defaultRetryMax+1, got)
	}
}

func TestTransport_NoRetryOn404(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c, _ := NewPageClient("")
	resp, err := c.Get(srv.URL)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	resp.Body.Close()
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Fatalf("404 不应重试，实际请求 %d 次", got)
	}
}

func TestReadLimited(t *testing.T) {
	b, err := ReadLimited(strings.NewReader("abcd"), 4)
	if err != nil || string(b) != "abcd" {
		t.Fatalf("恰好等于上限应成功：b=%q err=%v", b, err)
	}

	b, err = ReadLimited(strings.NewReader("abcde"), 4)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("超出上限应报 ErrBodyTooLarge，实际：%v", err)
	}
	if b != nil {
		t.Fatalf("超出上限时不应返回截断内容：%q", b)
	}
}
