package atwiki

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/John-Robertt/settei/internal/domain"
	"github.com/John-Robertt/settei/internal/infra/httpx"
	providerx "github.com/John-Robertt/settei/internal/provider"
)

// DefaultBaseURL 是 もしもRPG wiki 的页面根路径；页面地址为 <base>/<id>.html。
const DefaultBaseURL = "https://w.atwiki.jp/moshimorpg/pages"

// 单页 HTML 的读取上限，防止异常响应撑爆内存。
const maxPageBytes = 8 << 20

// Provider 实现 atwiki 页面的抓取。
type Provider struct {
	// BaseURL 为空时使用 DefaultBaseURL。
	BaseURL string
}

func (Provider) Name() string { return "atwiki" }

// PageURL 返回页面编号对应的详情页地址。
func (p Provider) PageURL(id domain.PageID) string {
	base := strings.TrimRight(strings.TrimSpace(p.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	return fmt.Sprintf("%s/%s.html", base, id.Key())
}

// Fetch 取回页面并统一解码为 UTF-8。
func (p Provider) Fetch(ctx context.Context, id domain.PageID, c *http.Client) ([]byte, string, error) {
	if c == nil {
		return nil, "", errors.New("http client 不能为空")
	}
	if id < 1 {
		return nil, "", fmt.Errorf("非法页面编号：%d", id)
	}
	pageURL := p.PageURL(id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, pageURL, err
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Language", "ja,en;q=0.8")

	resp, err := c.Do(req)
	if err != nil {
		return nil, pageURL, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, pageURL, &providerx.HTTPStatusError{
			URL:        pageURL,
			StatusCode: resp.StatusCode,
			Location:   resp.Header.Get("Location"),
		}
	}

	raw, err := httpx.ReadLimited(resp.Body, maxPageBytes)
	if err != nil {
		return nil, pageURL, err
	}
	if len(raw) == 0 {
		return nil, pageURL, errors.New("empty response body")
	}
	b, err := toUTF8(raw, resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, pageURL, err
	}
	return b, pageURL, nil
}

// toUTF8 依据 Content-Type / <meta charset> / BOM 把页面转为 UTF-8。
// 旧 atwiki 页面存在 EUC-JP 的情况。
func toUTF8(raw []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return nil, fmt.Errorf("识别页面编码失败：%w", err)
	}
	return io.ReadAll(r)
}
