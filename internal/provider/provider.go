package provider

import (
	"context"
	"fmt"
	"net/http"

	"github.com/John-Robertt/settei/internal/domain"
)

// Fetcher 负责“按页面编号取回原始 HTML”。
//
// 约束：
// - Fetch 不做缓存、不做限速（由 run 层统一控制）；重试由 httpx.Transport 负责
// - 非 2xx 必须返回 *HTTPStatusError，让上层把它归为 fetch_failed
// - pageURL 用于日志与 report 追溯
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, id domain.PageID, c *http.Client) (html []byte, pageURL string, err error)
}

// Error 是 provider 调用的可追溯错误（Stage 目前只有 "fetch"）。
type Error struct {
	Provider string
	Stage    string
	Page     domain.PageID
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider=%s stage=%s page=%d: %v", e.Provider, e.Stage, e.Page, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
