package run

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/John-Robertt/settei/internal/avatar"
	"github.com/John-Robertt/settei/internal/config"
	"github.com/John-Robertt/settei/internal/domain"
	"github.com/John-Robertt/settei/internal/infra/cache"
	"github.com/John-Robertt/settei/internal/infra/fsx"
	"github.com/John-Robertt/settei/internal/infra/httpx"
	"github.com/John-Robertt/settei/internal/provider"
	"github.com/John-Robertt/settei/internal/store"
	"github.com/John-Robertt/settei/internal/wiki"
)

// Execute 按编号顺序处理 [start, end] 内尚未入库的页面，并返回对外稳定的 RunReport。
// 单页失败只降级为 item 级结果；记录库读写失败会终止整个循环。
func Execute(ctx context.Context, eff config.EffectiveConfig, f provider.Fetcher) domain.RunReport {
	return ExecuteWithObserver(ctx, eff, f, nil)
}

// ExecuteWithObserver 与 Execute 相同，但允许传入 Observer 以输出进度/阶段信息（由上层决定是否启用）。
func ExecuteWithObserver(ctx context.Context, eff config.EffectiveConfig, f provider.Fetcher, obs Observer) domain.RunReport {
	started := time.Now().UTC()
	log := zerolog.Ctx(ctx)

	if obs != nil {
		obs.OnStart(eff)
	}

	rr := domain.RunReport{
		Path:      eff.Path,
		Start:     eff.Start,
		End:       eff.End,
		StartedAt: started,
		Items:     make([]domain.PageResult, 0, 64),
	}
	finish := func() domain.RunReport {
		rr.FinishedAt = time.Now().UTC()
		rr.Finalize()
		return rr
	}

	if f == nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, "未指定页面 provider"))
		return finish()
	}
	if err := config.ValidateRange(eff.Start, eff.End); err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigRange, err.Error()))
		return finish()
	}

	pageClient, err := httpx.NewPageClient(eff.ProxyURL)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, fmt.Sprintf("proxy.url 无效：%v", err)))
		return finish()
	}
	imageClient, err := httpx.NewImageClient(eff.ProxyURL, eff.ImageProxy)
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, err.Error()))
		return finish()
	}

	loadStarted := time.Now()
	db := store.File{Path: eff.RecordsFile}
	recs, err := db.Load()
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, err.Error()))
		return finish()
	}
	if err := fsx.EnsureDir(eff.ImageDir); err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeIOFailed, fmt.Sprintf("创建头像目录失败：%v", err)))
		return finish()
	}
	if obs != nil {
		obs.OnPhaseDone("load", map[string]any{
			"records": len(recs),
			"pages":   eff.Total(),
		}, time.Since(loadStarted))
	}

	ex, err := wiki.New(wiki.Options{
		ImageBaseURL: eff.ImageBaseURL,
		ContentID:    eff.ContentID,
		Saver:        avatar.Saver{Client: imageClient, Dir: eff.ImageDir},
	})
	if err != nil {
		rr.Items = append(rr.Items, syntheticFailed(domain.ErrCodeConfigInvalid, err.Error()))
		return finish()
	}

	l := &loop{
		fetcher:    f,
		pageClient: pageClient,
		extractor:  ex,
		limiter:    newLimiter(eff.RatePerSec),
	}
	if eff.CachePages {
		cs := cache.New(eff.Path)
		l.cache = &cs
	}

	total := eff.Total()
	for id := domain.PageID(eff.Start); id <= domain.PageID(eff.End); id++ {
		if err := ctx.Err(); err != nil {
			log.Warn().Err(err).Int("page", int(id)).Msg("运行被取消")
			break
		}
		idx := int(id) - eff.Start + 1
		pageStarted := time.Now()

		var (
			res  domain.PageResult
			stop bool
		)
		if recs.Has(id) {
			res = domain.PageResult{Page: int(id), Status: domain.StatusSkipped, Name: recs[id.Key()].Name}
		} else {
			var (
				c  domain.Character
				ok bool
			)
			res, c, ok = l.processPage(ctx, id)
			if ok {
				if err := recs.Put(id, c); err != nil {
					res.Status = domain.StatusSkipped
				} else if err := db.Save(recs); err != nil {
					// 记录没有落盘：该页按失败上报，下次运行会重新处理。
					log.Error().Err(err).Int("page", int(id)).Msg("记录库写入失败，停止运行")
					res.Status = domain.StatusFailed
					res.ErrorCode = domain.ErrCodeIOFailed
					res.ErrorMsg = err.Error()
					stop = true
				}
			}
			logPage(log, res)
		}

		rr.Items = append(rr.Items, res)
		if obs != nil {
			obs.OnPageDone(idx, total, res, time.Since(pageStarted))
		}
		if stop {
			break
		}
	}

	return finish()
}

type loop struct {
	fetcher    provider.Fetcher
	pageClient *http.Client
	extractor  *wiki.Extractor
	limiter    *rate.Limiter
	cache      *cache.Store
}

// processPage 取回并提取单个页面。ok=true 表示产出了一条应入库的记录。
func (l *loop) processPage(ctx context.Context, id domain.PageID) (domain.PageResult, domain.Character, bool) {
	res := domain.PageResult{Page: int(id), Status: domain.StatusFailed}

	html, pageURL, err := l.fetch(ctx, id)
	res.PageURL = pageURL
	if err != nil {
		fillFetchError(&res, err)
		return res, domain.Character{}, false
	}

	out := l.extractor.Extract(ctx, html)
	res.Name = out.Character.Name
	if !out.OK() {
		res.Status = domain.StatusRejected
		res.ErrorCode = domain.ErrCodeStructuralMismatch
		res.ErrorMsg = out.Mismatch.String()
		return res, domain.Character{}, false
	}

	res.Status = domain.StatusSaved
	res.Avatar = out.Character.Avatar
	if out.AvatarErr != nil {
		res.Warning = domain.ErrCodeImageSaveFailed
		res.WarningMsg = fmt.Sprintf("头像保存失败：%s：%v", out.AvatarURL, out.AvatarErr)
	}
	return res, out.Character, true
}

// fetch 优先读页面缓存（命中不占用限速额度），否则限速后走网络并按需写回缓存。
func (l *loop) fetch(ctx context.Context, id domain.PageID) ([]byte, string, error) {
	if l.cache != nil {
		if b, ok, err := l.cache.ReadPage(id); err == nil && ok {
			p, _ := l.cache.PagePath(id)
			return b, p, nil
		}
	}

	if err := l.limiter.Wait(ctx); err != nil {
		return nil, "", &provider.Error{Provider: l.fetcher.Name(), Stage: "fetch", Page: id, Err: err}
	}
	b, pageURL, err := l.fetcher.Fetch(ctx, id, l.pageClient)
	if err != nil {
		return nil, pageURL, &provider.Error{Provider: l.fetcher.Name(), Stage: "fetch", Page: id, Err: err}
	}

	if l.cache != nil {
		if err := l.cache.WritePage(id, b); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int("page", int(id)).Msg("页面缓存写入失败")
		}
	}
	return b, pageURL, nil
}

// newLimiter 的 burst 为 1：严格匀速，不允许攒额度后突发。
func newLimiter(perSec float64) *rate.Limiter {
	if perSec <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(perSec), 1)
}

// logPage 只输出 debug 级别的明细；面向用户的逐页进度由 Observer 负责。
func logPage(log *zerolog.Logger, res domain.PageResult) {
	ev := log.Debug().Int("page", res.Page).Str("status", res.Status)
	if res.PageURL != "" {
		ev = ev.Str("url", res.PageURL)
	}
	if res.Name != "" {
		ev = ev.Str("name", res.Name)
	}
	if res.ErrorCode != "" {
		ev = ev.Str("error_code", res.ErrorCode).Str("reason", res.ErrorMsg)
	}
	if res.Warning != "" {
		ev = ev.Str("warning", res.Warning).Str("warning_msg", res.WarningMsg)
	}
	ev.Msg("页面处理完成")
}

func syntheticFailed(code, msg string) domain.PageResult {
	return domain.PageResult{
		Page:      0,
		Status:    domain.StatusFailed,
		ErrorCode: code,
		ErrorMsg:  msg,
	}
}

func fillFetchError(res *domain.PageResult, err error) {
	res.Status = domain.StatusFailed
	res.ErrorCode = domain.ErrCodeFetchFailed

	var pe *provider.Error
	if errors.As(err, &pe) {
		res.ErrorMsg = humanizeFetchError(pe.Provider, pe.Err)
		return
	}
	res.ErrorMsg = err.Error()
}

func humanizeFetchError(providerName string, err error) string {
	if err == nil {
		return providerName + " 抓取失败"
	}

	// HTTP 非 2xx：尽量给出可操作提示（限流/验证跳转是最常见问题）。
	var hs *provider.HTTPStatusError
	if errors.As(err, &hs) {
		loc := strings.TrimSpace(hs.Location)
		switch {
		case hs.NotFound():
			return fmt.Sprintf("%s 返回 HTTP 404（该编号的页面不存在或已删除）。", providerName)
		case hs.StatusCode == 403 || hs.StatusCode == 429:
			return fmt.Sprintf("%s 返回 HTTP %d（可能触发限流）。建议调低 rate_per_sec 或配置 proxy.url。", providerName, hs.StatusCode)
		case loc != "":
			return fmt.Sprintf("%s 返回 HTTP %d（重定向）：%s", providerName, hs.StatusCode, loc)
		default:
			return fmt.Sprintf("%s 返回 HTTP %d。", providerName, hs.StatusCode)
		}
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Sprintf("%s 抓取被取消。", providerName)
	}
	low := strings.ToLower(err.Error())
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(low, "timeout") {
		return fmt.Sprintf("%s 抓取超时。建议检查网络/代理后重试。", providerName)
	}
	if strings.Contains(low, "tls") || strings.Contains(low, "handshake") {
		return fmt.Sprintf("%s 连接失败（TLS）。建议配置 proxy.url 或稍后重试。", providerName)
	}
	return fmt.Sprintf("%s 抓取失败：%v", providerName, err)
}
