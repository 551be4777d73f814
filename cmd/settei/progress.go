package main

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/John-Robertt/settei/internal/app/run"
	"github.com/John-Robertt/settei/internal/config"
	"github.com/John-Robertt/settei/internal/domain"
)

var _ run.Observer = (*progressLog)(nil)

// progressLog 把 run 的事件转成日志行（stderr），不污染 stdout 的 JSON 输出契约。
//
// 已入库而跳过的页面只记 debug：重跑 1..500 时它们占绝大多数，info 级别只留有变化的页面。
type progressLog struct {
	log zerolog.Logger

	startedAt time.Time
	saved     int
	skipped   int
	rejected  int
	failed    int
}

func newProgressLog(log zerolog.Logger) *progressLog {
	return &progressLog{log: log}
}

func (p *progressLog) OnStart(eff config.EffectiveConfig) {
	p.startedAt = time.Now()
	p.log.Info().
		Str("path", eff.Path).
		Str("range", fmt.Sprintf("%d..%d", eff.Start, eff.End)).
		Str("page_base_url", eff.PageBaseURL).
		Str("records", eff.RecordsFile).
		Str("images", eff.ImageDir).
		Str("proxy", formatProxy(eff.ProxyURL)).
		Str("image_proxy", onOff(eff.ImageProxy)).
		Str("rate", formatRate(eff.RatePerSec)).
		Str("cache_pages", onOff(eff.CachePages)).
		Msg("settei run")
}

func (p *progressLog) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	switch name {
	case "load":
		p.log.Info().
			Int("records", intField(fields, "records")).
			Int("pages", intField(fields, "pages")).
			Str("took", formatShortDuration(dur)).
			Msg("记录库已加载")
	default:
		// 兜底：未知阶段也不要静默（便于调试/演进）。
		p.log.Info().Str("phase", name).Str("took", formatShortDuration(dur)).Msg("阶段完成")
	}
}

func (p *progressLog) OnPageDone(idx, total int, res domain.PageResult, dur time.Duration) {
	prefix := fmt.Sprintf("[%d/%d]", idx, total)

	switch res.Status {
	case domain.StatusSaved:
		p.saved++
		var ev *zerolog.Event
		if res.Warning != "" {
			ev = p.log.Warn().Str("warning", res.Warning).Str("reason", truncate(res.WarningMsg, 160))
		} else {
			ev = p.log.Info()
		}
		ev.Int("page", res.Page).Str("name", res.Name).Str("avatar", res.Avatar).
			Str("took", formatShortDuration(dur)).Msg(prefix + " SAVED")
	case domain.StatusSkipped:
		p.skipped++
		p.log.Debug().Int("page", res.Page).Str("name", res.Name).Msg(prefix + " SKIP（已入库）")
	case domain.StatusRejected:
		p.rejected++
		p.log.Info().Int("page", res.Page).Str("name", res.Name).Str("reason", res.ErrorMsg).
			Msg(prefix + " REJECT")
	default:
		p.failed++
		p.log.Warn().Int("page", res.Page).Str("error_code", res.ErrorCode).
			Str("reason", truncate(res.ErrorMsg, 160)).Msg(prefix + " FAIL")
	}

	if idx == total {
		p.log.Info().
			Int("saved", p.saved).Int("skipped", p.skipped).
			Int("rejected", p.rejected).Int("failed", p.failed).
			Str("elapsed", formatElapsed(time.Since(p.startedAt))).
			Msg("全部页面处理完毕")
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func formatRate(perSec float64) string {
	if perSec <= 0 {
		return "unlimited"
	}
	return fmt.Sprintf("%g/s", perSec)
}

func formatProxy(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "off"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "on (" + truncate(raw, 120) + ")"
	}
	auth := "off"
	if u.User != nil {
		auth = "on"
	}
	return fmt.Sprintf("on (%s://%s, auth=%s)", u.Scheme, u.Host, auth)
}

// truncate 按 rune 截断，避免切坏日文字符。
func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if max <= 0 || len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	sec := int(d.Seconds())
	h := sec / 3600
	m := (sec % 3600) / 60
	s := sec % 60
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
