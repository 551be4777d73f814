package run

import (
	"time"

	"github.com/John-Robertt/settei/internal/config"
	"github.com/John-Robertt/settei/internal/domain"
)

// Observer 用于把“运行进度/阶段/页面结果”从核心执行流程中解耦出来。
//
// 约束：
// - run 包只负责发事件，不做任何输出（避免污染 stdout 的 JSON 契约）。
// - 事件来自同一个 goroutine，按页面编号顺序到达。
type Observer interface {
	// OnStart 在 ExecuteWithObserver 开始时调用。
	OnStart(eff config.EffectiveConfig)
	// OnPhaseDone 在阶段结束时调用（目前只有 "load"：记录库已读取、头像目录已就绪）。
	OnPhaseDone(name string, fields map[string]any, dur time.Duration)
	// OnPageDone 在某个页面编号处理完成时调用；idx 从 1 开始。
	OnPageDone(idx, total int, res domain.PageResult, dur time.Duration)
}
