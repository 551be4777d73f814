package domain

import (
	"encoding/json"
	"sort"
	"time"
)

const (
	StatusSaved    = "saved"
	StatusSkipped  = "skipped"
	StatusRejected = "rejected"
	StatusFailed   = "failed"
)

const (
	ErrCodeStructuralMismatch = "structural_mismatch"
	ErrCodeFetchFailed        = "fetch_failed"
	ErrCodeImageSaveFailed    = "image_save_failed"
	ErrCodeIOFailed           = "io_failed"
	ErrCodeConfigInvalid      = "config_invalid"
	ErrCodeConfigRange        = "config_range_invalid"
)

// RunReport 是对外稳定输出（report.json / stdout JSON）的结构。
type RunReport struct {
	Path  string `json:"path"`
	Start int    `json:"start"`
	End   int    `json:"end"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Summary ReportSummary `json:"summary"`
	Items   []PageResult  `json:"items"`
}

type ReportSummary struct {
	Saved    int `json:"saved"`
	Skipped  int `json:"skipped"`
	Rejected int `json:"rejected"`
	Failed   int `json:"failed"`
}

// PageResult 记录单个页面编号的处理结果。
// Page==0 表示与具体页面无关的合成条目（配置/持久化失败）。
type PageResult struct {
	Page    int    `json:"page"`
	PageURL string `json:"page_url"`
	Status  string `json:"status"`
	Name    string `json:"name"`
	Avatar  string `json:"avatar"`

	ErrorCode string `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`

	// Warning 用于“记录已保存但有降级”的情况（例如头像保存失败）。
	Warning    string `json:"warning"`
	WarningMsg string `json:"warning_msg"`
}

// Finalize 做三件事：
// 1) 时间统一为 UTC
// 2) items 按页面编号升序；Page==0 的合成条目排在最后
// 3) summary 由 items 计算得出
func (r *RunReport) Finalize() {
	r.StartedAt = r.StartedAt.UTC()
	r.FinishedAt = r.FinishedAt.UTC()

	sort.SliceStable(r.Items, func(i, j int) bool {
		a := r.Items[i].Page
		b := r.Items[j].Page
		if a == 0 {
			return false
		}
		if b == 0 {
			return true
		}
		return a < b
	})

	var s ReportSummary
	for _, it := range r.Items {
		switch it.Status {
		case StatusSaved:
			s.Saved++
		case StatusSkipped:
			s.Skipped++
		case StatusRejected:
			s.Rejected++
		case StatusFailed:
			s.Failed++
		}
	}
	r.Summary = s
}

// MarshalJSON 保证 items 为空时输出 [] 而不是 null。
func (r RunReport) MarshalJSON() ([]byte, error) {
	type Alias RunReport
	a := Alias(r)
	if a.Items == nil {
		a.Items = []PageResult{}
	}
	return json.Marshal(a)
}
