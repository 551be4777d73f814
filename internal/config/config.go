package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	// ErrCodeInvalid 表示配置文件/环境变量无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
	// ErrCodeRange 表示页面编号范围不合法（start < 1 或 end < start）。
	ErrCodeRange = "config_range_invalid"
)

const (
	// FileName 是工作目录下的可选配置文件。
	FileName = "settei.json"
	// EnvPrefix 是环境变量前缀，例如 SETTEI_START。
	EnvPrefix = "SETTEI_"

	DefaultStart        = 1
	DefaultEnd          = 500
	DefaultPageBaseURL  = "https://w.atwiki.jp/moshimorpg/pages"
	DefaultImageBaseURL = "https://img.atwiki.jp/moshimorpg/"
	DefaultContentID    = "wikibody"
	DefaultRecordsFile  = "characters.json"
	DefaultImageDir     = "images"
	DefaultRatePerSec   = 1.0
	DefaultLogLevel     = "info"
)

// CLIArgs 是 CLI 暴露的入口参数，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --cache=false 必须能覆盖 cache_pages=true。
type CLIArgs struct {
	Path string

	Start    int
	StartSet bool

	End    int
	EndSet bool

	Cache    bool
	CacheSet bool
}

// FileConfig 对应 settei.json 的解析结构；指针字段用于区分“未写”与“写了零值”。
type FileConfig struct {
	Path         string       `json:"path"`
	Start        *int         `json:"start"`
	End          *int         `json:"end"`
	PageBaseURL  string       `json:"page_base_url"`
	ImageBaseURL string       `json:"image_base_url"`
	ContentID    string       `json:"content_id"`
	RecordsFile  string       `json:"records_file"`
	ImageDir     string       `json:"image_dir"`
	Proxy        *ProxyConfig `json:"proxy"`
	ImageProxy   *bool        `json:"image_proxy"`
	RatePerSec   *float64     `json:"rate_per_sec"`
	CachePages   *bool        `json:"cache_pages"`
	LogLevel     string       `json:"log_level"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EnvConfig 是 SETTEI_* 环境变量层；未设置的变量保持 nil，不参与覆盖。
type EnvConfig struct {
	Path         *string  `env:"PATH"`
	Start        *int     `env:"START"`
	End          *int     `env:"END"`
	PageBaseURL  *string  `env:"PAGE_BASE_URL"`
	ImageBaseURL *string  `env:"IMAGE_BASE_URL"`
	ContentID    *string  `env:"CONTENT_ID"`
	RecordsFile  *string  `env:"RECORDS_FILE"`
	ImageDir     *string  `env:"IMAGE_DIR"`
	ProxyURL     *string  `env:"PROXY_URL"`
	ImageProxy   *bool    `env:"IMAGE_PROXY"`
	RatePerSec   *float64 `env:"RATE_PER_SEC"`
	CachePages   *bool    `env:"CACHE_PAGES"`
	LogLevel     *string  `env:"LOG_LEVEL"`
}

// EffectiveConfig 是合并并规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// Path 是工作目录（绝对路径）；RecordsFile/ImageDir/cache 都相对它解析。
	Path string

	Start int
	End   int

	PageBaseURL  string
	ImageBaseURL string
	ContentID    string

	// RecordsFile 与 ImageDir 已解析为绝对路径。
	RecordsFile string
	ImageDir    string

	ProxyURL   string
	ImageProxy bool

	// RatePerSec 为 0 表示不限速。
	RatePerSec float64
	CachePages bool
	LogLevel   string
}

// Total 返回范围内的页面数。
func (c EffectiveConfig) Total() int { return c.End - c.Start + 1 }

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeRange:
		return fmt.Sprintf("%s：页面范围无效：%v", e.Code, e.Err)
	case ErrCodeInvalid:
		if e.Path == "" {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 settei.json、.env 与进程环境变量，然后与 CLI 参数合并为最终配置。
func LoadEffective(cwd string, cli CLIArgs) (EffectiveConfig, error) {
	return LoadEffectiveEnv(cwd, cli, environMap(os.Environ()))
}

// LoadEffectiveEnv 与 LoadEffective 相同，但环境变量由调用方给出（便于测试）。
//
// 发现规则：
// 1) CLI 提供 path：尝试读取 <path>/settei.json（可选）
// 2) CLI 未提供 path：尝试读取 <cwd>/settei.json（可选），其中的 path 决定工作目录
// .env 在配置文件同目录查找（可选），不覆盖已存在的环境变量。
//
// 覆盖优先级（固定）：CLI > 环境变量 > 配置文件 > 默认值。
func LoadEffectiveEnv(cwd string, cli CLIArgs, environ map[string]string) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgDir := cwdAbs
	if strings.TrimSpace(cli.Path) != "" {
		cfgDir = absCleanFrom(cwdAbs, cli.Path)
	}
	cfgPath := filepath.Join(cfgDir, FileName)

	fc, _, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	dotenvPath := filepath.Join(cfgDir, ".env")
	envs, err := withDotenv(dotenvPath, environ)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: dotenvPath, Err: err}
	}
	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: EnvPrefix, Environment: envs}); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: "env " + EnvPrefix + "*", Err: err}
	}

	return merge(cwdAbs, cli, ec, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, ec EnvConfig, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, a ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, a...)}
	}

	// path：CLI > env > config > cwd
	path := cwdAbs
	switch {
	case strings.TrimSpace(cli.Path) != "":
		path = absCleanFrom(cwdAbs, cli.Path)
	case ec.Path != nil && strings.TrimSpace(*ec.Path) != "":
		path = absCleanFrom(cwdAbs, *ec.Path)
	case strings.TrimSpace(fc.Path) != "":
		path = absCleanFrom(filepath.Dir(cfgPath), fc.Path)
	}

	start := pickInt(DefaultStart, fc.Start, ec.Start, cli.Start, cli.StartSet)
	end := pickInt(DefaultEnd, fc.End, ec.End, cli.End, cli.EndSet)
	if err := ValidateRange(start, end); err != nil {
		return EffectiveConfig{}, err
	}

	pageBase := pickString(DefaultPageBaseURL, fc.PageBaseURL, ec.PageBaseURL)
	if err := validateHTTPURL(pageBase); err != nil {
		return EffectiveConfig{}, invalid("page_base_url 无效：%v", err)
	}
	imageBase := pickString(DefaultImageBaseURL, fc.ImageBaseURL, ec.ImageBaseURL)
	if err := validateHTTPURL(imageBase); err != nil {
		return EffectiveConfig{}, invalid("image_base_url 无效：%v", err)
	}

	contentID := pickString(DefaultContentID, fc.ContentID, ec.ContentID)
	if strings.ContainsAny(contentID, " \t\r\n") {
		return EffectiveConfig{}, invalid("content_id 不能包含空白：%q", contentID)
	}

	recordsFile := absCleanFrom(path, pickString(DefaultRecordsFile, fc.RecordsFile, ec.RecordsFile))
	imageDir := absCleanFrom(path, pickString(DefaultImageDir, fc.ImageDir, ec.ImageDir))

	proxyFile := ""
	if fc.Proxy != nil {
		proxyFile = fc.Proxy.URL
	}
	proxyURL := pickString("", proxyFile, ec.ProxyURL)
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return EffectiveConfig{}, invalid("proxy.url 无效：%q", proxyURL)
		}
	}
	imageProxy := pickBool(false, fc.ImageProxy, ec.ImageProxy, false, false)
	if imageProxy && proxyURL == "" {
		return EffectiveConfig{}, invalid("image_proxy=true 但 proxy.url 为空")
	}

	rate := DefaultRatePerSec
	if fc.RatePerSec != nil {
		rate = *fc.RatePerSec
	}
	if ec.RatePerSec != nil {
		rate = *ec.RatePerSec
	}
	if rate < 0 {
		return EffectiveConfig{}, invalid("rate_per_sec 不能为负数：%v", rate)
	}

	logLevel := strings.ToLower(pickString(DefaultLogLevel, fc.LogLevel, ec.LogLevel))
	if _, err := zerolog.ParseLevel(logLevel); err != nil || logLevel == "" {
		return EffectiveConfig{}, invalid("log_level 无效：%q", logLevel)
	}

	return EffectiveConfig{
		Path:         path,
		Start:        start,
		End:          end,
		PageBaseURL:  strings.TrimRight(pageBase, "/"),
		ImageBaseURL: imageBase,
		ContentID:    contentID,
		RecordsFile:  recordsFile,
		ImageDir:     imageDir,
		ProxyURL:     proxyURL,
		ImageProxy:   imageProxy,
		RatePerSec:   rate,
		CachePages:   pickBool(false, fc.CachePages, ec.CachePages, cli.Cache, cli.CacheSet),
		LogLevel:     logLevel,
	}, nil
}

// ValidateRange 校验闭区间 [start, end]。
func ValidateRange(start, end int) error {
	if start < 1 {
		return &Error{Code: ErrCodeRange, Err: fmt.Errorf("start 必须 >= 1，实际 %d", start)}
	}
	if end < start {
		return &Error{Code: ErrCodeRange, Err: fmt.Errorf("end 必须 >= start，实际 start=%d end=%d", start, end)}
	}
	return nil
}

func pickInt(def int, file, envv *int, cli int, cliSet bool) int {
	v := def
	if file != nil {
		v = *file
	}
	if envv != nil {
		v = *envv
	}
	if cliSet {
		v = cli
	}
	return v
}

func pickBool(def bool, file, envv *bool, cli bool, cliSet bool) bool {
	v := def
	if file != nil {
		v = *file
	}
	if envv != nil {
		v = *envv
	}
	if cliSet {
		v = cli
	}
	return v
}

// pickString 中空白字符串视为“未设置”。
func pickString(def, file string, envv *string) string {
	v := def
	if s := strings.TrimSpace(file); s != "" {
		v = s
	}
	if envv != nil {
		if s := strings.TrimSpace(*envv); s != "" {
			v = s
		}
	}
	return v
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("必须是 http/https：%q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("缺少 host：%q", raw)
	}
	return nil
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return filepath.Clean(base)
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件。
// 返回值 exists 表示该文件是否存在（不存在不算错误）。
func readFileConfig(path string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, false, nil
		}
		return FileConfig{}, false, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, true, err
	}
	return fc, true, nil
}

// withDotenv 把 .env 中的变量补进 environ；已存在的变量不被覆盖（与 godotenv.Load 一致）。
func withDotenv(path string, environ map[string]string) (map[string]string, error) {
	out := make(map[string]string, len(environ))
	vals, err := godotenv.Read(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	for k, v := range vals {
		out[k] = v
	}
	for k, v := range environ {
		out[k] = v
	}
	return out, nil
}

func environMap(kvs []string) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		m[k] = v
	}
	return m
}
