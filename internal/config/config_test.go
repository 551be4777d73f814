package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != cwd {
		t.Fatalf("期望 path=%q，实际=%q", cwd, eff.Path)
	}
	if eff.Start != 1 || eff.End != 500 {
		t.Fatalf("期望默认范围 1..500，实际 %d..%d", eff.Start, eff.End)
	}
	if eff.Total() != 500 {
		t.Fatalf("期望 total=500，实际=%d", eff.Total())
	}
	if eff.RecordsFile != filepath.Join(cwd, "characters.json") {
		t.Fatalf("records_file 不符合预期：%q", eff.RecordsFile)
	}
	if eff.ImageDir != filepath.Join(cwd, "images") {
		t.Fatalf("image_dir 不符合预期：%q", eff.ImageDir)
	}
	if eff.PageBaseURL != DefaultPageBaseURL || eff.ImageBaseURL != DefaultImageBaseURL {
		t.Fatalf("默认 URL 不符合预期：%+v", eff)
	}
	if eff.ContentID != "wikibody" || eff.RatePerSec != 1 || eff.CachePages || eff.LogLevel != "info" {
		t.Fatalf("默认值不符合预期：%+v", eff)
	}
}

func TestLoadEffective_MergeOrder(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"start":10,"end":20,"cache_pages":true,"content_id":"main","rate_per_sec":0.5}`))

	// 只有配置文件。
	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Start != 10 || eff.End != 20 || !eff.CachePages || eff.ContentID != "main" || eff.RatePerSec != 0.5 {
		t.Fatalf("配置文件未生效：%+v", eff)
	}

	// 环境变量覆盖配置文件。
	eff, err = LoadEffectiveEnv(cwd, CLIArgs{}, map[string]string{
		"SETTEI_END":          "30",
		"SETTEI_RATE_PER_SEC": "2",
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Start != 10 || eff.End != 30 || eff.RatePerSec != 2 {
		t.Fatalf("环境变量未覆盖配置文件：%+v", eff)
	}

	// CLI 覆盖一切；--cache=false 能关掉配置中的 cache_pages=true。
	eff, err = LoadEffectiveEnv(cwd, CLIArgs{
		Start: 15, StartSet: true,
		End: 16, EndSet: true,
		Cache: false, CacheSet: true,
	}, map[string]string{"SETTEI_END": "30"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Start != 15 || eff.End != 16 || eff.CachePages {
		t.Fatalf("CLI 未覆盖：%+v", eff)
	}
}

func TestLoadEffective_CLIPathReadsConfigThere(t *testing.T) {
	cwd := t.TempDir()
	work := filepath.Join(cwd, "work")
	if err := os.MkdirAll(work, 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeFile(t, filepath.Join(work, FileName), []byte(`{"records_file":"out/chars.json","image_dir":"/abs/img"}`))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{Path: "work"}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != work {
		t.Fatalf("期望 path=%q，实际=%q", work, eff.Path)
	}
	if eff.RecordsFile != filepath.Join(work, "out", "chars.json") {
		t.Fatalf("records_file 应相对 path 解析，实际=%q", eff.RecordsFile)
	}
	if eff.ImageDir != filepath.Clean("/abs/img") {
		t.Fatalf("绝对路径应保持不变，实际=%q", eff.ImageDir)
	}
}

func TestLoadEffective_ConfigPathRelativeToConfigFile(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{"path":"data"}`))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Path != filepath.Join(cwd, "data") {
		t.Fatalf("期望 path=%q，实际=%q", filepath.Join(cwd, "data"), eff.Path)
	}
}

func TestLoadEffective_Dotenv(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, ".env"), []byte("SETTEI_START=7\nSETTEI_END=8\nSETTEI_LOG_LEVEL=debug\n"))

	eff, err := LoadEffectiveEnv(cwd, CLIArgs{}, map[string]string{"SETTEI_END": "9"})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Start != 7 {
		t.Fatalf(".env 未生效：start=%d", eff.Start)
	}
	if eff.End != 9 {
		t.Fatalf("进程环境变量应优先于 .env：end=%d", eff.End)
	}
	if eff.LogLevel != "debug" {
		t.Fatalf("期望 log_level=debug，实际=%q", eff.LogLevel)
	}
}

func TestLoadEffective_RangeInvalid(t *testing.T) {
	cwd := t.TempDir()
	cases := []CLIArgs{
		{Start: 0, StartSet: true},
		{Start: 5, StartSet: true, End: 4, EndSet: true},
	}
	for _, cli := range cases {
		_, err := LoadEffectiveEnv(cwd, cli, nil)
		if Code(err) != ErrCodeRange {
			t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeRange, err, Code(err))
		}
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := []struct{ name, body string }{
		{"坏 JSON", `{"start":`},
		{"page_base_url 相对", `{"page_base_url":"/pages"}`},
		{"image_base_url 协议", `{"image_base_url":"ftp://img.example/"}`},
		{"代理缺 host", `{"proxy":{"url":"http://"}}`},
		{"image_proxy 无代理", `{"image_proxy":true}`},
		{"负速率", `{"rate_per_sec":-1}`},
		{"日志级别", `{"log_level":"loud"}`},
		{"content_id 空白", `{"content_id":"a b"}`},
	}
	for _, c := range cases {
		cwd := t.TempDir()
		writeFile(t, filepath.Join(cwd, FileName), []byte(c.body))
		_, err := LoadEffectiveEnv(cwd, CLIArgs{}, nil)
		if Code(err) != ErrCodeInvalid {
			t.Fatalf("%s：期望 %q，实际 err=%v (code=%q)", c.name, ErrCodeInvalid, err, Code(err))
		}
	}
}

func TestLoadEffective_EnvParseError(t *testing.T) {
	_, err := LoadEffectiveEnv(t.TempDir(), CLIArgs{}, map[string]string{"SETTEI_START": "abc"})
	if Code(err) != ErrCodeInvalid {
		t.Fatalf("期望 %q，实际 err=%v", ErrCodeInvalid, err)
	}
}

func TestLoadEffective_ProxyFromEnv(t *testing.T) {
	eff, err := LoadEffectiveEnv(t.TempDir(), CLIArgs{}, map[string]string{
		"SETTEI_PROXY_URL":   "http://127.0.0.1:8080",
		"SETTEI_IMAGE_PROXY": "true",
	})
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ProxyURL != "http://127.0.0.1:8080" || !eff.ImageProxy {
		t.Fatalf("代理配置未生效：%+v", eff)
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
