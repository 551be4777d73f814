package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/John-Robertt/settei/internal/app/run"
	"github.com/John-Robertt/settei/internal/config"
	"github.com/John-Robertt/settei/internal/domain"
	"github.com/John-Robertt/settei/internal/infra/fsx"
	"github.com/John-Robertt/settei/internal/provider/atwiki"
)

func main() {
	args := os.Args[1:]
	if len(args) == 0 || isHelp(args[0]) {
		printUsage()
		return
	}

	switch args[0] {
	case "run":
		if code := runCmd(args[1:]); code != 0 {
			os.Exit(code)
		}
	default:
		fmt.Fprintf(os.Stderr, "未知命令：%q\n\n", args[0])
		printUsage()
		os.Exit(2)
	}
}

func runCmd(args []string) int {
	for _, a := range args {
		if isHelp(a) {
			printRunUsage()
			return 0
		}
	}

	ra, err := parseRunArgs(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "参数错误：%v\n\n", err)
		printRunUsage()
		return 2
	}

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		return 1
	}
	cwdAbs, _ := filepath.Abs(cwd)

	eff, err := config.LoadEffective(cwd, config.CLIArgs{
		Path:     ra.Path,
		Start:    ra.Start,
		StartSet: ra.StartSet,
		End:      ra.End,
		EndSet:   ra.EndSet,
		Cache:    ra.Cache,
		CacheSet: ra.CacheSet,
	})
	if err != nil {
		rr := reportForConfigError(cwdAbs, err)
		emitReport(rr)
		return 1
	}

	interactive := isTTY(os.Stderr)
	logger := newLogger(os.Stderr, eff.LogLevel, interactive)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithContext(ctx)

	fetcher := atwiki.Provider{BaseURL: eff.PageBaseURL}
	rr := run.ExecuteWithObserver(ctx, eff, fetcher, newProgressLog(logger))

	if err := writeReportFile(eff.Path, rr); err != nil {
		logger.Error().Err(err).Msg("写入 report.json 失败")
		emitReport(rr)
		return 1
	}

	emitReport(rr)
	if interactive {
		emitLocations(os.Stderr, eff)
	}
	if rr.Summary.Failed == 0 {
		return 0
	}
	return 1
}

type runArgs struct {
	Path string

	Start    int
	StartSet bool

	End    int
	EndSet bool

	Cache    bool
	CacheSet bool
}

func parseRunArgs(args []string) (runArgs, error) {
	ra := runArgs{}

	for i := 0; i < len(args); i++ {
		a := args[i]
		switch {
		case a == "--start" || a == "--end":
			if i+1 >= len(args) {
				return runArgs{}, fmt.Errorf("%s 需要一个值", a)
			}
			i++
			if err := ra.setInt(a, args[i]); err != nil {
				return runArgs{}, err
			}
		case strings.HasPrefix(a, "--start=") || strings.HasPrefix(a, "--end="):
			name, v, _ := strings.Cut(a, "=")
			if err := ra.setInt(name, v); err != nil {
				return runArgs{}, err
			}
		case a == "--cache":
			ra.Cache = true
			ra.CacheSet = true
		case strings.HasPrefix(a, "--cache="):
			v := strings.TrimPrefix(a, "--cache=")
			switch v {
			case "true":
				ra.Cache = true
			case "false":
				ra.Cache = false
			default:
				return runArgs{}, fmt.Errorf("--cache 只能是 true 或 false，实际是 %q", v)
			}
			ra.CacheSet = true
		case strings.HasPrefix(a, "-"):
			return runArgs{}, fmt.Errorf("未知参数 %q", a)
		default:
			if ra.Path != "" {
				return runArgs{}, fmt.Errorf("重复的 path：%q 与 %q", ra.Path, a)
			}
			ra.Path = a
		}
	}

	// 只做“是否为整数”的检查；范围合法性由 config 统一校验（带 error_code）。
	return ra, nil
}

func (ra *runArgs) setInt(flag, v string) error {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s 必须是整数，实际是 %q", flag, v)
	}
	switch flag {
	case "--start":
		ra.Start, ra.StartSet = n, true
	case "--end":
		ra.End, ra.EndSet = n, true
	}
	return nil
}

func isHelp(s string) bool {
	return s == "-h" || s == "--help" || s == "help"
}

func printUsage() {
	fmt.Fprint(os.Stdout, `用法：
  settei run [path] [--start N] [--end N] [--cache[=true|false]]

命令：
  run    抓取角色页面并写入记录库（可重复运行，已入库的页面会跳过）

使用 "settei run --help" 查看详细说明。
`)
}

func printRunUsage() {
	fmt.Fprint(os.Stdout, `用法：
  settei run [path] [--start N] [--end N] [--cache[=true|false]]

参数：
  path        工作目录（记录库、头像、cache/ 都放在这里；默认当前目录）
  --start     起始页面编号（含，默认 1）
  --end       结束页面编号（含，默认 500）
  --cache     缓存原始页面到 <path>/cache/pages/，命中缓存时不再联网
  -h, --help  显示帮助

其余配置见 <path>/settei.json 或 SETTEI_* 环境变量（支持 .env）。
`)
}

func emitReport(rr domain.RunReport) {
	summary := fmt.Sprintf("完成：saved=%d skipped=%d rejected=%d failed=%d",
		rr.Summary.Saved, rr.Summary.Skipped, rr.Summary.Rejected, rr.Summary.Failed,
	)
	if isTTY(os.Stdout) {
		fmt.Fprintln(os.Stdout, summary)
		if rr.Summary.Failed > 0 {
			for _, it := range rr.Items {
				if it.Status != domain.StatusFailed {
					continue
				}
				key := "<run>"
				if it.Page > 0 {
					key = strconv.Itoa(it.Page)
				}
				fmt.Fprintf(os.Stderr, "%s %s: %s\n", key, it.ErrorCode, it.ErrorMsg)
			}
		}
		return
	}

	// stdout 非 TTY：stdout 必须且仅输出一个 RunReport JSON（日志/摘要走 stderr）。
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(rr)
	fmt.Fprintln(os.Stderr, summary)
}

func reportForConfigError(cwdAbs string, err error) domain.RunReport {
	now := time.Now().UTC()
	code := config.Code(err)
	if code == "" {
		code = domain.ErrCodeConfigInvalid
	}
	rr := domain.RunReport{
		Path:       cwdAbs,
		StartedAt:  now,
		FinishedAt: now,
		Items: []domain.PageResult{{
			Status:    domain.StatusFailed,
			ErrorCode: code,
			ErrorMsg:  err.Error(),
		}},
	}
	rr.Finalize()
	return rr
}

func writeReportFile(root string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return fsx.WriteFileAtomic(filepath.Join(root, "cache"), "report.json", b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func emitLocations(w *os.File, eff config.EffectiveConfig) {
	// 完成后提示产物位置，且不影响 stdout JSON 契约。
	fmt.Fprintf(w, "records: %s\n", eff.RecordsFile)
	fmt.Fprintf(w, "images: %s\n", eff.ImageDir)
	fmt.Fprintf(w, "report: %s\n", filepath.Join(eff.Path, "cache", "report.json"))
}
