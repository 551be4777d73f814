package main

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// newLogger 构造 CLI 的 logger：交互终端用 ConsoleWriter，否则输出 JSON 行。
// level 已由 config 校验；解析失败时退回 info。
func newLogger(w io.Writer, level string, console bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger()
}
