package logging

import (
	"io"
	"strings"

	"github.com/rs/zerolog"
)

// New 构造一个控制台友好的 zerolog.Logger。
// level: "debug" | "info" | "warn" | "error"，其他值按 info 处理。
// 日志只写 w（CLI 传 stderr），stdout 留给报告；color 由调用方按是否 TTY 决定。
func New(level string, w io.Writer, color bool) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05", NoColor: !color}
	return zerolog.New(out).With().Timestamp().Logger().Level(ParseLevel(level))
}

// ParseLevel 把配置中的级别字符串映射为 zerolog.Level。
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
