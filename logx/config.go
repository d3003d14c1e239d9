package logx

import (
	"io"
	"log/slog"
)

type RotateMode int

const (
	RotateHourly RotateMode = iota // 按小时切（默认）
	RotateSize                     // 按大小切
	RotateNone                     // 不写文件，只输出到控制台
)

type Config struct {
	AppName string     // 文件名前缀
	Level   slog.Level // 最小级别

	LogDir string
	Rotate RotateMode

	// RotateSize 时单个文件上限，<=0 不切
	MaxFileSizeMB int
	// 最多保留的历史文件数，<=0 不清理
	MaxBackups int

	ConsoleEnabled bool
	ConsoleColored bool
	// Console 控制台输出目标，默认 os.Stdout
	Console io.Writer

	// 异步队列大小，<=0 为 10000
	QueueSize int

	// MirrorToSpan 每条日志同时写到 ctx 中当前 span（span 未激活时忽略）
	MirrorToSpan bool
}
