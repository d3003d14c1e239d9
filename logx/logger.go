package logx

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/imattdu/tracectx/tracex"
)

// Logger 业务和组件使用的日志接口；tag 标识日志类别，kv 为成对的键值
type Logger interface {
	Debug(ctx context.Context, tag string, msg any, kv ...any)
	Info(ctx context.Context, tag string, msg any, kv ...any)
	Warn(ctx context.Context, tag string, msg any, kv ...any)
	Error(ctx context.Context, tag string, msg any, kv ...any)
}

// Flusher 由 New/Init 创建的 Logger 实现
type Flusher interface {
	Flush(ctx context.Context) error
}

type loggerImpl struct {
	h      *handler
	mirror bool
}

func newLogger(cfg Config) (*loggerImpl, error) {
	h, err := newHandler(cfg)
	if err != nil {
		return nil, err
	}
	return &loggerImpl{h: h, mirror: cfg.MirrorToSpan}, nil
}

func (l *loggerImpl) Debug(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelDebug, tag, msg, kv...)
}

func (l *loggerImpl) Info(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelInfo, tag, msg, kv...)
}

func (l *loggerImpl) Warn(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelWarn, tag, msg, kv...)
}

func (l *loggerImpl) Error(ctx context.Context, tag string, msg any, kv ...any) {
	l.log(ctx, slog.LevelError, tag, msg, kv...)
}

// Flush 等待已入队的日志写出
func (l *loggerImpl) Flush(ctx context.Context) error {
	if l == nil || l.h == nil {
		return nil
	}
	return l.h.flush(ctx)
}

// Handler 以 slog.Handler 形式暴露，方便接入 slog.New
func (l *loggerImpl) Handler() slog.Handler {
	return l.h
}

func (l *loggerImpl) log(ctx context.Context, level slog.Level, tag string, msg any, kv ...any) {
	if l == nil || l.h == nil {
		return
	}
	// span 镜像不受文件日志级别影响
	if l.mirror {
		mirrorToSpan(ctx, level, tag, msg, kv...)
	}
	if !l.h.Enabled(ctx, level) {
		return
	}

	rec := slog.NewRecord(time.Now(), level, "", 0)
	rec.AddAttrs(encodeLog(ctx, tag, msg, kv...)...)
	_ = l.h.Handle(ctx, rec)
}

// mirrorToSpan 只写处于活动状态的 span，错误忽略
func mirrorToSpan(ctx context.Context, level slog.Level, tag string, msg any, kv ...any) {
	tc := tracex.FromContext(ctx)
	if tc == nil || tc.State() != tracex.StateActive {
		return
	}
	_ = tc.LogLevel(strings.ToLower(level.String()), spanFields(tag, msg, kv...))
}

// ---------- 全局 logger ----------

var defaultLogger *loggerImpl

// Init 初始化全局 logger，main 中调用一次
func Init(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defaultLogger = l
	return nil
}

// New 独立的 Logger 实例
func New(cfg Config) (Logger, error) {
	l, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// L 全局 logger，未 Init 时为 nil
func L() Logger {
	if defaultLogger == nil {
		return nil
	}
	return defaultLogger
}

// Flush 全局 logger 的 Flush，进程退出前调用
func Flush(ctx context.Context) error {
	return defaultLogger.Flush(ctx)
}

func Debug(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelDebug, tag, msg, kv...)
}

func Info(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelInfo, tag, msg, kv...)
}

func Warn(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelWarn, tag, msg, kv...)
}

func Error(ctx context.Context, tag string, msg any, kv ...any) {
	defaultLogger.log(ctx, slog.LevelError, tag, msg, kv...)
}
