package logx

import (
	"context"
	"io"
	"log"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/bytedance/sonic"
)

// entry 队列元素；done 非空时表示 flush 标记
type entry struct {
	rec   slog.Record
	attrs []slog.Attr
	done  chan struct{}
}

// handler 异步 JSON 行 handler：Handle 只入队，写盘和控制台输出都在 writeLoop
type handler struct {
	cfg     Config
	sink    *fileSink
	console io.Writer
	attrs   []slog.Attr

	entries chan entry
	dropped *atomic.Int64
}

func newHandler(cfg Config) (*handler, error) {
	if cfg.AppName == "" {
		cfg.AppName = "app"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 10000
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "."
	}

	h := &handler{
		cfg:     cfg,
		entries: make(chan entry, cfg.QueueSize),
		dropped: new(atomic.Int64),
	}
	if cfg.ConsoleEnabled {
		h.console = cfg.Console
		if h.console == nil {
			h.console = os.Stdout
		}
	}
	if cfg.Rotate != RotateNone {
		sink, err := newFileSink(cfg)
		if err != nil {
			return nil, err
		}
		h.sink = sink
	}

	go h.writeLoop()
	return h, nil
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.cfg.Level
}

// Handle 队列满直接丢弃，不阻塞调用方
func (h *handler) Handle(_ context.Context, r slog.Record) error {
	select {
	case h.entries <- entry{rec: r.Clone(), attrs: h.attrs}:
	default:
		if h.dropped.Add(1) == 1 {
			log.Println("logx: queue full, dropping records")
		}
	}
	return nil
}

// WithAttrs 共享队列和输出，只追加固定字段
func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

// WithGroup 不支持分组，字段一律平铺
func (h *handler) WithGroup(string) slog.Handler {
	return h
}

// Dropped 因队列满被丢弃的条数
func (h *handler) Dropped() int64 {
	return h.dropped.Load()
}

// flush 等待 flush 之前入队的记录全部写出
func (h *handler) flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case h.entries <- entry{done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *handler) writeLoop() {
	for e := range h.entries {
		if e.done != nil {
			if h.sink != nil {
				_ = h.sink.sync()
			}
			close(e.done)
			continue
		}
		if err := h.write(e); err != nil {
			log.Println("logx: write failed:", err)
		}
	}
}

func (h *handler) write(e entry) error {
	line, err := encodeLine(e)
	if err != nil {
		return err
	}
	if h.sink != nil {
		if err := h.sink.write(e.rec.Time, line); err != nil {
			return err
		}
	}
	if h.console != nil {
		if h.cfg.ConsoleColored {
			_, err = io.WriteString(h.console, levelPrefix(e.rec.Level)+line)
		} else {
			_, err = io.WriteString(h.console, line)
		}
	}
	return err
}

// encodeLine 一条记录一行 JSON；记录自身的字段覆盖 WithAttrs 的同名字段
func encodeLine(e entry) (string, error) {
	data := make(map[string]any, len(e.attrs)+e.rec.NumAttrs()+3)
	if e.rec.Message != "" {
		data[Msg] = e.rec.Message
	}
	for _, a := range e.attrs {
		data[a.Key] = a.Value.Resolve().Any()
	}
	e.rec.Attrs(func(a slog.Attr) bool {
		data[a.Key] = a.Value.Resolve().Any()
		return true
	})
	data["ts"] = e.rec.Time.Format(time.RFC3339Nano)
	data["level"] = e.rec.Level.String()

	line, err := sonic.MarshalString(data)
	if err != nil {
		return "", err
	}
	return line + "\n", nil
}

func levelPrefix(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m[ERROR]\033[0m "
	case level >= slog.LevelWarn:
		return "\033[33m[WARN ]\033[0m "
	case level >= slog.LevelInfo:
		return "\033[32m[INFO ]\033[0m "
	default:
		return "\033[36m[DEBUG]\033[0m "
	}
}
