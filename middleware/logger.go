package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracectx/logx"
)

// 访问日志里请求体 / 响应体最多保留的字节数
const maxLoggedBody = 4 << 10

// bodyRecorder 边写响应边保留前 maxLoggedBody 字节
type bodyRecorder struct {
	gin.ResponseWriter
	buf bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	if room := maxLoggedBody - w.buf.Len(); room > 0 {
		w.buf.Write(b[:min(room, len(b))])
	}
	return w.ResponseWriter.Write(b)
}

var accessLogger logx.Logger

// InitAccessLogger logger 为空时写到 logs/access-*.log
func InitAccessLogger(logger logx.Logger) error {
	if logger == nil {
		l, err := logx.New(logx.Config{
			AppName:    "access",
			Level:      slog.LevelInfo,
			LogDir:     "logs",
			MaxBackups: 24,
		})
		if err != nil {
			return err
		}
		logger = l
	}
	accessLogger = logger
	return nil
}

func access() logx.Logger {
	if accessLogger != nil {
		return accessLogger
	}
	return logx.L()
}

// AccessMiddleware 请求进入和处理完成各一条日志。
// 放在 TraceMiddleware 之后，trace_id / span_id / uuid 由 logx 从请求 ctx 中取。
func AccessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		l := access()
		if l == nil {
			c.Next()
			return
		}

		req := c.Request
		fields := map[string]any{
			logx.Remote: c.ClientIP(),
			logx.Method: req.Method,
			logx.Path:   req.URL.Path,
			logx.Query:  req.URL.RawQuery,
		}
		if body, err := readBody(c); err != nil {
			l.Warn(req.Context(), logx.TagRequestIn, err, logx.Path, req.URL.Path)
		} else if body != nil {
			fields[logx.Body] = body
		}
		l.Info(req.Context(), logx.TagRequestIn, fields)

		rec := &bodyRecorder{ResponseWriter: c.Writer}
		c.Writer = rec
		start := time.Now()
		c.Next()

		fields["status"] = c.Writer.Status()
		fields[logx.Response] = decodeBody(rec.buf.Bytes(), c.Writer.Header().Get("Content-Type"))
		fields[logx.Cost] = time.Since(start).Milliseconds()
		l.Info(c.Request.Context(), logx.TagRequestOut, fields)
	}
}

// readBody 读出请求体并放回，供后续 handler 再读
func readBody(c *gin.Context) (any, error) {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return nil, nil
	}
	raw, err := io.ReadAll(c.Request.Body)
	_ = c.Request.Body.Close()
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	return decodeBody(raw[:min(len(raw), maxLoggedBody)], c.ContentType()), nil
}

// decodeBody JSON 解析成结构化字段，失败或非 JSON 时保留原文
func decodeBody(raw []byte, contentType string) any {
	if len(raw) == 0 {
		return ""
	}
	if strings.Contains(contentType, "json") {
		var v any
		if err := sonic.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}
