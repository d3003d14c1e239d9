package reporter

import (
	"context"
	"net"

	"github.com/bytedance/sonic"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/tracex"
)

// udpSender 发往 agent 的 JSON 包，超过包大小上限时对半拆分
type udpSender struct {
	opts options
	conn net.Conn
}

// NewUDP addr 形如 127.0.0.1:6831
func NewUDP(addr string, opts ...Option) (tracex.Reporter, error) {
	o := buildOptions(opts)
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, errorx.Wrap(err, errorx.ErrReporter,
			errorx.WithService(errorx.ServiceReporter),
			errorx.WithMessage("dial agent"),
			errorx.WithField("addr", addr))
	}
	return newBatcher("udp", &udpSender{opts: o, conn: conn}, o), nil
}

func (u *udpSender) send(ctx context.Context, spans []*tracex.Span) error {
	packets, dropped := u.pack(spans)
	for _, s := range dropped {
		u.opts.warn(ctx, logx.TagSpanDropped, "span exceeds max packet size",
			logx.TraceID, s.TraceID, logx.SpanID, s.SpanID, "max_packet_size", u.opts.maxPacketSize)
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = u.conn.SetWriteDeadline(dl)
	}
	for _, p := range packets {
		if _, err := u.conn.Write(p); err != nil {
			return errorx.Wrap(err, errorx.ErrReporter,
				errorx.WithService(errorx.ServiceReporter),
				errorx.WithMessage("write udp packet"))
		}
	}
	return nil
}

// pack 编码为不超过 maxPacketSize 的包；单个 span 仍然超限时丢弃
func (u *udpSender) pack(spans []*tracex.Span) (packets [][]byte, dropped []*tracex.Span) {
	if len(spans) == 0 {
		return nil, nil
	}
	data, err := sonic.Marshal(newBatch(u.opts.service, spans))
	if err != nil {
		return nil, spans
	}
	if len(data) <= u.opts.maxPacketSize {
		return [][]byte{data}, nil
	}
	if len(spans) == 1 {
		return nil, spans
	}
	mid := len(spans) / 2
	lp, ld := u.pack(spans[:mid])
	rp, rd := u.pack(spans[mid:])
	return append(lp, rp...), append(ld, rd...)
}

func (u *udpSender) close(context.Context) error {
	return u.conn.Close()
}
