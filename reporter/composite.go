package reporter

import (
	"context"

	"go.uber.org/multierr"

	"github.com/imattdu/tracectx/tracex"
)

type composite struct {
	reporters []tracex.Reporter
}

// Composite 同一个 span 发给所有 reporter
func Composite(reporters ...tracex.Reporter) tracex.Reporter {
	rs := make([]tracex.Reporter, 0, len(reporters))
	for _, r := range reporters {
		if r != nil {
			rs = append(rs, r)
		}
	}
	return &composite{reporters: rs}
}

func (c *composite) Report(s *tracex.Span) {
	for _, r := range c.reporters {
		r.Report(s)
	}
}

func (c *composite) Flush(ctx context.Context) error {
	var err error
	for _, r := range c.reporters {
		err = multierr.Append(err, r.Flush(ctx))
	}
	return err
}

func (c *composite) Close(ctx context.Context) error {
	var err error
	for _, r := range c.reporters {
		err = multierr.Append(err, r.Close(ctx))
	}
	return err
}

// Dropped 各下游丢弃数之和
func (c *composite) Dropped() int64 {
	var n int64
	for _, r := range c.reporters {
		if d, ok := r.(dropCounter); ok {
			n += d.Dropped()
		}
	}
	return n
}
