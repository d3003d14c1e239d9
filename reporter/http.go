package reporter

import (
	"context"
	"net/http"

	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/httpclient"
	"github.com/imattdu/tracectx/tracex"
)

type httpSender struct {
	opts     options
	endpoint string
	client   *httpclient.Client
}

// NewHTTP 把批量 span 以 JSON POST 到 collector，重试交给 httpclient
func NewHTTP(endpoint string, opts ...Option) (tracex.Reporter, error) {
	o := buildOptions(opts)
	c := o.client
	if c == nil {
		var err error
		c, err = httpclient.New(
			httpclient.WithDefaultTimeout(o.sendTimeout),
			httpclient.WithRetry(3, nil, nil),
			httpclient.WithStatsHook(httpclient.LogStats),
		)
		if err != nil {
			return nil, errorx.Wrap(err, errorx.ErrReporter,
				errorx.WithService(errorx.ServiceReporter),
				errorx.WithMessage("build http client"))
		}
	}
	return newBatcher("http", &httpSender{opts: o, endpoint: endpoint, client: c}, o), nil
}

func (h *httpSender) send(ctx context.Context, spans []*tracex.Span) error {
	var raw []byte
	resp, err := h.client.PostJSON(ctx, h.endpoint, newBatch(h.opts.service, spans), &raw)
	if err != nil {
		return errorx.Wrap(err, errorx.ErrReporter,
			errorx.WithService(errorx.ServiceReporter),
			errorx.WithField("endpoint", h.endpoint))
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return errorx.NewSys(errorx.ErrReporter,
			errorx.WithService(errorx.ServiceReporter),
			errorx.WithMessage("collector rejected batch"),
			errorx.WithField("status", resp.StatusCode),
			errorx.WithField("endpoint", h.endpoint))
	}
	return nil
}

func (h *httpSender) close(context.Context) error { return nil }
