package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/imattdu/tracectx/config"
	"github.com/imattdu/tracectx/errorx"
	"github.com/imattdu/tracectx/httpclient"
	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/middleware"
	"github.com/imattdu/tracectx/provider"
	"github.com/imattdu/tracectx/tracex"
)

func main() {
	var (
		cfgPath    = flag.String("config", "", "trace config yaml")
		addr       = flag.String("addr", ":8080", "listen address")
		downstream = flag.String("downstream", "http://127.0.0.1:8080", "base url for outbound calls")
	)
	flag.Parse()

	if err := logx.Init(logx.Config{
		AppName:        "tracectx-demo",
		Level:          slog.LevelInfo,
		LogDir:         "logs",
		ConsoleEnabled: true,
		MaxBackups:     24,
		MirrorToSpan:   true,
	}); err != nil {
		slog.Error("init logger", "err", err)
		os.Exit(1)
	}
	ctx := context.Background()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logx.Error(ctx, logx.TagUndef, err)
		os.Exit(1)
	}
	p, err := provider.New(cfg, provider.WithLogger(logx.L()))
	if err != nil {
		logx.Error(ctx, logx.TagUndef, err)
		os.Exit(1)
	}
	if err := middleware.InitAccessLogger(nil); err != nil {
		logx.Warn(ctx, logx.TagUndef, err)
	}

	cli, err := httpclient.New(
		httpclient.WithBaseURL(*downstream),
		httpclient.WithRetry(2, nil, nil),
		httpclient.WithTracing(),
		httpclient.WithStatsHook(httpclient.LogStats),
	)
	if err != nil {
		logx.Error(ctx, logx.TagUndef, err)
		os.Exit(1)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.TraceMiddleware(p), middleware.AccessMiddleware())
	r.GET("/api/ping", func(c *gin.Context) {
		logx.Info(c.Request.Context(), logx.TagUndef, "pong")
		c.JSON(http.StatusOK, gin.H{"trace_id": tracex.TraceIDFromContext(c.Request.Context())})
	})
	r.GET("/api/chain", middleware.Traced("call downstream", func(c *gin.Context) error {
		var out map[string]any
		if _, err := cli.GetJSON(c.Request.Context(), "/api/ping", &out, httpclient.WithTimeout(time.Second)); err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"err": err.Error()})
			return err
		}
		c.JSON(http.StatusOK, out)
		return nil
	}))

	srv := &http.Server{Addr: *addr, Handler: r}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Error(ctx, logx.TagUndef, err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdown, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
	if err := p.Close(shutdown); err != nil {
		for _, e := range errorx.All(err) {
			logx.Warn(ctx, logx.TagReporterFailure, e)
		}
	}
	_ = logx.Flush(shutdown)
}
