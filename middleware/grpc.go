package middleware

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/imattdu/tracectx/logx"
	"github.com/imattdu/tracectx/provider"
	"github.com/imattdu/tracectx/tracex"
)

// UnaryServerInterceptor 每个 RPC 一个工作单元，span 名为完整方法名
func UnaryServerInterceptor(p *provider.Provider) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		md, _ := metadata.FromIncomingContext(ctx)
		tctx, tc, err := p.Begin(ctx, info.FullMethod, tracex.BagFromMetadata(md))
		if err != nil {
			logx.Warn(ctx, logx.TagUndef, err, "method", info.FullMethod)
			return handler(ctx, req)
		}
		defer endRPC(p, tctx)

		resp, err := handler(tctx, req)
		rpcHandled(tc, err)
		return resp, err
	}
}

// StreamServerInterceptor 整个流是一个工作单元
func StreamServerInterceptor(p *provider.Provider) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		ctx := ss.Context()
		md, _ := metadata.FromIncomingContext(ctx)
		tctx, tc, err := p.Begin(ctx, info.FullMethod, tracex.BagFromMetadata(md))
		if err != nil {
			logx.Warn(ctx, logx.TagUndef, err, "method", info.FullMethod)
			return handler(srv, ss)
		}
		defer endRPC(p, tctx)

		err = handler(srv, &tracedStream{ServerStream: ss, ctx: tctx})
		rpcHandled(tc, err)
		return err
	}
}

// UnaryClientInterceptor 把 ctx 中当前 Context 注入出站 metadata；没有时原样调用
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(OutgoingContext(ctx), method, req, reply, cc, opts...)
	}
}

// OutgoingContext 把 wire id 和透传标签写到 outgoing metadata
func OutgoingContext(ctx context.Context) context.Context {
	bag := tracex.Bag{}
	if err := tracex.InjectContext(ctx, bag); err != nil {
		return ctx
	}
	md, ok := metadata.FromOutgoingContext(ctx)
	if ok {
		md = md.Copy()
	} else {
		md = metadata.MD{}
	}
	tracex.InjectMetadata(bag, md)
	return metadata.NewOutgoingContext(ctx, md)
}

type tracedStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *tracedStream) Context() context.Context { return s.ctx }

func rpcHandled(tc *tracex.Context, err error) {
	tags := map[string]any{"grpc_code": status.Code(err).String()}
	if err != nil {
		tags[tracex.TagError] = true
	}
	_ = tc.SetPrivateTags(tags)
}

func endRPC(p *provider.Provider, ctx context.Context) {
	if err := p.End(ctx); err != nil {
		logx.Warn(ctx, logx.TagUndef, err)
	}
}
