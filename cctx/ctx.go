package cctx

import (
	"context"
	"sort"
	"time"
)

// ----------------- 内部类型 -----------------

type bagKeyType struct{}

var bagKey bagKeyType

// bag 写时复制的键值容器，挂在 context.Context 上
type bag map[string]any

func bagFrom(ctx context.Context) bag {
	if ctx == nil {
		return nil
	}
	if b, ok := ctx.Value(bagKey).(bag); ok && b != nil {
		return b
	}
	return nil
}

// 只递归复制 map[string]any 与 []any，其它类型（指针、*Ambient 等）原样共享
func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = deepCopy(x[i])
		}
		return out
	default:
		return v
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

func merge(old bag, kv map[string]any) bag {
	out := make(bag, len(old)+len(kv))
	for k, v := range old {
		out[k] = v
	}
	for k, v := range kv {
		out[k] = deepCopy(v)
	}
	return out
}

// ----------------- 读写 -----------------

// New 用 data 的深拷贝创建 ctx，parent 不受影响
func New(parent context.Context, data map[string]any) context.Context {
	return context.WithValue(parent, bagKey, bag(deepCopyMap(data)))
}

// With 写入一条 k/v，返回新 ctx
func With(ctx context.Context, key string, val any) context.Context {
	return context.WithValue(ctx, bagKey, merge(bagFrom(ctx), map[string]any{key: val}))
}

func WithMany(ctx context.Context, kv map[string]any) context.Context {
	return context.WithValue(ctx, bagKey, merge(bagFrom(ctx), kv))
}

func Get(ctx context.Context, key string) (any, bool) {
	v, ok := bagFrom(ctx)[key]
	return v, ok
}

// GetAs 读取并断言为 T
func GetAs[T any](ctx context.Context, key string) (T, bool) {
	var zero T
	v, ok := Get(ctx, key)
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	if !ok {
		return zero, false
	}
	return tv, true
}

func GetOrNewAs[T any](ctx context.Context, key string, fn func() T) T {
	if v, ok := GetAs[T](ctx, key); ok {
		return v
	}
	return fn()
}

// All 返回深拷贝
func All(ctx context.Context) map[string]any {
	if b := bagFrom(ctx); b != nil {
		return deepCopyMap(b)
	}
	return map[string]any{}
}

// AllAs 过滤出能断言为 T 的键值
func AllAs[T any](ctx context.Context) map[string]T {
	res := make(map[string]T)
	for k, v := range bagFrom(ctx) {
		if tv, ok := v.(T); ok {
			res[k] = tv
		}
	}
	return res
}

// Keys 排序后的全部 key
func Keys(ctx context.Context) []string {
	b := bagFrom(ctx)
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ----------------- 脱离父 ctx -----------------

// Clone 复制一个独立的 ctx，用于请求结束后仍要运行的异步任务：
// 复制 bag（工作单元的追踪上下文随之带过去），保留 parent 的 deadline，parent 取消时联动取消。
// 调用方负责调用 cancel。
func Clone(parent context.Context) (context.Context, context.CancelFunc) {
	base := context.Background()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if dl, ok := parent.Deadline(); ok {
		ctx, cancel = context.WithDeadline(base, dl)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	return detach(parent, ctx, cancel)
}

// CloneWithNewTimeout 同 Clone，但超时改为 parent 剩余时长 + offset；
// parent 没有 deadline 时只用 offset，合计 <= 0 表示不设超时
func CloneWithNewTimeout(parent context.Context, offset time.Duration) (context.Context, context.CancelFunc) {
	remain := time.Duration(0)
	if dl, ok := parent.Deadline(); ok {
		remain = max(time.Until(dl), 0)
	}

	base := context.Background()
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if total := remain + offset; total > 0 {
		ctx, cancel = context.WithTimeout(base, total)
	} else {
		ctx, cancel = context.WithCancel(base)
	}
	return detach(parent, ctx, cancel)
}

func detach(parent, ctx context.Context, cancel context.CancelFunc) (context.Context, context.CancelFunc) {
	// 联动取消
	if parent.Done() != nil {
		go func() {
			select {
			case <-parent.Done():
				cancel()
			case <-ctx.Done():
			}
		}()
	}
	if parent.Err() != nil {
		cancel()
	}

	if b := bagFrom(parent); b != nil {
		ctx = context.WithValue(ctx, bagKey, bag(deepCopyMap(b)))
	}
	return ctx, cancel
}
