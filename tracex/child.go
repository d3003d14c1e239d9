package tracex

import (
	"context"
	"fmt"
	"sync"
)

// Ambient 一个工作单元当前生效的 Context。
// 每个工作单元一个实例，通过 context.Context 显式传递，不存在进程级全局变量。
type Ambient struct {
	mu   sync.RWMutex
	root *Context
	cur  *Context
}

// NewAmbient 以 root 作为当前 Context，并把 root 绑定到这个 Ambient
func NewAmbient(root *Context) *Ambient {
	a := &Ambient{root: root, cur: root}
	if root != nil {
		root.ambient = a
	}
	return a
}

// Root 工作单元的根 Context
func (a *Ambient) Root() *Context {
	if a == nil {
		return nil
	}
	return a.root
}

func (a *Ambient) Current() *Context {
	if a == nil {
		return nil
	}
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.cur
}

func (a *Ambient) set(c *Context) {
	a.mu.Lock()
	a.cur = c
	a.mu.Unlock()
}

// ChildContext Child 返回的包装：结束时把父 Context 恢复为当前 Context
type ChildContext struct {
	*Context
	parent *Context
	once   sync.Once
}

func (w *ChildContext) Parent() *Context { return w.parent }

// Finish 结束子 span 并恢复父 Context，只生效一次
func (w *ChildContext) Finish(ctx context.Context) (err error) {
	w.once.Do(func() {
		defer w.restore()
		err = w.Context.Finish(ctx)
	})
	return err
}

func (w *ChildContext) restore() {
	if w.ambient != nil {
		w.ambient.set(w.parent)
	}
}

// Child 在当前 span 下创建子 span：同 trace id，新 span id，parent 为当前 span。
// 父 Context 绑定了 Ambient 时，子 Context 成为当前 Context，直到子 Finish。
func (c *Context) Child(name string) (*ChildContext, error) {
	if err := c.assertActive("child"); err != nil {
		return nil, err
	}

	child := &Context{
		tracer:        c.tracer,
		builder:       c.builder,
		codec:         c.codec,
		cleaner:       c.cleaner,
		propagator:    c.propagator.Clone(),
		env:           c.env,
		correlationID: c.correlationID,
		ambient:       c.ambient,
	}
	parent := c.span.Context()
	child.span = c.tracer.Start(name, nil, &parent)
	child.propagator.Apply(child.span)

	if c.ambient != nil {
		c.ambient.set(child)
	}
	return &ChildContext{Context: child, parent: c}, nil
}

// Run 在子 Context 中执行 fn。
// 无论 fn 正常返回、返回错误还是 panic，子 span 都会结束，父 Context 都会恢复为当前 Context。
func (c *Context) Run(ctx context.Context, name string, fn func(ctx context.Context, child *Context) error) (err error) {
	child, err := c.Child(name)
	if err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			child.markError(fmt.Sprint(r))
			_ = child.Finish(ctx)
			panic(r)
		}
		if err != nil {
			child.markError(err.Error())
		}
		_ = child.Finish(ctx)
	}()

	return fn(ctx, child.Context)
}

func (c *Context) markError(msg string) {
	_ = c.SetPrivateTags(map[string]any{TagError: true})
	_ = c.LogLevel(LevelError, map[string]any{"error": msg})
}
