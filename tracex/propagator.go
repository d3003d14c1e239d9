package tracex

import (
	"fmt"
	"maps"
	"sync"

	"github.com/mitchellh/mapstructure"

	"github.com/imattdu/tracectx/errorx"
)

// TagPropagator 保存需要跨进程透传的标签。
// 一个工作单元内只增不删：同名覆盖，其余保留。
type TagPropagator struct {
	mu   sync.RWMutex
	tags map[string]string
}

func NewTagPropagator() *TagPropagator {
	return &TagPropagator{tags: make(map[string]string)}
}

// AddTags 合并，后写覆盖同名 key
func (p *TagPropagator) AddTags(tags map[string]string) {
	if len(tags) == 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for k, v := range tags {
		p.tags[k] = v
	}
}

// Apply 把当前持有的全部标签写到 span 上，可重复调用
func (p *TagPropagator) Apply(span *Span) {
	if span == nil {
		return
	}
	span.SetTags(toAnyMap(p.Tags()))
}

// Inject 写入 data[PropagatedTagsKey]：不存在则创建，已存在则合并，不丢弃其它层写入的标签。
// 已有值不是 map 时返回错误，data 保持不变
func (p *TagPropagator) Inject(data Bag) error {
	own := p.Tags()
	existing, present := data[PropagatedTagsKey]
	if !present || existing == nil {
		if len(own) > 0 {
			data[PropagatedTagsKey] = own
		}
		return nil
	}
	merged, err := mergeTags(existing, own)
	if err != nil {
		return err
	}
	data[PropagatedTagsKey] = merged
	return nil
}

// mergeTags 已有值能整体转成 map[string]string 时按字符串合并；
// 否则（值里有 slice / map 等）保留原值，合并到 map[string]any 副本
func mergeTags(existing any, own map[string]string) (any, error) {
	var tags map[string]string
	if err := mapstructure.WeakDecode(existing, &tags); err == nil && tags != nil {
		maps.Copy(tags, own)
		return tags, nil
	}

	var loose map[string]any
	if err := mapstructure.Decode(existing, &loose); err != nil || loose == nil {
		return nil, errorx.NewUsage(errorx.ErrDefault,
			errorx.WithService(errorx.ServiceTracex),
			errorx.WithOp("inject"),
			errorx.WithMessage("propagated tags is not a map"),
			errorx.WithField("type", fmt.Sprintf("%T", existing)))
	}
	for k, v := range own {
		loose[k] = v
	}
	return loose, nil
}

// Tags 返回副本
func (p *TagPropagator) Tags() map[string]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[string]string, len(p.tags))
	for k, v := range p.tags {
		out[k] = v
	}
	return out
}

// Clone 子工作单元继承父的透传标签，但之后的写入互不影响
func (p *TagPropagator) Clone() *TagPropagator {
	return &TagPropagator{tags: p.Tags()}
}

// decodeTags 入站的标签值可能是数字 / 布尔，统一弱类型转成字符串；
// 无法转换的单个值被跳过
func decodeTags(raw any) map[string]string {
	switch v := raw.(type) {
	case nil:
		return nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out
	case map[string]any:
		out := make(map[string]string, len(v))
		for k, item := range v {
			var s string
			if err := mapstructure.WeakDecode(item, &s); err != nil {
				continue
			}
			out[k] = s
		}
		return out
	case Bag:
		return decodeTags(map[string]any(v))
	default:
		return nil
	}
}

func toAnyMap(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
