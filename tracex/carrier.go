package tracex

import (
	"net/http"
	"sort"
	"strings"

	"google.golang.org/grpc/metadata"
)

const (
	// WireIDKey 数据包 / header 中存放 wire id 的 key
	WireIDKey = "uber-trace-id"
	// PropagatedTagsKey 数据包中存放透传标签的 key，值一般是 map[string]string
	PropagatedTagsKey = "propagated-tags"
	// TagHeaderPrefix header / metadata 中每个透传标签的前缀。
	// header 名不区分大小写，经过 header / metadata 的标签名一律还原为小写：
	// 写入 "Tenant" 读回 "tenant"
	TagHeaderPrefix = "uberctx-"
)

// Bag 入站 / 出站的数据包（请求参数、消息体、header 转换结果）
type Bag map[string]any

// WireID 取 wire id，兼容 string 和 []string
func (b Bag) WireID() (string, bool) {
	switch v := b[WireIDKey].(type) {
	case string:
		return v, v != ""
	case []string:
		if len(v) > 0 && v[0] != "" {
			return v[0], true
		}
	}
	return "", false
}

// PropagatedTags 取数据包里的透传标签（已按字符串解码）
func (b Bag) PropagatedTags() map[string]string {
	raw, ok := b[PropagatedTagsKey]
	if !ok {
		return nil
	}
	return decodeTags(raw)
}

// -------------------- HTTP 头注入 / 提取 --------------------

// BagFromHeader 把 HTTP 头转换成数据包：uber-trace-id + uberctx-* 标签
func BagFromHeader(h http.Header) Bag {
	bag := Bag{}
	if h == nil {
		return bag
	}
	if id := h.Get(WireIDKey); id != "" {
		bag[WireIDKey] = id
	}
	tags := make(map[string]string)
	for k, vs := range h {
		lk := strings.ToLower(k)
		if !strings.HasPrefix(lk, TagHeaderPrefix) || len(vs) == 0 {
			continue
		}
		tags[strings.TrimPrefix(lk, TagHeaderPrefix)] = vs[0]
	}
	if len(tags) > 0 {
		bag[PropagatedTagsKey] = tags
	}
	return bag
}

// InjectHeader 把数据包写回 HTTP 头
func InjectHeader(bag Bag, h http.Header) {
	if h == nil {
		return
	}
	if id, ok := bag.WireID(); ok {
		h.Set(WireIDKey, id)
	}
	for _, kv := range sortedTags(bag.PropagatedTags()) {
		h.Set(TagHeaderPrefix+kv[0], kv[1])
	}
}

// -------------------- gRPC metadata 注入 / 提取 --------------------

// BagFromMetadata metadata 的 key 已经是小写
func BagFromMetadata(md metadata.MD) Bag {
	bag := Bag{}
	if md == nil {
		return bag
	}
	if vals := md.Get(WireIDKey); len(vals) > 0 && vals[0] != "" {
		bag[WireIDKey] = vals[0]
	}
	tags := make(map[string]string)
	for k, vs := range md {
		if !strings.HasPrefix(k, TagHeaderPrefix) || len(vs) == 0 {
			continue
		}
		tags[strings.TrimPrefix(k, TagHeaderPrefix)] = vs[0]
	}
	if len(tags) > 0 {
		bag[PropagatedTagsKey] = tags
	}
	return bag
}

func InjectMetadata(bag Bag, md metadata.MD) {
	if md == nil {
		return
	}
	if id, ok := bag.WireID(); ok {
		md.Set(WireIDKey, id)
	}
	for _, kv := range sortedTags(bag.PropagatedTags()) {
		md.Set(TagHeaderPrefix+strings.ToLower(kv[0]), kv[1])
	}
}

func sortedTags(tags map[string]string) [][2]string {
	out := make([][2]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
