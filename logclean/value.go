package logclean

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Value 是 span 日志字段的取值：要么是文本，要么是需要序列化的结构化数据
type Value interface {
	// Render 输出未截断的文本形式
	Render() string
}

// Text 文本值，原样输出
type Text string

func (t Text) Render() string { return string(t) }

// Structured 任意可序列化的数据，输出 JSON（map 按 key 排序）
type Structured struct {
	V any
}

func (s Structured) Render() string {
	out, err := sonic.ConfigStd.MarshalToString(s.V)
	if err != nil {
		return fmt.Sprintf("%v", s.V)
	}
	return out
}

// ValueOf 把任意值归类为 Text 或 Structured
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case string:
		return Text(x)
	case []byte:
		return Text(string(x))
	case error:
		return Text(x.Error())
	case fmt.Stringer:
		return Text(x.String())
	default:
		return Structured{V: x}
	}
}
