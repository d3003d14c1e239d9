package errorx

// CodeEntry 表示一个错误码 + 默认文案。
// 只在这里集中定义，调用方用变量名，不直接写裸 code。
type CodeEntry struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// -------------------- 错误类别（系统 / 调用方） --------------------

var (
	ErrTypeSys = CodeEntry{Code: 4, Message: "系统错误"}
	// ErrTypeUsage 调用顺序错误：状态机被违反，调用方需要修正代码而不是重试
	ErrTypeUsage = CodeEntry{Code: 5, Message: "调用错误"}
)

// -------------------- 出错模块 --------------------

var (
	ServiceDefault  = CodeEntry{Code: 1, Message: "unknown"}
	ServiceTracex   = CodeEntry{Code: 10, Message: "tracex"}
	ServiceReporter = CodeEntry{Code: 11, Message: "reporter"}
	ServiceConfig   = CodeEntry{Code: 12, Message: "config"}
	ServiceProvider = CodeEntry{Code: 13, Message: "provider"}
	ServiceCleaner  = CodeEntry{Code: 14, Message: "logclean"}
)

// -------------------- 错误码 --------------------

var (
	ErrDefault = CodeEntry{Code: 1000, Message: "未知错误"}

	ErrNoTracer        = CodeEntry{Code: 3001, Message: "no tracer bound"}
	ErrNoSpan          = CodeEntry{Code: 3002, Message: "no active span"}
	ErrMalformedWireID = CodeEntry{Code: 3003, Message: "malformed wire id"}
	ErrInvalidConfig   = CodeEntry{Code: 3004, Message: "invalid config"}
	ErrReporter        = CodeEntry{Code: 3005, Message: "reporter failure"}
)
