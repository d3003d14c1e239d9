package tracex

// Extractor 根据入站数据决定创建根 span 还是 child-of span
type Extractor struct {
	tracer     Tracer
	propagator *TagPropagator
}

func NewExtractor(tracer Tracer, propagator *TagPropagator) *Extractor {
	return &Extractor{tracer: tracer, propagator: propagator}
}

// Extract 从不失败：上游上下文缺失或格式错误时退化为根 span。
// 入站的透传标签先并入 propagator，再写到新 span 上。
func (e *Extractor) Extract(name string, data Bag) *Span {
	inbound := data.PropagatedTags()
	if len(inbound) > 0 && e.propagator != nil {
		e.propagator.AddTags(inbound)
	}

	var span *Span
	if sc, ok := e.tracer.Extract(FormatTextMap, data); ok {
		span = e.tracer.Start(name, nil, &sc)
	} else {
		span = e.tracer.Start(name, nil, nil)
	}

	if len(inbound) > 0 {
		span.SetTags(toAnyMap(inbound))
	}
	return span
}
