package domain

// PlanKind 是单个文件的变换类型。
type PlanKind string

const (
	// PlanResizeOnly 只缩放、不改变编码参数。批处理不会产生该类型（同格式输出总会重新编码），
	// 保留给需要“纯缩放”的调用方。
	PlanResizeOnly PlanKind = "resize-only"
	PlanReencode   PlanKind = "re-encode-same-format"
	PlanConvert    PlanKind = "convert-format"
)

// Plan 是对某个文件的最终执行计划（计算一次后不可变）。
type Plan struct {
	Kind PlanKind

	// ResizeWidth > 0 表示需要缩放到该宽度（等比，不放大）。
	ResizeWidth int

	OutFormat string // FormatJPEG / FormatPNG
	Quality   int    // 仅 JPEG 有效

	SrcAbs string
	DstAbs string
}

// ChangesPath 报告输出路径是否与输入不同（即格式转换导致扩展名变化）。
func (p Plan) ChangesPath() bool { return p.SrcAbs != p.DstAbs }

// PathChange 记录一次路径变更（站点根相对路径，形如 "/images/a.png"）。
// 仅当输出扩展名与输入不同才会产生；按产生顺序应用。
type PathChange struct {
	From string `json:"from"`
	To   string `json:"to"`
}
