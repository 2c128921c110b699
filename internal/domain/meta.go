package domain

const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
)

// ImageMeta 是对单张图片探测得到的固有属性。
// 必须在任何写入之前观测（Plan 只能基于它计算一次）。
type ImageMeta struct {
	Width    int
	Height   int
	HasAlpha bool
	Format   string // 实际解码出的格式："jpeg" / "png"
}
