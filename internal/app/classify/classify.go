package classify

import (
	"path/filepath"

	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
)

// Supported 判断扩展名（已小写）是否属于可处理图片。其他文件直接跳过，不算错误。
func Supported(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return true
	default:
		return false
	}
}

// Plan 基于扫描记录 + 写入前观测到的 ImageMeta 生成确定性的执行计划（不做任何写入）。
//
// 规则（固定）：
// - 宽度超过 MaxWidth：缩放到 MaxWidth（等比；本身更窄则不放大）
// - PNG 无 alpha 且 ConvertPNG：转 JPEG，输出 <dir>/<base>.jpg
// - PNG 有 alpha 或不转换：保持 PNG，最高压缩级别重编码
// - JPEG/JPG：按 Quality 重编码
//
// 调用方保证 Supported(rec.Ext) 为 true。
func Plan(rec domain.FileRecord, meta domain.ImageMeta, eff config.EffectiveConfig) domain.Plan {
	p := domain.Plan{
		Kind:   domain.PlanReencode,
		SrcAbs: rec.AbsPath,
		DstAbs: rec.AbsPath,
	}
	if meta.Width > eff.MaxWidth {
		p.ResizeWidth = eff.MaxWidth
	}

	if rec.Ext == ".png" {
		if !meta.HasAlpha && eff.ConvertPNG {
			p.Kind = domain.PlanConvert
			p.OutFormat = domain.FormatJPEG
			p.Quality = eff.Quality
			p.DstAbs = filepath.Join(filepath.Dir(rec.AbsPath), rec.Base+".jpg")
			return p
		}
		p.OutFormat = domain.FormatPNG
		return p
	}

	p.OutFormat = domain.FormatJPEG
	p.Quality = eff.Quality
	return p
}
