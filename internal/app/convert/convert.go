package convert

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/John-Robertt/imgopt/internal/app/transcode"
	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
	"github.com/John-Robertt/imgopt/internal/infra/imgx"
)

// ErrSourceNotFound 表示固定源文件不存在。
var ErrSourceNotFound = errors.New("源文件不存在")

// Result 是一次单文件转换的结果。
type Result struct {
	Src        string
	Dst        string
	SizeBefore int64
	SizeAfter  int64
}

// Spec 描述一次单文件转换：src -> dst（JPEG），宽度不超过 MaxWidth（不放大）。
type Spec struct {
	Src      string
	Dst      string
	MaxWidth int
	Quality  int
}

// Fixed 返回 imgopt convert 使用的固定参数（路径相对 cwd）。
func Fixed(cwd string) Spec {
	return Spec{
		Src:      filepath.Join(cwd, filepath.FromSlash(config.ConvertSrc)),
		Dst:      filepath.Join(cwd, filepath.FromSlash(config.ConvertDst)),
		MaxWidth: config.ConvertMaxWidth,
		Quality:  config.ConvertQuality,
	}
}

// Run 执行一次单文件转换。源文件始终保留。
func Run(s Spec) (Result, error) {
	fi, err := os.Stat(s.Src)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, fmt.Errorf("%w：%s", ErrSourceNotFound, s.Src)
		}
		return Result{}, err
	}

	img, meta, err := imgx.Decode(s.Src)
	if err != nil {
		return Result{}, err
	}

	plan := domain.Plan{
		Kind:      domain.PlanConvert,
		OutFormat: domain.FormatJPEG,
		Quality:   s.Quality,
		SrcAbs:    s.Src,
		DstAbs:    s.Dst,
	}
	if meta.Width > s.MaxWidth {
		plan.ResizeWidth = s.MaxWidth
	}

	oc, err := transcode.Apply(img, plan, false)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Src:        s.Src,
		Dst:        oc.DstAbs,
		SizeBefore: fi.Size(),
		SizeAfter:  oc.SizeAfter,
	}, nil
}
