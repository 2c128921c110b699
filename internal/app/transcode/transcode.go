package transcode

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"

	"github.com/John-Robertt/imgopt/internal/domain"
	"github.com/John-Robertt/imgopt/internal/infra/fsx"
	"github.com/John-Robertt/imgopt/internal/infra/imgx"
)

// Outcome 是一次变换的结果（失败时不返回 Outcome）。
type Outcome struct {
	DstAbs     string
	SizeAfter  int64
	WidthAfter int

	// RemoveErr 是格式转换后删除原文件失败的错误：仅用于日志，不影响成功与否。
	RemoveErr error
}

// EncodeError 表示编码阶段失败；此时尚未触碰任何文件。
type EncodeError struct {
	Format string
	Err    error
}

func (e *EncodeError) Error() string { return fmt.Sprintf("编码 %s 失败：%v", e.Format, e.Err) }

func (e *EncodeError) Unwrap() error { return e.Err }

// Apply 按 plan 把已解码的 img 写到目标路径。
//
// - 先完整编码到内存，编码失败返回 *EncodeError，磁盘保持原样
// - 输出路径与输入相同：先写同目录临时文件，再原子 rename 覆盖原文件
// - 输出路径不同（格式转换）：直接（同样原子地）写新路径；deleteOriginal 时删除原文件（best-effort）
//
// 不做跨文件回滚：每个文件的成败相互独立。
func Apply(img image.Image, plan domain.Plan, deleteOriginal bool) (Outcome, error) {
	perm := os.FileMode(0o644)
	if fi, err := os.Stat(plan.SrcAbs); err == nil {
		perm = fi.Mode().Perm()
	}

	out := imgx.Resize(img, plan.ResizeWidth)
	var buf bytes.Buffer
	if err := encode(&buf, out, plan); err != nil {
		return Outcome{}, &EncodeError{Format: plan.OutFormat, Err: err}
	}

	dst := plan.DstAbs
	if err := fsx.WriteFileAtomicReplace(filepath.Dir(dst), filepath.Base(dst), perm, buf.Bytes()); err != nil {
		return Outcome{}, fmt.Errorf("写入 %q 失败：%w", dst, err)
	}

	fi, err := os.Stat(dst)
	if err != nil {
		return Outcome{}, err
	}

	oc := Outcome{
		DstAbs:     dst,
		SizeAfter:  fi.Size(),
		WidthAfter: out.Bounds().Dx(),
	}
	if plan.ChangesPath() && deleteOriginal {
		oc.RemoveErr = fsx.RemoveBestEffort(plan.SrcAbs)
	}
	return oc, nil
}

func encode(w io.Writer, img image.Image, plan domain.Plan) error {
	switch plan.OutFormat {
	case domain.FormatPNG:
		return imgx.EncodePNG(w, img)
	case domain.FormatJPEG:
		return imgx.EncodeJPEG(w, img, plan.Quality)
	default:
		return fmt.Errorf("未知输出格式：%q", plan.OutFormat)
	}
}
