package imgx

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"

	"github.com/h2non/filetype"
	"github.com/nfnt/resize"

	"github.com/John-Robertt/imgopt/internal/domain"
)

// headerSize 足够 filetype 识别 JPEG/PNG 的魔数。
const headerSize = 261

// ErrUnrecognized 表示文件内容不是可处理的 JPEG/PNG（不论扩展名如何）。
var ErrUnrecognized = errors.New("内容不是 JPEG/PNG")

// Sniff 通过文件头判断真实格式（"jpeg" / "png"）。
func Sniff(head []byte) (string, error) {
	if len(head) == 0 {
		return "", ErrUnrecognized
	}
	kind, err := filetype.Match(head)
	if err != nil {
		return "", err
	}
	switch kind.MIME.Value {
	case "image/jpeg":
		return domain.FormatJPEG, nil
	case "image/png":
		return domain.FormatPNG, nil
	default:
		return "", ErrUnrecognized
	}
}

// Decode 读取并完整解码 path 指向的图片，同时给出其 ImageMeta。
//
// 约束：
// - 先嗅探文件头，内容不是 JPEG/PNG 时返回 ErrUnrecognized（不尝试解码）
// - alpha 通道按解码后的像素布局判定，而不是按是否真的存在透明像素
func Decode(path string) (image.Image, domain.ImageMeta, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, domain.ImageMeta{}, err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, domain.ImageMeta{}, err
	}
	format, err := Sniff(head[:n])
	if err != nil {
		return nil, domain.ImageMeta{}, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, domain.ImageMeta{}, err
	}

	var img image.Image
	switch format {
	case domain.FormatPNG:
		img, err = png.Decode(f)
	default:
		img, err = jpeg.Decode(f)
	}
	if err != nil {
		return nil, domain.ImageMeta{}, fmt.Errorf("解码 %s 失败：%w", format, err)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, domain.ImageMeta{}, errors.New("图片尺寸无效")
	}
	return img, domain.ImageMeta{
		Width:    b.Dx(),
		Height:   b.Dy(),
		HasAlpha: HasAlpha(img),
		Format:   format,
	}, nil
}

// HasAlpha 判断图片是否带 alpha 通道。
func HasAlpha(img image.Image) bool {
	switch m := img.(type) {
	case *image.NRGBA, *image.NRGBA64, *image.Alpha, *image.Alpha16:
		return true
	case *image.Paletted:
		for _, c := range m.Palette {
			if _, _, _, a := c.RGBA(); a != 0xffff {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// Resize 等比缩放到 width；width 不小于当前宽度时原样返回（不放大）。
// 高度四舍五入且至少为 1：极宽的图（如 10000x1）不能缩成 0 像素高。
func Resize(img image.Image, width int) image.Image {
	b := img.Bounds()
	if width <= 0 || width >= b.Dx() {
		return img
	}
	return resize.Resize(uint(width), uint(ScaledHeight(b.Dx(), b.Dy(), width)), img, resize.Lanczos3)
}

// ScaledHeight 返回 w x h 等比缩放到 width 后的高度（至少 1）。
func ScaledHeight(w, h, width int) int {
	if w <= 0 {
		return h
	}
	return max(1, int(math.Round(float64(h)*float64(width)/float64(w))))
}

// EncodeJPEG 以 quality 编码 JPEG。带 alpha 的输入先铺白底（JPEG 无透明）。
func EncodeJPEG(w io.Writer, img image.Image, quality int) error {
	if HasAlpha(img) {
		img = flatten(img, color.White)
	}
	return jpeg.Encode(w, img, &jpeg.Options{Quality: quality})
}

// EncodePNG 以最高压缩级别编码 PNG（无损）。
func EncodePNG(w io.Writer, img image.Image) error {
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	return enc.Encode(w, img)
}

func flatten(img image.Image, bg color.Color) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}
