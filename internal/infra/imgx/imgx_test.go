package imgx

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/John-Robertt/imgopt/internal/domain"
)

func TestDecode_PNGAlphaDetection(t *testing.T) {
	dir := t.TempDir()

	opaque := filepath.Join(dir, "opaque.png")
	writePNG(t, opaque, solidRGBA(40, 20, 255))
	transparent := filepath.Join(dir, "transparent.png")
	writePNG(t, transparent, solidNRGBA(40, 20, 0))

	_, meta, err := Decode(opaque)
	if err != nil {
		t.Fatalf("Decode 失败：%v", err)
	}
	if meta.HasAlpha || meta.Format != domain.FormatPNG || meta.Width != 40 || meta.Height != 20 {
		t.Fatalf("opaque meta 不符合预期：%+v", meta)
	}

	_, meta, err = Decode(transparent)
	if err != nil {
		t.Fatalf("Decode 失败：%v", err)
	}
	if !meta.HasAlpha {
		t.Fatalf("透明 PNG 应检测到 alpha：%+v", meta)
	}
}

func TestDecode_PalettedTransparency(t *testing.T) {
	pal := color.Palette{color.NRGBA{0, 0, 0, 0}, color.NRGBA{255, 0, 0, 255}}
	img := image.NewPaletted(image.Rect(0, 0, 4, 4), pal)
	img.SetColorIndex(1, 1, 1)

	p := filepath.Join(t.TempDir(), "pal.png")
	writePNG(t, p, img)

	_, meta, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode 失败：%v", err)
	}
	if !meta.HasAlpha {
		t.Fatalf("含透明色的调色板 PNG 应检测到 alpha")
	}
}

func TestDecode_JPEG(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a.JPG")
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solidRGBA(30, 10, 255), &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode 失败：%v", err)
	}
	if err := os.WriteFile(p, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}

	_, meta, err := Decode(p)
	if err != nil {
		t.Fatalf("Decode 失败：%v", err)
	}
	if meta.Format != domain.FormatJPEG || meta.HasAlpha || meta.Width != 30 {
		t.Fatalf("jpeg meta 不符合预期：%+v", meta)
	}
}

func TestDecode_Unrecognized(t *testing.T) {
	p := filepath.Join(t.TempDir(), "fake.png")
	if err := os.WriteFile(p, []byte("definitely not an image"), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
	if _, _, err := Decode(p); !errors.Is(err, ErrUnrecognized) {
		t.Fatalf("期望 ErrUnrecognized，实际：%v", err)
	}
}

func TestResize_NoUpscale(t *testing.T) {
	src := solidRGBA(100, 50, 255)

	same := Resize(src, 200)
	if same.Bounds().Dx() != 100 {
		t.Fatalf("不应放大：got=%d", same.Bounds().Dx())
	}

	got := Resize(src, 40)
	if got.Bounds().Dx() != 40 || got.Bounds().Dy() != 20 {
		t.Fatalf("等比缩放不符合预期：got=%dx%d", got.Bounds().Dx(), got.Bounds().Dy())
	}
}

func TestResize_VeryWideKeepsOnePixelHeight(t *testing.T) {
	src := solidNRGBA(10000, 1, 255)

	got := Resize(src, 1600)
	if got.Bounds().Dx() != 1600 || got.Bounds().Dy() != 1 {
		t.Fatalf("极宽图缩放后尺寸不符合预期：got=%dx%d", got.Bounds().Dx(), got.Bounds().Dy())
	}

	var buf bytes.Buffer
	if err := EncodePNG(&buf, got); err != nil {
		t.Fatalf("缩放结果应可编码为 PNG：%v", err)
	}
}

func TestScaledHeight(t *testing.T) {
	cases := []struct{ w, h, width, want int }{
		{100, 50, 40, 20},
		{3000, 2000, 1600, 1067},
		{10000, 1, 1600, 1},
		{10000, 3, 1600, 1},
	}
	for _, tc := range cases {
		if got := ScaledHeight(tc.w, tc.h, tc.width); got != tc.want {
			t.Fatalf("ScaledHeight(%d,%d,%d)=%d want=%d", tc.w, tc.h, tc.width, got, tc.want)
		}
	}
}

func TestEncodeJPEG_FlattensAlphaOnWhite(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeJPEG(&buf, solidNRGBA(16, 16, 0), 90); err != nil {
		t.Fatalf("EncodeJPEG 失败：%v", err)
	}
	got, err := jpeg.Decode(&buf)
	if err != nil {
		t.Fatalf("decode 失败：%v", err)
	}
	c := color.RGBAModel.Convert(got.At(8, 8)).(color.RGBA)
	if c.R < 240 || c.G < 240 || c.B < 240 {
		t.Fatalf("全透明像素应铺白：%v", c)
	}
}

func TestEncodePNG_Lossless(t *testing.T) {
	src := solidRGBA(8, 8, 255)
	var buf bytes.Buffer
	if err := EncodePNG(&buf, src); err != nil {
		t.Fatalf("EncodePNG 失败：%v", err)
	}
	got, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode 失败：%v", err)
	}
	if color.RGBAModel.Convert(got.At(3, 3)) != src.At(3, 3) {
		t.Fatalf("PNG 应无损：got=%v want=%v", got.At(3, 3), src.At(3, 3))
	}
}

func solidRGBA(w, h int, a uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{200, 100, 50, a})
		}
	}
	return img
}

func solidNRGBA(w, h int, a uint8) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{200, 100, 50, a})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png 失败：%v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("写入失败：%v", err)
	}
}
