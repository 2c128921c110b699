package main

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
)

type harness struct {
	cwd    string
	stdout bytes.Buffer
	stderr bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return &harness{cwd: t.TempDir()}
}

func (h *harness) run(args ...string) int {
	return h.runEnv(map[string]string{}, args...)
}

func (h *harness) runEnv(environ map[string]string, args ...string) int {
	h.stdout.Reset()
	h.stderr.Reset()
	a := &cli{
		cwd:     h.cwd,
		environ: environ,
		stdout:  &h.stdout,
		stderr:  &h.stderr,
	}
	return a.execute(context.Background(), args)
}

func (h *harness) path(parts ...string) string {
	return filepath.Join(append([]string{h.cwd}, parts...)...)
}

func TestOptimize_PrintsLinesAndRewritesPosts(t *testing.T) {
	h := newHarness(t)
	writePNG(t, h.path("public", "images", "logo.png"), opaque(40, 10))
	post := h.path("app", "blog", "posts", "hello.mdx")
	writeFile(t, post, `<Image src="/images/logo.png" />`+"\n")

	if code := h.run("optimize", "--maxWidth=20"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}

	out := h.stdout.String()
	if !strings.Contains(out, "Updated MDX refs in "+post) {
		t.Fatalf("缺少 MDX 改写行：%s", out)
	}
	if !strings.Contains(out, "/public/images/logo.png: ") || !strings.Contains(out, " -> /public/images/logo.jpg") {
		t.Fatalf("逐文件行不符合预期：%s", out)
	}
	if !strings.Contains(h.stderr.String(), "done: processed=1 skipped=0 failed=0") {
		t.Fatalf("汇总行不符合预期：%s", h.stderr.String())
	}

	b, err := os.ReadFile(post)
	if err != nil {
		t.Fatalf("读取文章失败：%v", err)
	}
	if !strings.Contains(string(b), "/images/logo.jpg") {
		t.Fatalf("文章引用未改写：%s", string(b))
	}
	if _, err := os.Stat(h.path("public", "images", "logo.png")); !os.IsNotExist(err) {
		t.Fatalf("原 PNG 应被删除：err=%v", err)
	}
}

func TestOptimize_BoolFlagsFalse(t *testing.T) {
	h := newHarness(t)
	src := h.path("public", "images", "logo.png")
	writePNG(t, src, opaque(30, 10))

	if code := h.run("optimize", "--convertPng=false"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}
	if strings.Contains(h.stdout.String(), "logo.jpg") {
		t.Fatalf("--convertPng=false 时不应转 JPEG：%s", h.stdout.String())
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("PNG 应保留：%v", err)
	}
}

func TestOptimize_ExplicitFlagBeatsEnv(t *testing.T) {
	h := newHarness(t)
	src := h.path("public", "images", "logo.png")
	writePNG(t, src, opaque(30, 10))
	environ := map[string]string{"IMGOPT_CONVERT_PNG": "false"}

	if code := h.runEnv(environ, "optimize"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}
	if strings.Contains(h.stdout.String(), "logo.jpg") {
		t.Fatalf("环境变量关闭转换时不应转 JPEG：%s", h.stdout.String())
	}

	if code := h.runEnv(environ, "optimize", "--convertPng=true"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}
	if !strings.Contains(h.stdout.String(), " -> /public/images/logo.jpg") {
		t.Fatalf("显式 flag 应覆盖环境变量：%s", h.stdout.String())
	}
}

func TestOptimize_WritesReportFile(t *testing.T) {
	h := newHarness(t)
	writePNG(t, h.path("public", "images", "a.png"), opaque(10, 10))
	writeFile(t, h.path("public", "images", "notes.txt"), "x")

	if code := h.run("optimize", "--report", "out/report.json"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}

	b, err := os.ReadFile(h.path("out", "report.json"))
	if err != nil {
		t.Fatalf("读取报告失败：%v", err)
	}
	var rr domain.RunReport
	if err := json.Unmarshal(b, &rr); err != nil {
		t.Fatalf("报告不是合法 JSON：%v", err)
	}
	if rr.Summary.Processed != 1 || rr.Summary.SkippedUnsupported != 1 {
		t.Fatalf("summary 不符合预期：%+v", rr.Summary)
	}
}

func TestOptimize_MissingRootExitsOne(t *testing.T) {
	h := newHarness(t)
	if code := h.run("optimize"); code != 1 {
		t.Fatalf("期望退出码 1，got=%d", code)
	}
	if !strings.Contains(h.stderr.String(), "目录不存在") {
		t.Fatalf("stderr 不符合预期：%s", h.stderr.String())
	}
	if h.stdout.Len() != 0 {
		t.Fatalf("stdout 应为空：%s", h.stdout.String())
	}
}

func TestOptimize_InvalidQualityExitsOne(t *testing.T) {
	h := newHarness(t)
	if code := h.run("optimize", "--quality=0"); code != 1 {
		t.Fatalf("期望退出码 1，got=%d", code)
	}
	if !strings.Contains(h.stderr.String(), config.ErrCodeInvalid) {
		t.Fatalf("stderr 应包含错误码：%s", h.stderr.String())
	}
}

func TestUsageErrorExitsTwo(t *testing.T) {
	h := newHarness(t)
	if code := h.run("optimize", "--nope"); code != 2 {
		t.Fatalf("期望退出码 2，got=%d", code)
	}
	if code := h.run("optimize", "extra"); code != 2 {
		t.Fatalf("多余位置参数期望退出码 2，got=%d", code)
	}
}

func TestConvert_FixedSource(t *testing.T) {
	h := newHarness(t)
	src := h.path(filepath.FromSlash(config.ConvertSrc))
	writePNG(t, src, opaque(30, 20))

	if code := h.run("convert"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}
	out := h.stdout.String()
	for _, want := range []string{"Converted to: ", "Size before (PNG): ", "Size after  (JPG): "} {
		if !strings.Contains(out, want) {
			t.Fatalf("输出缺少 %q：%s", want, out)
		}
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("源文件应保留：%v", err)
	}
	if _, err := os.Stat(h.path(filepath.FromSlash(config.ConvertDst))); err != nil {
		t.Fatalf("目标 JPEG 不存在：%v", err)
	}
}

func TestConvert_MissingSourceExitsOne(t *testing.T) {
	h := newHarness(t)
	if code := h.run("convert"); code != 1 {
		t.Fatalf("期望退出码 1，got=%d", code)
	}
	if !strings.Contains(h.stderr.String(), "Source file not found") {
		t.Fatalf("stderr 不符合预期：%s", h.stderr.String())
	}
}

func TestCovers_ListsNewestFirst(t *testing.T) {
	h := newHarness(t)
	posts := h.path("app", "blog", "posts")
	writeFile(t, filepath.Join(posts, "old.mdx"), "---\ntitle: Old\npublishedAt: 2023-01-01\n---\n![x](/images/old.jpg)\n")
	writeFile(t, filepath.Join(posts, "new.mdx"), "---\ntitle: \"New\"\npublishedAt: 2024-05-01\nimage: /images/cover.jpg\n---\nbody\n")
	writeFile(t, filepath.Join(posts, "none.mdx"), "---\ntitle: None\npublishedAt: 2024-06-01\n---\nno images\n")

	if code := h.run("covers", "--limit", "1"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d stderr=%s", code, h.stderr.String())
	}
	if got, want := h.stdout.String(), "new\t/images/cover.jpg\tNew\n"; got != want {
		t.Fatalf("输出不符合预期：got=%q want=%q", got, want)
	}

	if code := h.run("covers"); code != 0 {
		t.Fatalf("退出码不符合预期：got=%d", code)
	}
	lines := strings.Split(strings.TrimSpace(h.stdout.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "old\t/images/old.jpg\t") {
		t.Fatalf("输出不符合预期：%q", h.stdout.String())
	}
}

func opaque(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("编码 PNG 失败：%v", err)
	}
	writeFile(t, path, buf.String())
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("写文件失败：%v", err)
	}
}
