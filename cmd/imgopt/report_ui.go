package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/fatih/color"

	"github.com/John-Robertt/imgopt/internal/domain"
)

// emitReport 输出人类可读的结果：逐文件行与 MDX 改写行写 stdout，汇总与失败写 stderr。
func emitReport(stdout, stderr io.Writer, cwd string, rr domain.RunReport, colored bool) {
	for _, p := range rr.UpdatedRefs {
		fmt.Fprintf(stdout, "Updated MDX refs in %s\n", p)
	}

	for _, it := range rr.Items {
		if it.Status != domain.StatusProcessed {
			continue
		}
		fmt.Fprintln(stdout, formatItemLine(cwd, it))
	}

	warn := paint(color.FgYellow, colored)
	for _, it := range rr.Items {
		if it.Status != domain.StatusSkippedError {
			continue
		}
		warn.Fprintf(stderr, "%s %s: %s\n", sitePath(cwd, it.Src), it.ErrorCode, it.ErrorMsg)
	}

	s := rr.Summary
	summary := paint(color.FgGreen, colored)
	if s.SkippedError > 0 {
		summary = warn
	}
	summary.Fprintf(stderr, "done: processed=%d skipped=%d failed=%d\n",
		s.Processed, s.SkippedUnsupported, s.SkippedError,
	)
}

// formatItemLine 生成 "/<src>: <before>MB -> <after>MB[ -> /<dst>]"。
func formatItemLine(cwd string, it domain.ItemResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %sMB -> %sMB", sitePath(cwd, it.Src), domain.FormatMB(it.SizeBefore), domain.FormatMB(it.SizeAfter))
	if it.Moved() {
		b.WriteString(" -> ")
		b.WriteString(sitePath(cwd, it.Dst))
	}
	return b.String()
}

// sitePath 把绝对路径转为相对 cwd、带前导 "/" 的斜杠路径；无法相对化时原样返回。
func sitePath(cwd, abs string) string {
	rel, err := filepath.Rel(cwd, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.ToSlash(abs)
	}
	return "/" + filepath.ToSlash(rel)
}

func paint(attr color.Attribute, colored bool) *color.Color {
	c := color.New(attr)
	if colored {
		c.EnableColor()
	} else {
		c.DisableColor()
	}
	return c
}
