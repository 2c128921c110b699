package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/John-Robertt/imgopt/internal/app/run"
	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
)

var _ run.Observer = (*progressUI)(nil)

// progressUI 是交互终端下的进度输出，只写 stderr，不影响 stdout 的逐文件结果行。
type progressUI struct {
	w   io.Writer
	cwd string

	mu        sync.Mutex
	startedAt time.Time

	ok   int
	skip int
	fail int
}

func newProgressUI(w io.Writer, cwd string) *progressUI {
	return &progressUI{w: w, cwd: cwd}
}

func (p *progressUI) OnStart(eff config.EffectiveConfig) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	p.startedAt = now

	fmt.Fprintf(p.w, "[%s] imgopt optimize\n", now.Format("15:04:05"))
	fmt.Fprintln(p.w, "配置（生效）:")
	fmt.Fprintf(p.w, "  dir: %s\n", eff.Dir)
	fmt.Fprintf(p.w, "  max_width: %d\n", eff.MaxWidth)
	fmt.Fprintf(p.w, "  quality: %d\n", eff.Quality)
	fmt.Fprintf(p.w, "  convert_png: %s\n", onOff(eff.ConvertPNG))
	fmt.Fprintf(p.w, "  delete_original: %s\n", onOff(eff.DeleteOriginal))
	fmt.Fprintf(p.w, "  update_mdx: %s", onOff(eff.UpdateMDX))
	if eff.UpdateMDX {
		fmt.Fprintf(p.w, " (%s/*%s)", eff.PostsDir, eff.PostSuffix)
	}
	fmt.Fprintln(p.w)
	if eff.ReportPath != "" {
		fmt.Fprintf(p.w, "  report: %s\n", eff.ReportPath)
	}
	fmt.Fprintln(p.w)
}

func (p *progressUI) OnPhaseDone(name string, fields map[string]any, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch name {
	case "scan":
		fmt.Fprintf(p.w, "扫描: files=%d (%s)\n", intField(fields, "files"), formatShortDuration(dur))
	case "exec":
		fmt.Fprintf(p.w, "执行: items=%d ok=%d skip=%d fail=%d changes=%d (%s)\n",
			intField(fields, "items"),
			p.ok, p.skip, p.fail,
			intField(fields, "changes"),
			formatShortDuration(dur),
		)
	case "refs":
		fmt.Fprintf(p.w, "引用: updated=%d (%s)\n", intField(fields, "updated"), formatShortDuration(dur))
	default:
		fmt.Fprintf(p.w, "%s (%s)\n", name, formatShortDuration(dur))
	}
}

func (p *progressUI) OnItemDone(idx, total int, res domain.ItemResult, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	name := sitePath(p.cwd, res.Src)
	switch res.Status {
	case domain.StatusProcessed:
		p.ok++
		note := ""
		if res.WidthAfter != 0 && res.WidthAfter != res.WidthBefore {
			note = fmt.Sprintf(" %dpx->%dpx", res.WidthBefore, res.WidthAfter)
		}
		fmt.Fprintf(p.w, "[%d/%d] OK %s %s%s (%s)\n", idx, total, name, res.Plan, note, formatShortDuration(dur))
	case domain.StatusSkippedUnsupported:
		p.skip++
		fmt.Fprintf(p.w, "[%d/%d] SKIP %s (%s)\n", idx, total, name, formatShortDuration(dur))
	case domain.StatusSkippedError:
		p.fail++
		fmt.Fprintf(p.w, "[%d/%d] FAIL %s %s: %s (%s)\n",
			idx, total, name, res.ErrorCode, truncate(res.ErrorMsg, 160), formatShortDuration(dur),
		)
	default:
		fmt.Fprintf(p.w, "[%d/%d] %s %s (%s)\n", idx, total, strings.ToUpper(res.Status), name, formatShortDuration(dur))
	}
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func formatShortDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func intField(fields map[string]any, key string) int {
	if fields == nil {
		return 0
	}
	switch x := fields[key].(type) {
	case int:
		return x
	case int64:
		return int(x)
	default:
		return 0
	}
}
