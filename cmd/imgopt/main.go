package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/John-Robertt/imgopt/internal/app/convert"
	"github.com/John-Robertt/imgopt/internal/app/run"
	"github.com/John-Robertt/imgopt/internal/config"
	"github.com/John-Robertt/imgopt/internal/domain"
	"github.com/John-Robertt/imgopt/internal/infra/fsx"
	"github.com/John-Robertt/imgopt/internal/logging"
	"github.com/John-Robertt/imgopt/internal/mdx"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintf(os.Stderr, "读取当前目录失败：%v\n", err)
		os.Exit(1)
	}

	a := &cli{
		cwd:         cwd,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: isTTY(os.Stderr),
	}
	code := a.execute(ctx, os.Args[1:])
	stop()
	if code != 0 {
		os.Exit(code)
	}
}

// cli 把进程边界（cwd/环境/输出流/是否 TTY）收拢在一处，核心逻辑不直接碰 os.Exit。
type cli struct {
	cwd     string
	environ map[string]string // nil：读取进程环境

	stdout io.Writer
	stderr io.Writer

	// interactive 为 true 时在 stderr 输出进度并启用颜色。
	interactive bool
}

// exitError 携带退出码；usage 类错误为 2，其余为 1。
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func (e *exitError) Unwrap() error { return e.err }

func (a *cli) execute(ctx context.Context, args []string) int {
	root := a.newRootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}

	var ee *exitError
	if errors.As(err, &ee) {
		if ee.err != nil && ee.code != 0 {
			fmt.Fprintln(a.stderr, ee.err)
		}
		return ee.code
	}
	// cobra 自身的参数解析错误（未知 flag/子命令等）。
	fmt.Fprintf(a.stderr, "参数错误：%v\n\n", err)
	fmt.Fprint(a.stderr, root.UsageString())
	return 2
}

func (a *cli) newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "imgopt",
		Short: "站点图片优化工具",
		Long: `imgopt 优化站点静态图片：

  optimize  批量缩放/重编码 public/images 下的图片，并改写博客文章中的引用
  convert   把固定的一张 PNG 转为压缩后的 JPEG
  covers    列出博客拼贴画使用的封面图`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(a.newOptimizeCmd(), a.newConvertCmd(), a.newCoversCmd())
	return root
}

func (a *cli) newOptimizeCmd() *cobra.Command {
	var ca config.CLIArgs

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "批量优化图片（缩放、重编码、PNG 转 JPEG）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			markExplicit(cmd.Flags(), &ca)
			return a.runOptimize(cmd.Context(), ca)
		},
	}
	bindOptimizeFlags(cmd.Flags(), &ca)
	return cmd
}

func bindOptimizeFlags(f *pflag.FlagSet, ca *config.CLIArgs) {
	f.StringVar(&ca.Dir, "dir", config.DefaultDir, "扫描的根目录")
	f.IntVar(&ca.MaxWidth, "maxWidth", config.DefaultMaxWidth, "超过该宽度（像素）的图片会被缩放")
	f.IntVar(&ca.Quality, "quality", config.DefaultQuality, "JPEG 编码质量（1-100）")
	f.BoolVar(&ca.ConvertPNG, "convertPng", config.DefaultConvertPNG, "把不含 alpha 的 PNG 转为 JPEG")
	f.BoolVar(&ca.UpdateMDX, "updateMdx", config.DefaultUpdateMDX, "格式转换后改写文章中的图片引用")
	f.BoolVar(&ca.DeleteOriginal, "deleteOriginal", config.DefaultDeleteOriginal, "格式转换后删除原文件")
	f.StringVar(&ca.ReportPath, "report", "", "额外把 JSON 报告写入该文件")
	f.StringVar(&ca.LogLevel, "log-level", config.DefaultLogLevel, "日志级别：debug|info|warn|error")
}

// markExplicit 记录哪些 flag 被显式指定；只有这些才覆盖环境变量与配置文件。
func markExplicit(f *pflag.FlagSet, ca *config.CLIArgs) {
	ca.DirSet = f.Changed("dir")
	ca.MaxWidthSet = f.Changed("maxWidth")
	ca.QualitySet = f.Changed("quality")
	ca.ConvertPNGSet = f.Changed("convertPng")
	ca.UpdateMDXSet = f.Changed("updateMdx")
	ca.DeleteOriginalSet = f.Changed("deleteOriginal")
	ca.LogLevelSet = f.Changed("log-level")
}

func (a *cli) runOptimize(ctx context.Context, ca config.CLIArgs) error {
	eff, err := config.LoadEffective(a.cwd, a.environ, ca)
	if err != nil {
		return &exitError{code: 1, err: err}
	}

	log := logging.New(eff.LogLevel, a.stderr, a.interactive)

	var obs run.Observer
	if a.interactive {
		obs = newProgressUI(a.stderr, a.cwd)
	}

	rr, runErr := run.ExecuteWithObserver(ctx, eff, log, obs)

	if eff.ReportPath != "" {
		if err := writeReportFile(eff.ReportPath, rr); err != nil {
			log.Error().Err(err).Str("file", eff.ReportPath).Msg("写入报告失败")
			emitReport(a.stdout, a.stderr, a.cwd, rr, a.interactive)
			return &exitError{code: 1, err: err}
		}
	}

	if runErr != nil {
		if run.Code(runErr) == domain.ErrCodeRootNotFound {
			return &exitError{code: 1, err: fmt.Errorf("目录不存在：%s", eff.Dir)}
		}
		emitReport(a.stdout, a.stderr, a.cwd, rr, a.interactive)
		return &exitError{code: 1, err: runErr}
	}

	emitReport(a.stdout, a.stderr, a.cwd, rr, a.interactive)
	return nil
}

func (a *cli) newConvertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert",
		Short: "把 crater-lake 大图转为压缩 JPEG（宽度不超过 2000，质量 80）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := convert.Run(convert.Fixed(a.cwd))
			if err != nil {
				if errors.Is(err, convert.ErrSourceNotFound) {
					return &exitError{code: 1, err: fmt.Errorf("Source file not found: %s", convert.Fixed(a.cwd).Src)}
				}
				return &exitError{code: 1, err: err}
			}
			fmt.Fprintln(a.stdout, "Converted to:", res.Dst)
			fmt.Fprintln(a.stdout, "Size before (PNG):", domain.FormatMB(res.SizeBefore), "MB")
			fmt.Fprintln(a.stdout, "Size after  (JPG):", domain.FormatMB(res.SizeAfter), "MB")
			return nil
		},
	}
}

func (a *cli) newCoversCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "covers",
		Short: "列出每篇文章的封面图（front matter image 优先，其次正文第一张图）",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			eff, err := config.LoadEffective(a.cwd, a.environ, config.CLIArgs{})
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			posts, err := mdx.ReadPosts(afero.NewOsFs(), eff.PostsDir, eff.PostSuffix)
			if err != nil {
				return &exitError{code: 1, err: err}
			}
			for _, c := range mdx.Covers(posts, limit) {
				fmt.Fprintf(a.stdout, "%s\t%s\t%s\n", c.Slug, c.Src, c.Title)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", mdx.DefaultCoverLimit, "最多列出的文章数")
	return cmd
}

func writeReportFile(path string, rr domain.RunReport) error {
	b, err := json.MarshalIndent(rr, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(dir, filepath.Base(path), 0o644, b)
}

func isTTY(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
