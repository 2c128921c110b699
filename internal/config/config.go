package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	// ErrCodeInvalid 表示配置文件无法读取/解析，或字段不合法。
	ErrCodeInvalid = "config_invalid"
)

// FileName 是工作目录下可选配置文件的固定文件名。
const FileName = "imgopt.json"

const (
	DefaultDir            = "public/images"
	DefaultMaxWidth       = 1600
	DefaultQuality        = 80
	DefaultConvertPNG     = true
	DefaultUpdateMDX      = true
	DefaultDeleteOriginal = true
	DefaultPublicDir      = "public"
	DefaultPostsDir       = "app/blog/posts"
	DefaultPostSuffix     = ".mdx"
	DefaultLogLevel       = "info"
)

// 单文件转换（imgopt convert）的固定参数：不暴露任何 flag。
const (
	ConvertSrc      = "public/images/crater-lake/swimming_at_the_lake.png"
	ConvertDst      = "public/images/crater-lake/swimming_at_the_lake.jpg"
	ConvertMaxWidth = 2000
	ConvertQuality  = 80
)

// CLIArgs 是 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --convertPng=false 必须能覆盖配置文件里的 true。
type CLIArgs struct {
	Dir    string
	DirSet bool

	MaxWidth    int
	MaxWidthSet bool

	Quality    int
	QualitySet bool

	ConvertPNG    bool
	ConvertPNGSet bool

	UpdateMDX    bool
	UpdateMDXSet bool

	DeleteOriginal    bool
	DeleteOriginalSet bool

	ReportPath string

	LogLevel    string
	LogLevelSet bool
}

// FileConfig 对应 imgopt.json 的解析结构；指针字段区分“未写”与“零值”。
type FileConfig struct {
	Dir            string `json:"dir"`
	MaxWidth       *int   `json:"max_width"`
	Quality        *int   `json:"quality"`
	ConvertPNG     *bool  `json:"convert_png"`
	UpdateMDX      *bool  `json:"update_mdx"`
	DeleteOriginal *bool  `json:"delete_original"`
	PublicDir      string `json:"public_dir"`
	PostsDir       string `json:"posts_dir"`
	PostSuffix     string `json:"post_suffix"`
	LogLevel       string `json:"log_level"`
}

// EnvConfig 是 IMGOPT_* 环境变量的解析结构。
type EnvConfig struct {
	Dir            *string `env:"DIR"`
	MaxWidth       *int    `env:"MAX_WIDTH"`
	Quality        *int    `env:"QUALITY"`
	ConvertPNG     *bool   `env:"CONVERT_PNG"`
	UpdateMDX      *bool   `env:"UPDATE_MDX"`
	DeleteOriginal *bool   `env:"DELETE_ORIGINAL"`
	PostsDir       *string `env:"POSTS_DIR"`
	LogLevel       *string `env:"LOG_LEVEL"`
}

// EffectiveConfig 是合并并规范化后的最终配置。
// 构造后不再修改，按值传入每个组件（不存在进程级单例）。
type EffectiveConfig struct {
	Cwd string

	Dir      string // 扫描根目录（绝对路径）
	MaxWidth int
	Quality  int

	ConvertPNG     bool
	UpdateMDX      bool
	DeleteOriginal bool

	// PublicDir 是站点静态资源根；MDX 中的引用是相对它的 "/images/..." 形式。
	PublicDir  string
	PostsDir   string
	PostSuffix string

	ReportPath string
	LogLevel   string
}

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s：%q：%v", e.Code, e.Path, e.Err)
	}
	return fmt.Sprintf("%s：%v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// LoadEffective 读取 <cwd>/imgopt.json（可选）与 IMGOPT_* 环境变量，然后与 CLI 参数合并为最终配置。
//
// 覆盖优先级（固定）：CLI 显式指定 > 环境变量 > 配置文件 > 内置默认。
// environ 为 nil 时读取进程环境（测试可注入）。
func LoadEffective(cwd string, environ map[string]string, cli CLIArgs) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	fc, err := readFileConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	var ec EnvConfig
	if err := env.ParseWithOptions(&ec, env.Options{Prefix: "IMGOPT_", Environment: environ}); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Err: fmt.Errorf("环境变量无效：%w", err)}
	}

	eff := EffectiveConfig{
		Cwd:            cwdAbs,
		Dir:            DefaultDir,
		MaxWidth:       DefaultMaxWidth,
		Quality:        DefaultQuality,
		ConvertPNG:     DefaultConvertPNG,
		UpdateMDX:      DefaultUpdateMDX,
		DeleteOriginal: DefaultDeleteOriginal,
		PublicDir:      DefaultPublicDir,
		PostsDir:       DefaultPostsDir,
		PostSuffix:     DefaultPostSuffix,
		LogLevel:       DefaultLogLevel,
	}

	// 配置文件层
	setString(&eff.Dir, fc.Dir)
	setPtr(&eff.MaxWidth, fc.MaxWidth)
	setPtr(&eff.Quality, fc.Quality)
	setPtr(&eff.ConvertPNG, fc.ConvertPNG)
	setPtr(&eff.UpdateMDX, fc.UpdateMDX)
	setPtr(&eff.DeleteOriginal, fc.DeleteOriginal)
	setString(&eff.PublicDir, fc.PublicDir)
	setString(&eff.PostsDir, fc.PostsDir)
	setString(&eff.PostSuffix, fc.PostSuffix)
	setString(&eff.LogLevel, fc.LogLevel)

	// 环境变量层
	if ec.Dir != nil {
		setString(&eff.Dir, *ec.Dir)
	}
	setPtr(&eff.MaxWidth, ec.MaxWidth)
	setPtr(&eff.Quality, ec.Quality)
	setPtr(&eff.ConvertPNG, ec.ConvertPNG)
	setPtr(&eff.UpdateMDX, ec.UpdateMDX)
	setPtr(&eff.DeleteOriginal, ec.DeleteOriginal)
	if ec.PostsDir != nil {
		setString(&eff.PostsDir, *ec.PostsDir)
	}
	if ec.LogLevel != nil {
		setString(&eff.LogLevel, *ec.LogLevel)
	}

	// CLI 层：只有显式指定的参数才覆盖。
	if cli.DirSet {
		eff.Dir = cli.Dir
	}
	if cli.MaxWidthSet {
		eff.MaxWidth = cli.MaxWidth
	}
	if cli.QualitySet {
		eff.Quality = cli.Quality
	}
	if cli.ConvertPNGSet {
		eff.ConvertPNG = cli.ConvertPNG
	}
	if cli.UpdateMDXSet {
		eff.UpdateMDX = cli.UpdateMDX
	}
	if cli.DeleteOriginalSet {
		eff.DeleteOriginal = cli.DeleteOriginal
	}
	if cli.LogLevelSet {
		eff.LogLevel = cli.LogLevel
	}
	eff.ReportPath = cli.ReportPath

	if err := validate(eff); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	eff.Dir = absCleanFrom(cwdAbs, eff.Dir)
	eff.PublicDir = absCleanFrom(cwdAbs, eff.PublicDir)
	eff.PostsDir = absCleanFrom(cwdAbs, eff.PostsDir)
	if strings.TrimSpace(eff.ReportPath) != "" {
		eff.ReportPath = absCleanFrom(cwdAbs, eff.ReportPath)
	}
	eff.LogLevel = strings.ToLower(strings.TrimSpace(eff.LogLevel))
	return eff, nil
}

func validate(eff EffectiveConfig) error {
	if strings.TrimSpace(eff.Dir) == "" {
		return fmt.Errorf("dir 不能为空")
	}
	if eff.MaxWidth < 1 {
		return fmt.Errorf("maxWidth 必须 >= 1，实际是 %d", eff.MaxWidth)
	}
	if eff.Quality < 1 || eff.Quality > 100 {
		return fmt.Errorf("quality 必须在 [1, 100]，实际是 %d", eff.Quality)
	}
	if !strings.HasPrefix(eff.PostSuffix, ".") {
		return fmt.Errorf("post_suffix 必须以 '.' 开头，实际是 %q", eff.PostSuffix)
	}
	switch strings.ToLower(strings.TrimSpace(eff.LogLevel)) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("log_level 只能是 debug|info|warn|error，实际是 %q", eff.LogLevel)
	}
}

func setString(dst *string, v string) {
	if strings.TrimSpace(v) != "" {
		*dst = strings.TrimSpace(v)
	}
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
func absCleanFrom(base, p string) string {
	p = filepath.Clean(strings.TrimSpace(p))
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}

// readFileConfig 读取并解析 JSON 配置文件；文件不存在返回零值且不报错。
func readFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, err
	}
	if err := json.Unmarshal(b, &fc); err != nil {
		return FileConfig{}, err
	}
	return fc, nil
}
