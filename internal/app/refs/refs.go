package refs

import (
	"bytes"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"

	"github.com/John-Robertt/imgopt/internal/domain"
	"github.com/John-Robertt/imgopt/internal/infra/fsx"
)

// Change 把一次路径变化换算为站点根相对的引用形式（"/images/a.png" -> "/images/a.jpg"）。
// publicDir 是站点静态资源根；引用总是 '/' 分隔、以 '/' 开头。
func Change(publicDir, srcAbs, dstAbs string) domain.PathChange {
	return domain.PathChange{
		From: rootRelative(publicDir, srcAbs),
		To:   rootRelative(publicDir, dstAbs),
	}
}

func rootRelative(publicDir, p string) string {
	rel, err := filepath.Rel(publicDir, p)
	if err != nil {
		rel = p
	}
	return path.Join("/", filepath.ToSlash(rel))
}

// Rewrite 扫描 dir（不递归）下以 suffix 结尾的文件，把每条 change 的 From 字面替换为 To。
//
// 规则：
// - 纯文本替换，不解析 MDX，也不校验引用是否位于合法语法结构内
// - changes 按顺序从左到右应用
// - 只有内容真正变化的文件才会写回；返回写回的文件路径（已排序）
// - dir 不存在：什么都不做
func Rewrite(fsys afero.Fs, dir, suffix string, changes []domain.PathChange) ([]string, error) {
	if len(changes) == 0 {
		return nil, nil
	}

	entries, err := afero.ReadDir(fsys, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	updated := make([]string, 0, 4)
	for _, e := range entries {
		if !e.Mode().IsRegular() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}

		p := filepath.Join(dir, e.Name())
		src, err := afero.ReadFile(fsys, p)
		if err != nil {
			return updated, err
		}

		replaced := src
		for _, c := range changes {
			if c.From == "" || c.From == c.To {
				continue
			}
			replaced = bytes.ReplaceAll(replaced, []byte(c.From), []byte(c.To))
		}
		if bytes.Equal(replaced, src) {
			continue
		}

		if err := writeBack(fsys, p, replaced, e.Mode().Perm()); err != nil {
			return updated, err
		}
		updated = append(updated, p)
	}

	sort.Strings(updated)
	return updated, nil
}

// writeBack 在真实文件系统上走原子替换；其他 afero 实现（测试用内存 fs）直接写。
func writeBack(fsys afero.Fs, p string, b []byte, perm os.FileMode) error {
	if _, ok := fsys.(*afero.OsFs); ok {
		return fsx.WriteFileAtomicReplace(filepath.Dir(p), filepath.Base(p), perm, b)
	}
	return afero.WriteFile(fsys, p, b, perm)
}
