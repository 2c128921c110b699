package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/John-Robertt/imgopt/internal/domain"
	"github.com/John-Robertt/imgopt/internal/infra/fsx"
)

// ErrRootNotFound 表示扫描根目录不存在（或不是目录）。批处理遇到它必须在任何处理之前中止。
var ErrRootNotFound = errors.New("扫描根目录不存在")

// Walk 递归列出 root 下的所有常规文件（目录透明遍历，不出现在结果中）。
//
// 规则：
// - 只做 stat（DirEntry.Info），不读文件内容
// - 不跟随符号链接；非常规文件（socket/设备/链接）跳过
// - 上次中断残留的原子写临时文件（.<name>.tmp-*）跳过
func Walk(root string) ([]domain.FileRecord, error) {
	root = filepath.Clean(root)

	fi, err := os.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w：%q", ErrRootNotFound, root)
		}
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("%w：%q 不是目录", ErrRootNotFound, root)
	}

	files := make([]domain.FileRecord, 0, 128)
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		name := d.Name()
		if fsx.IsTempName(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		rawExt := filepath.Ext(name)
		files = append(files, domain.FileRecord{
			AbsPath: path,
			RelPath: rel,
			Base:    strings.TrimSuffix(name, rawExt),
			Ext:     strings.ToLower(rawExt),
			Size:    info.Size(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// 强制稳定输出，避免不同平台/文件系统行为差异带来的不确定性。
	sort.Slice(files, func(i, j int) bool { return files[i].RelPath < files[j].RelPath })
	return files, nil
}
