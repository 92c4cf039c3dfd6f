package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Scanner 负责列举资产目录中的 PNG 文件。
// 只读访问：流水线从不写资产目录。
type Scanner struct {
	Dir string
}

// FileInfo 是目录中一个候选资产文件的索引项。
type FileInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SizeBytes int64  `json:"size_bytes"`
}

func NewScanner(dir string) *Scanner {
	return &Scanner{Dir: dir}
}

// Path 返回目录内某个文件名的完整路径。
func (s *Scanner) Path(name string) string {
	return filepath.Join(s.Dir, name)
}

// Exists 判断目录内是否存在指定名字的普通文件。
func (s *Scanner) Exists(name string) bool {
	fi, err := os.Stat(s.Path(name))
	return err == nil && fi.Mode().IsRegular()
}

// ListPNGs 按文件名字典序返回目录内全部 *.png 文件。
// 目录不存在视为空目录（注册表可以先于资产目录存在）。
func (s *Scanner) ListPNGs(ctx context.Context) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read assets dir: %w", err)
	}

	out := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".png") {
			continue
		}
		info := FileInfo{Name: e.Name(), Path: s.Path(e.Name())}
		if fi, err := e.Info(); err == nil {
			info.SizeBytes = fi.Size()
		}
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
