package reportzip

import (
	"archive/zip"
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
)

// BundleCheck 是导出包内单个文件的核对结果。
type BundleCheck struct {
	Path     string `json:"path"`
	OK       bool   `json:"ok"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
	Detail   string `json:"detail,omitempty"`
}

// BundleVerifyResult 是对一个运行导出包的完整核对结论。
type BundleVerifyResult struct {
	ZipPath string        `json:"zip_path"`
	OK      bool          `json:"ok"`
	Total   int           `json:"total"`
	Failed  int           `json:"failed"`
	Checks  []BundleCheck `json:"checks"`
}

// VerifyBundle 离线核对一个运行导出包：
// 1) 按 hashes.sha256 重新计算每个成员文件的 SHA-256
// 2) 发现“清单里有、包里没有”与“包里有、清单里没有”的文件
//
// hashes.sha256 自身不在清单内（写入时无法包含自身哈希），因此跳过。
func VerifyBundle(zipPath string) (*BundleVerifyResult, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	defer zr.Close()

	members := make(map[string]*zip.File, len(zr.File))
	for _, zf := range zr.File {
		members[zf.Name] = zf
	}

	hashFile, ok := members["hashes.sha256"]
	if !ok {
		return nil, fmt.Errorf("hashes.sha256 not found in %s", zipPath)
	}
	expected, err := parseHashList(hashFile)
	if err != nil {
		return nil, err
	}
	if len(expected) == 0 {
		return nil, fmt.Errorf("hashes.sha256 lists no files")
	}

	res := &BundleVerifyResult{
		ZipPath: zipPath,
		OK:      true,
		Checks:  []BundleCheck{},
	}
	add := func(c BundleCheck) {
		res.Checks = append(res.Checks, c)
		res.Total++
		if !c.OK {
			res.OK = false
			res.Failed++
		}
	}

	for path, want := range expected {
		zf, ok := members[path]
		if !ok {
			add(BundleCheck{Path: path, Expected: want, Detail: "file missing from archive"})
			continue
		}
		got, err := hashZipMember(zf)
		if err != nil {
			add(BundleCheck{Path: path, Expected: want, Detail: "read: " + err.Error()})
			continue
		}
		add(BundleCheck{
			Path:     path,
			OK:       got == want,
			Expected: want,
			Actual:   got,
		})
	}

	for _, zf := range zr.File {
		if zf.Name == "hashes.sha256" {
			continue
		}
		if _, listed := expected[zf.Name]; !listed {
			add(BundleCheck{Path: zf.Name, Detail: "not listed in hashes.sha256"})
		}
	}

	sort.Slice(res.Checks, func(i, j int) bool { return res.Checks[i].Path < res.Checks[j].Path })
	return res, nil
}

// parseHashList 解析 sha256sum 兼容格式：<sha256><两个空格><path>，# 开头为注释。
func parseHashList(zf *zip.File) (map[string]string, error) {
	rc, err := zf.Open()
	if err != nil {
		return nil, fmt.Errorf("open hashes.sha256: %w", err)
	}
	defer rc.Close()

	out := map[string]string{}
	sc := bufio.NewScanner(rc)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		sum, path, ok := strings.Cut(text, "  ")
		if !ok {
			return nil, fmt.Errorf("hashes.sha256 line %d: malformed entry", line)
		}
		sum = strings.TrimSpace(sum)
		path = strings.TrimSpace(path)
		if len(sum) != 64 || path == "" {
			return nil, fmt.Errorf("hashes.sha256 line %d: malformed entry", line)
		}
		out[path] = sum
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read hashes.sha256: %w", err)
	}
	return out, nil
}

func hashZipMember(zf *zip.File) (string, error) {
	rc, err := zf.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, rc); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
