package deeplink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ton-blockchain/wallets-list/internal/adapters/registry"
	"github.com/ton-blockchain/wallets-list/internal/app"

	"howett.net/plist"
)

// Options 定义一次深链接提取的输入参数。
type Options struct {
	WalletsPath string

	// PlistPath 非空时额外生成 iOS 探测清单（LSApplicationQueriesSchemes）。
	// iOS 应用要探测“装了哪个钱包”，必须在 Info.plist 里预先声明这些 scheme。
	PlistPath string
}

// Result 定义一次提取的输出。
type Result struct {
	DeepLinks []string `json:"deep_links"` // 排序去重后的原始 deepLink 值
	CSPPolicy string   `json:"csp_policy"` // frame-src 策略行
	PlistPath string   `json:"plist_path,omitempty"`
}

// Run 从注册表提取 deepLink 值并生成 CSP frame-src 策略行。
func Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.WalletsPath == "" {
		opts.WalletsPath = app.DefaultConfig().WalletsPath
	}

	loader := registry.Loader{WalletsFile: opts.WalletsPath}
	reg, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	links := extractDeepLinks(reg.RawRecords)
	res := &Result{
		DeepLinks: links,
		CSPPolicy: FormatCSP(links),
	}

	if opts.PlistPath != "" {
		if err := writeQueriesSchemes(opts.PlistPath, links); err != nil {
			return nil, err
		}
		res.PlistPath = opts.PlistPath
	}
	return res, nil
}

// extractDeepLinks 收集带 deepLink 键的记录的字符串值，排序去重。
// 同时接受 deep_link 写法。
func extractDeepLinks(records []any) []string {
	seen := make(map[string]bool)
	var out []string
	for _, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		link, ok := obj["deepLink"].(string)
		if !ok || link == "" {
			link, ok = obj["deep_link"].(string)
		}
		if !ok || link == "" {
			continue
		}
		if !seen[link] {
			seen[link] = true
			out = append(out, link)
		}
	}
	sort.Strings(out)
	return out
}

// FormatCSP 把 deepLink 值格式化为 CSP frame-src 策略行。
// 带 :// 的值只保留 scheme 部分并以冒号结尾，其余值原样进入策略。
func FormatCSP(links []string) string {
	if len(links) == 0 {
		return "frame-src http: https:;"
	}

	formatted := make([]string, 0, len(links))
	for _, l := range links {
		if idx := strings.Index(l, "://"); idx >= 0 {
			formatted = append(formatted, l[:idx]+":")
		} else {
			formatted = append(formatted, l)
		}
	}
	return "frame-src http: https: " + strings.Join(formatted, " ") + ";"
}

// Schemes 把 deepLink 值化简为裸 scheme 名（无冒号），排序去重。
func Schemes(links []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, l := range links {
		s := l
		if idx := strings.Index(s, "://"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSuffix(s, ":")
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// queriesSchemes 是 iOS Info.plist 片段的结构。
type queriesSchemes struct {
	LSApplicationQueriesSchemes []string `plist:"LSApplicationQueriesSchemes"`
}

func writeQueriesSchemes(path string, links []string) error {
	schemes := Schemes(links)
	if schemes == nil {
		schemes = []string{}
	}

	raw, err := plist.MarshalIndent(queriesSchemes{LSApplicationQueriesSchemes: schemes}, plist.XMLFormat, "\t")
	if err != nil {
		return fmt.Errorf("marshal queries schemes plist: %w", err)
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create plist directory: %w", err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return fmt.Errorf("write queries schemes plist: %w", err)
	}
	return nil
}
