package proxyrewrite

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ton-blockchain/wallets-list/internal/adapters/registry"
	"github.com/ton-blockchain/wallets-list/internal/app"
	"github.com/ton-blockchain/wallets-list/internal/platform/slug"
)

// Options 定义一次图片地址代理改写的输入参数。
type Options struct {
	InputPath   string // 注册表输入文件
	OutputPath  string // 改写后的注册表输出文件
	OriginsPath string // 文件名 -> 原始地址 映射输出文件
	BaseURL     string // 代理地址前缀
}

// Result 定义一次改写的摘要输出。
type Result struct {
	OutputPath     string `json:"output_path"`
	OriginsPath    string `json:"origins_path"`
	WalletCount    int    `json:"wallet_count"`
	RewrittenCount int    `json:"rewritten_count"`
	OriginCount    int    `json:"origin_count"`

	// Mappings 按文件名字典序列出 文件名 -> 原始地址。
	Mappings []Mapping `json:"mappings,omitempty"`
}

// Mapping 是一条镜像文件名到原始图片地址的映射。
type Mapping struct {
	File   string `json:"file"`
	Origin string `json:"origin"`
}

// Run 把每条记录的 image 地址替换为 `<base>/<slug>.png`，并生成
// origins.json 记录文件名到原始地址的映射（镜像同步脚本的输入）。
//
// 只有同时带 app_name 和 image 的记录才会被改写，其余字段原样保留。
// 两个不同 app_name 折叠到同一文件名会让一方的原始地址被覆盖，
// 这里视为硬错误而不是静默覆盖。
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defaults := app.DefaultConfig()
	if opts.InputPath == "" {
		opts.InputPath = defaults.WalletsPath
	}
	if opts.OutputPath == "" {
		opts.OutputPath = "wallets-v2.proxy.json"
	}
	if opts.OriginsPath == "" {
		opts.OriginsPath = "origins.json"
	}
	if strings.TrimSpace(opts.BaseURL) == "" {
		opts.BaseURL = defaults.ProxyBaseURL
	}
	base := strings.TrimRight(opts.BaseURL, "/")

	loader := registry.Loader{WalletsFile: opts.InputPath}
	reg, err := loader.Load(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]any, 0, len(reg.RawRecords))
	origins := make(map[string]any)
	slugOwner := make(map[string]string) // 文件名 -> 首个 app_name
	rewritten := 0

	for i, rec := range reg.RawRecords {
		obj, ok := rec.(map[string]any)
		if !ok {
			out = append(out, rec)
			continue
		}
		appName, okName := obj["app_name"].(string)
		imageRaw, okImage := obj["image"]
		if !okName || !okImage {
			out = append(out, obj)
			continue
		}

		name := slug.PNGName(appName)
		if owner, seen := slugOwner[name]; seen && owner != appName {
			return nil, fmt.Errorf("rewrite record %d: app_name %q collides with %q on filename %s",
				i, appName, owner, name)
		}
		slugOwner[name] = appName

		copied := make(map[string]any, len(obj))
		for k, v := range obj {
			copied[k] = v
		}
		copied["image"] = base + "/" + name
		origins[name] = imageRaw

		out = append(out, copied)
		rewritten++
	}

	if err := saveJSON(opts.OutputPath, out); err != nil {
		return nil, fmt.Errorf("write proxy registry: %w", err)
	}
	if err := saveJSON(opts.OriginsPath, origins); err != nil {
		return nil, fmt.Errorf("write origins mapping: %w", err)
	}

	mappings := make([]Mapping, 0, len(origins))
	for file, origin := range origins {
		mappings = append(mappings, Mapping{File: file, Origin: fmt.Sprint(origin)})
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].File < mappings[j].File })

	return &Result{
		OutputPath:     opts.OutputPath,
		OriginsPath:    opts.OriginsPath,
		WalletCount:    len(reg.RawRecords),
		RewrittenCount: rewritten,
		OriginCount:    len(origins),
		Mappings:       mappings,
	}, nil
}

// saveJSON 以两空格缩进写 JSON 文件，URL 中的字符不做 HTML 转义。
func saveJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}
