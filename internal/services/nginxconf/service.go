package nginxconf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
)

// Options 定义一次 nginx 镜像站点配置生成的输入参数。
type Options struct {
	OriginsPath string // origins.json（proxyrewrite 的产物）
	OutputPath  string // 生成的 nginx.conf

	ServerName   string
	AssetsPrefix string
	CacheOK      string // 源站成功响应的缓存时长
	CacheNotOK   string // 源站失败响应的缓存时长
}

// Result 定义一次生成的摘要输出。
type Result struct {
	OutputPath string `json:"output_path"`
	MapEntries int    `json:"map_entries"`
}

type originEntry struct {
	File   string
	Origin string
}

type templateData struct {
	ServerName   string
	AssetsPrefix string
	CacheOK      string
	CacheNotOK   string
	Entries      []originEntry
}

// 资产镜像站点：注册表 JSON 直接回源磁盘，图片按 map 表转发到原始
// 地址并在本地缓存。map 里没有的文件名一律 404，站点不会变成开放代理。
const nginxTemplate = `# Generated by wallets-cli nginx. Do not edit by hand.

proxy_cache_path /var/cache/nginx/wallet_assets levels=1:2 keys_zone=wallet_assets:10m max_size=512m inactive=7d use_temp_path=off;

map $uri $wallet_asset_origin {
    default "";
{{- range .Entries}}
    /{{$.AssetsPrefix}}/{{.File}} {{.Origin}};
{{- end}}
}

server {
    listen 80;
    server_name {{.ServerName}};

    root /srv/wallets;

    location = /wallets-v2.json {
        default_type application/json;
        add_header Cache-Control "public, max-age=300";
    }

    location = /wallets.json {
        default_type application/json;
        add_header Cache-Control "public, max-age=300";
    }

    location /{{.AssetsPrefix}}/ {
        if ($wallet_asset_origin = "") {
            return 404;
        }

        resolver 1.1.1.1 8.8.8.8 valid=300s;
        proxy_pass $wallet_asset_origin;
        proxy_ssl_server_name on;

        proxy_cache wallet_assets;
        proxy_cache_valid 200 {{.CacheOK}};
        proxy_cache_valid any {{.CacheNotOK}};
        proxy_cache_use_stale error timeout updating http_500 http_502 http_503 http_504;
        add_header X-Cache-Status $upstream_cache_status;
    }
}
`

// Run 依据 origins 映射生成 nginx 镜像站点配置。
// map 条目按文件名字典序排列，同一份输入总是生成同一份配置。
func Run(ctx context.Context, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.OriginsPath == "" {
		opts.OriginsPath = "origins.json"
	}
	if opts.OutputPath == "" {
		opts.OutputPath = filepath.Join("server", "nginx.conf")
	}
	policyDefaults := model.DefaultPolicy().Nginx
	if opts.ServerName == "" {
		opts.ServerName = policyDefaults.ServerName
	}
	if opts.AssetsPrefix == "" {
		opts.AssetsPrefix = policyDefaults.AssetsPrefix
	}
	if opts.CacheOK == "" {
		opts.CacheOK = policyDefaults.CacheOK
	}
	if opts.CacheNotOK == "" {
		opts.CacheNotOK = policyDefaults.CacheNotOK
	}

	origins, err := loadOrigins(opts.OriginsPath)
	if err != nil {
		return nil, err
	}

	entries := make([]originEntry, 0, len(origins))
	for file, origin := range origins {
		entries = append(entries, originEntry{File: file, Origin: origin})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].File < entries[j].File })

	tmpl, err := template.New("nginx").Parse(nginxTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse nginx template: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, templateData{
		ServerName:   opts.ServerName,
		AssetsPrefix: opts.AssetsPrefix,
		CacheOK:      opts.CacheOK,
		CacheNotOK:   opts.CacheNotOK,
		Entries:      entries,
	})
	if err != nil {
		return nil, fmt.Errorf("render nginx template: %w", err)
	}

	if dir := filepath.Dir(opts.OutputPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(opts.OutputPath, buf.Bytes(), 0o644); err != nil {
		return nil, fmt.Errorf("write nginx config: %w", err)
	}

	return &Result{OutputPath: opts.OutputPath, MapEntries: len(entries)}, nil
}

// loadOrigins 读取 origins.json；顶层必须是 文件名->原始地址 的 JSON 对象。
func loadOrigins(path string) (map[string]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read origins file: %w", err)
	}

	var origins map[string]string
	if err := json.Unmarshal(raw, &origins); err != nil {
		return nil, fmt.Errorf("parse origins file: %w", err)
	}
	return origins, nil
}
