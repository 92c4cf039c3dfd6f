package smoketest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ton-blockchain/wallets-list/internal/platform/pngcheck"
)

const userAgent = "ton-wallets-smoke/1.0"

// Options 定义一次线上冒烟检查的输入参数。
type Options struct {
	BaseURL string // 被测站点，例如 http://localhost:8080

	// ExpectedBaseURL 是注册表中图片地址的期望前缀。命中前缀的地址
	// 会改写为 `<BaseURL>/<AssetsPrefix>/...` 后再请求，这样可以在
	// 正式域名切换前对着本地容器验证。
	ExpectedBaseURL string
	AssetsPrefix    string // 默认 assets

	Timeout        time.Duration // 单请求超时，默认 10s
	ExtraEndpoints []string      // 额外要求 200 的路径（如 /healthz）

	// WalletsOnly 只校验注册表文档本身，不逐个请求图片。
	WalletsOnly bool

	HTTPClient *http.Client // 为空时按 Timeout 新建
}

// Check 是一项冒烟检查的结果。
type Check struct {
	Name   string `json:"name"`
	Target string `json:"target"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Result 定义一次冒烟检查的汇总输出。
type Result struct {
	BaseURL     string  `json:"base_url"`
	WalletCount int     `json:"wallet_count"`
	Checks      []Check `json:"checks"`
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
}

// Run 对运行中的注册表站点执行冒烟检查：
// 1) /wallets-v2.json 与 /wallets.json 可获取且为 JSON 数组
// 2) wallets-v2.json 引用的每个图片地址返回 PNG（状态码/Content-Type/文件头）
// 3) 额外端点返回 2xx
//
// 单项失败不中断整轮检查；Result.Failed > 0 表示站点不健康。
func Run(ctx context.Context, opts Options) (*Result, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if opts.AssetsPrefix == "" {
		opts.AssetsPrefix = "assets"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	expected := strings.TrimRight(strings.TrimSpace(opts.ExpectedBaseURL), "/")

	c := opts.HTTPClient
	if c == nil {
		c = &http.Client{Timeout: opts.Timeout}
	}

	res := &Result{BaseURL: base}

	walletsV2, err := fetchJSONList(ctx, c, base+"/wallets-v2.json")
	res.add(Check{
		Name:   "fetch wallets-v2.json",
		Target: base + "/wallets-v2.json",
		OK:     err == nil,
		Detail: errDetail(err),
	})
	if err == nil {
		res.WalletCount = len(walletsV2)
	}

	_, err = fetchJSONList(ctx, c, base+"/wallets.json")
	res.add(Check{
		Name:   "fetch wallets.json",
		Target: base + "/wallets.json",
		OK:     err == nil,
		Detail: errDetail(err),
	})

	if walletsV2 != nil && !opts.WalletsOnly {
		originals, targets := imageTargets(walletsV2, expected, base+"/"+opts.AssetsPrefix)
		for i, target := range targets {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			err := checkImage(ctx, c, target)
			res.add(Check{
				Name:   "image " + originals[i],
				Target: target,
				OK:     err == nil,
				Detail: errDetail(err),
			})
		}
	}

	for _, ep := range opts.ExtraEndpoints {
		if !strings.HasPrefix(ep, "/") {
			ep = "/" + ep
		}
		err := checkEndpoint(ctx, c, base+ep)
		res.add(Check{
			Name:   "endpoint " + ep,
			Target: base + ep,
			OK:     err == nil,
			Detail: errDetail(err),
		})
	}

	return res, nil
}

func (r *Result) add(c Check) {
	r.Checks = append(r.Checks, c)
	if c.OK {
		r.Passed++
	} else {
		r.Failed++
	}
}

func errDetail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// imageTargets 提取 wallets-v2 中的字符串 image 地址（按首次出现顺序
// 去重），并把命中期望前缀的地址改写到被测站点上。
func imageTargets(wallets []any, expected, replacement string) (originals, targets []string) {
	seen := make(map[string]bool)
	for _, w := range wallets {
		obj, ok := w.(map[string]any)
		if !ok {
			continue
		}
		u, ok := obj["image"].(string)
		if !ok || u == "" || seen[u] {
			continue
		}
		seen[u] = true
		originals = append(originals, u)

		if expected != "" && strings.HasPrefix(u, expected) {
			targets = append(targets, replacement+strings.TrimPrefix(u, expected))
		} else {
			targets = append(targets, u)
		}
	}
	return originals, targets
}

func get(ctx context.Context, c *http.Client, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return c.Do(req)
}

// fetchJSONList 获取并解析一个顶层为数组的 JSON 文档。
func fetchJSONList(ctx context.Context, c *http.Client, url string) ([]any, error) {
	resp, err := get(ctx, c, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	var out []any
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("expected a JSON array: %w", err)
	}
	return out, nil
}

// checkImage 要求 2xx、Content-Type 含 image/png、响应体以 PNG 签名开头。
func checkImage(ctx context.Context, c *http.Client, url string) error {
	resp, err := get(ctx, c, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}

	ct := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ct, "image/png") {
		return fmt.Errorf("invalid content-type: %s", ct)
	}
	if len(b) == 0 {
		return fmt.Errorf("empty response body")
	}
	if !bytes.HasPrefix(b, pngcheck.Signature) {
		return fmt.Errorf("response body is not a PNG image")
	}
	return nil
}

func checkEndpoint(ctx context.Context, c *http.Client, url string) error {
	resp, err := get(ctx, c, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return nil
}
