package policy

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"

	"gopkg.in/yaml.v3"
)

// Loader 负责从磁盘读取并校验策略文件。
type Loader struct {
	File string

	// Optional 表示 File 来自默认约定路径：文件不存在时回退内置默认策略。
	// 显式指定的路径缺失仍然报错。
	Optional bool
}

// LoadedPolicy 是加载后的策略与其文件哈希（回退默认值时哈希为空）。
type LoadedPolicy struct {
	Policy model.Policy
	Path   string
	SHA256 string
}

func NewLoader(file string, optional bool) *Loader {
	return &Loader{File: file, Optional: optional}
}

// Load 读取策略文件并覆盖到内置默认值之上。
func (l *Loader) Load(ctx context.Context) (*LoadedPolicy, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p := model.DefaultPolicy()

	raw, err := os.ReadFile(l.File)
	if err != nil {
		if l.Optional && errors.Is(err, os.ErrNotExist) {
			return &LoadedPolicy{Policy: p}, nil
		}
		return nil, fmt.Errorf("read policy file: %w", err)
	}

	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse policy file: %w", err)
	}
	if err := validatePolicy(p); err != nil {
		return nil, err
	}

	return &LoadedPolicy{
		Policy: p,
		Path:   l.File,
		SHA256: hash.Bytes(raw),
	}, nil
}

// validatePolicy 检查策略取值的基本合法性。
func validatePolicy(p model.Policy) error {
	if p.Assets.EdgePixels <= 0 {
		return fmt.Errorf("policy: assets.edge_pixels must be positive, got %d", p.Assets.EdgePixels)
	}
	if base := strings.TrimSpace(p.Proxy.BaseURL); base != "" {
		u, err := url.Parse(base)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("policy: proxy.base_url is not an absolute URL: %s", base)
		}
	}
	if strings.TrimSpace(p.Nginx.ServerName) == "" {
		return errors.New("policy: nginx.server_name is required")
	}
	if strings.TrimSpace(p.Nginx.AssetsPrefix) == "" {
		return errors.New("policy: nginx.assets_prefix is required")
	}
	if strings.TrimSpace(p.Nginx.CacheOK) == "" || strings.TrimSpace(p.Nginx.CacheNotOK) == "" {
		return errors.New("policy: nginx cache durations are required")
	}
	if p.Smoke.TimeoutSeconds <= 0 {
		return fmt.Errorf("policy: smoke.timeout_seconds must be positive, got %d", p.Smoke.TimeoutSeconds)
	}
	return nil
}
