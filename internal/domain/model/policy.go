package model

// Policy 是校验策略文件（registry-policy.yaml）的顶层结构。
//
// 加载器先以 DefaultPolicy 填充，再把文件内容解码覆盖其上，
// 因此文件中省略的键保持默认值。
type Policy struct {
	Version string       `yaml:"version"`
	Assets  PolicyAssets `yaml:"assets"`
	Proxy   PolicyProxy  `yaml:"proxy"`
	Nginx   PolicyNginx  `yaml:"nginx"`
	Smoke   PolicySmoke  `yaml:"smoke"`
}

// PolicyAssets 配置资产交叉引用检查。
type PolicyAssets struct {
	EdgePixels        int  `yaml:"edge_pixels"`        // 要求的正方形边长（像素）
	EnforceDimensions bool `yaml:"enforce_dimensions"` // false 时只验格式不验尺寸
	StrictOrphans     bool `yaml:"strict_orphans"`     // false 时孤儿资产降级为 warning
}

// PolicyProxy 配置图片代理地址改写。
type PolicyProxy struct {
	BaseURL string `yaml:"base_url"`
}

// PolicyNginx 配置 nginx 镜像站点生成参数。
type PolicyNginx struct {
	ServerName   string `yaml:"server_name"`
	AssetsPrefix string `yaml:"assets_prefix"`
	CacheOK      string `yaml:"cache_ok"`    // 命中成功响应的缓存时长
	CacheNotOK   string `yaml:"cache_notok"` // 源站失败响应的缓存时长
}

// PolicySmoke 配置线上冒烟检查。
type PolicySmoke struct {
	TimeoutSeconds int      `yaml:"timeout_seconds"`
	ExtraEndpoints []string `yaml:"extra_endpoints"` // 额外要求 200 的路径
}

// DefaultPolicy 返回与发布环境一致的内置默认策略。
func DefaultPolicy() Policy {
	return Policy{
		Version: "1",
		Assets: PolicyAssets{
			EdgePixels:        288,
			EnforceDimensions: true,
			StrictOrphans:     true,
		},
		Proxy: PolicyProxy{
			BaseURL: "https://config.ton.org/assets",
		},
		Nginx: PolicyNginx{
			ServerName:   "config.ton.org",
			AssetsPrefix: "assets",
			CacheOK:      "10m",
			CacheNotOK:   "2m",
		},
		Smoke: PolicySmoke{
			TimeoutSeconds: 10,
		},
	}
}
