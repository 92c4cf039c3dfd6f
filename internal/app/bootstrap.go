package app

// Version/Commit/BuildTime 由构建时 -ldflags 注入，用于报告与 /api/meta 展示。
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)

// Config 存放应用级默认路径与发布参数配置。
type Config struct {
	WalletsPath       string
	LegacyWalletsPath string
	AssetsDir         string
	DBPath            string
	ReportDir         string
	PolicyPath        string

	// ProxyBaseURL 是镜像资产的对外基础地址（结尾不带 /）。
	ProxyBaseURL string

	// nginx 生成参数。
	ServerName   string
	AssetsPrefix string
	CacheOK      string
	CacheNotOK   string
}

// DefaultConfig 返回仓库根目录布局下的默认配置。
func DefaultConfig() Config {
	return Config{
		WalletsPath:       "wallets-v2.json",
		LegacyWalletsPath: "wallets.json",
		AssetsDir:         "assets",
		DBPath:            "data/registry.db",
		ReportDir:         "data/reports",
		PolicyPath:        "registry-policy.yaml",
		ProxyBaseURL:      "https://config.ton.org/assets",
		ServerName:        "config.ton.org",
		AssetsPrefix:      "assets",
		CacheOK:           "10m",
		CacheNotOK:        "2m",
	}
}
