package model

// Platform 表示钱包客户端支持的平台。
type Platform string

const (
	// PlatformIOS 表示 iOS 客户端。
	PlatformIOS Platform = "ios"
	// PlatformAndroid 表示 Android 客户端。
	PlatformAndroid Platform = "android"
	// PlatformChrome 表示 Chrome 浏览器扩展。
	PlatformChrome Platform = "chrome"
	// PlatformFirefox 表示 Firefox 浏览器扩展。
	PlatformFirefox Platform = "firefox"
	// PlatformSafari 表示 Safari 浏览器扩展。
	PlatformSafari Platform = "safari"
	// PlatformMacOS 表示 macOS 桌面客户端。
	PlatformMacOS Platform = "macos"
	// PlatformWindows 表示 Windows 桌面客户端。
	PlatformWindows Platform = "windows"
	// PlatformLinux 表示 Linux 桌面客户端。
	PlatformLinux Platform = "linux"
)

// ValidPlatform 判断给定值是否为受支持平台。
func ValidPlatform(v string) bool {
	switch Platform(v) {
	case PlatformIOS, PlatformAndroid, PlatformChrome, PlatformFirefox,
		PlatformSafari, PlatformMacOS, PlatformWindows, PlatformLinux:
		return true
	}
	return false
}

// BridgeType 表示钱包桥接通道的变体标签。
type BridgeType string

const (
	// BridgeSSE 表示基于 HTTP SSE 的桥接通道。
	BridgeSSE BridgeType = "sse"
	// BridgeJS 表示注入式 JS 桥接通道。
	BridgeJS BridgeType = "js"
)

// FeatureName 表示钱包协议能力的变体标签。
type FeatureName string

const (
	// FeatureSendTransaction 表示发送交易能力（每条记录必须恰好声明一次）。
	FeatureSendTransaction FeatureName = "SendTransaction"
	// FeatureSignData 表示数据签名能力。
	FeatureSignData FeatureName = "SignData"
)

// SignDataTypes 是 SignData.types 允许的取值集合。
var SignDataTypes = map[string]bool{
	"text":   true,
	"binary": true,
	"cell":   true,
}

// BridgeEntry 表示一条桥接通道描述（wallets-v2.json bridge 数组元素）。
type BridgeEntry struct {
	Type BridgeType `json:"type"`
	URL  string     `json:"url,omitempty"` // sse 变体必填
	Key  string     `json:"key,omitempty"` // js 变体必填
}

// FeatureEntry 表示一条协议能力描述（wallets-v2.json features 数组元素）。
type FeatureEntry struct {
	Name FeatureName `json:"name"`

	// SendTransaction 变体字段。
	MaxMessages            int  `json:"maxMessages,omitempty"`
	ExtraCurrencySupported bool `json:"extraCurrencySupported,omitempty"`

	// SignData 变体字段。
	Types []string `json:"types,omitempty"`
}

// WalletRecord 是注册表记录的类型化视图。
//
// 该视图用于代理改写后的消费方（smoke 测试、deeplink 提取、HTTP 服务），
// 解码时对语义错误保持宽容；结构/语义校验由 walletcheck 针对原始 JSON 进行。
type WalletRecord struct {
	AppName      string         `json:"app_name"`
	Name         string         `json:"name"`
	Image        string         `json:"image"`
	AboutURL     string         `json:"about_url"`
	UniversalURL string         `json:"universal_url,omitempty"`
	DeepLink     string         `json:"deepLink,omitempty"`
	Bridge       []BridgeEntry  `json:"bridge,omitempty"`
	Platforms    []Platform     `json:"platforms,omitempty"`
	Features     []FeatureEntry `json:"features,omitempty"`
}
