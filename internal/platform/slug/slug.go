package slug

import "strings"

// Make 把人类可读的 app_name 归一化为文件系统安全的标识：
// 全部小写；[a-z0-9] 之外的字符替换为下划线；连续下划线折叠为一个；
// 去掉首尾下划线。纯函数、确定性、幂等（Make(Make(x)) == Make(x)）。
//
// 注意：不同输入可能折叠到同一标识（例如 "a.b" 与 "a_b"），
// 冲突检测由资产交叉引用环节负责。
func Make(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	pending := false
	for _, r := range strings.ToLower(name) {
		alnum := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
		if !alnum {
			// 只有在已写入内容之后才可能补下划线，天然去掉了前导下划线。
			if b.Len() > 0 {
				pending = true
			}
			continue
		}
		if pending {
			b.WriteByte('_')
			pending = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// PNGName 返回 app_name 对应的资产文件名（<slug>.png）。
func PNGName(appName string) string {
	return Make(appName) + ".png"
}
