package walletcheck

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
)

// 字段清单与遍历顺序即报告输出顺序，调整会改变对外报告，需同步更新测试。
var (
	requiredFields = []string{"app_name", "name", "image", "about_url", "bridge", "platforms", "features"}
	stringFields   = []string{"app_name", "name", "image", "about_url"}
	urlFields      = []string{"image", "about_url", "universal_url"}
	arrayFields    = []string{"bridge", "platforms", "features"}
)

// CheckRecord 校验单条注册表记录并把诊断追加到 rep。
//
// 除“记录不是对象”外所有检查相互独立：一个字段的失败不会跳过
// 其余字段，单次运行即可暴露整条记录的全部问题。
func CheckRecord(rep *model.Report, rec any, index int) {
	obj, ok := rec.(map[string]any)
	if !ok {
		appendErr(rep, model.KindStructural, index, recordPath(index), "Record must be a JSON object")
		return
	}

	for _, f := range requiredFields {
		if _, present := obj[f]; !present {
			appendErr(rep, model.KindMissingField, index, fieldPath(index, f), "Missing required field: "+f)
		}
	}

	for _, f := range stringFields {
		v, present := obj[f]
		if !present {
			continue
		}
		s, isStr := v.(string)
		if !isStr || strings.TrimSpace(s) == "" {
			appendErr(rep, model.KindField, index, fieldPath(index, f),
				fmt.Sprintf("Field '%s' must be a non-empty string", f))
		}
	}

	for _, f := range urlFields {
		v, present := obj[f]
		if !present {
			continue
		}
		s, isStr := v.(string)
		if !isStr || !validURL(s) {
			appendErr(rep, model.KindField, index, fieldPath(index, f),
				fmt.Sprintf("Field '%s' must be a valid URL", f))
		}
	}

	for _, f := range arrayFields {
		v, present := obj[f]
		if !present {
			continue
		}
		arr, isArr := v.([]any)
		if !isArr || len(arr) == 0 {
			appendErr(rep, model.KindField, index, fieldPath(index, f),
				fmt.Sprintf("Field '%s' must be a non-empty array", f))
		}
	}

	checkPlatforms(rep, obj, index)
	checkBridge(rep, obj, index)
	checkFeatures(rep, obj, index)
}

func checkPlatforms(rep *model.Report, obj map[string]any, index int) {
	arr, ok := obj["platforms"].([]any)
	if !ok {
		// 缺失或非数组已由前序检查报告。
		return
	}
	for i, item := range arr {
		s, isStr := item.(string)
		if !isStr || !model.ValidPlatform(s) {
			appendErr(rep, model.KindField, index, elemPath(index, "platforms", i),
				fmt.Sprintf("Invalid platform: %v", item))
		}
	}
}

func checkBridge(rep *model.Report, obj map[string]any, index int) {
	arr, ok := obj["bridge"].([]any)
	if !ok {
		return
	}

	counts := make(map[model.BridgeType]int, 2)
	for i, item := range arr {
		path := elemPath(index, "bridge", i)
		entry, isObj := item.(map[string]any)
		if !isObj {
			appendErr(rep, model.KindField, index, path, "Bridge entry must be a JSON object")
			continue
		}
		rawType, present := entry["type"]
		if !present {
			appendErr(rep, model.KindField, index, path, "Bridge entry missing 'type'")
			continue
		}
		t, _ := rawType.(string)
		switch model.BridgeType(t) {
		case model.BridgeSSE:
			counts[model.BridgeSSE]++
			u, _ := entry["url"].(string)
			if !validURL(u) {
				appendErr(rep, model.KindField, index, path+".url", "Bridge 'sse' entry must have a valid 'url'")
			}
		case model.BridgeJS:
			counts[model.BridgeJS]++
			k, _ := entry["key"].(string)
			if strings.TrimSpace(k) == "" {
				appendErr(rep, model.KindField, index, path+".key", "Bridge 'js' entry must have a non-empty 'key'")
			}
		default:
			appendErr(rep, model.KindField, index, path, fmt.Sprintf("Invalid bridge type: %v", rawType))
		}
	}

	// 只有可识别的变体参与重复统计；每种变体最多报一条。
	for _, t := range []model.BridgeType{model.BridgeSSE, model.BridgeJS} {
		if counts[t] > 1 {
			appendErr(rep, model.KindDuplicate, index, fieldPath(index, "bridge"),
				fmt.Sprintf("Duplicate bridge type: %s", t))
		}
	}
}

func checkFeatures(rep *model.Report, obj map[string]any, index int) {
	arr, ok := obj["features"].([]any)
	if !ok {
		return
	}

	counts := make(map[model.FeatureName]int, 2)
	for i, item := range arr {
		path := elemPath(index, "features", i)
		entry, isObj := item.(map[string]any)
		if !isObj {
			appendErr(rep, model.KindField, index, path, "Feature entry must be a JSON object")
			continue
		}
		rawName, present := entry["name"]
		if !present {
			appendErr(rep, model.KindField, index, path, "Feature entry missing 'name'")
			continue
		}
		name, _ := rawName.(string)
		switch model.FeatureName(name) {
		case model.FeatureSendTransaction:
			counts[model.FeatureSendTransaction]++
			if !positiveInt(entry["maxMessages"]) {
				appendErr(rep, model.KindField, index, path+".maxMessages",
					"Feature 'SendTransaction' must have a positive integer 'maxMessages'")
			}
			if _, isBool := entry["extraCurrencySupported"].(bool); !isBool {
				appendErr(rep, model.KindField, index, path+".extraCurrencySupported",
					"Feature 'SendTransaction' must have a boolean 'extraCurrencySupported'")
			}
		case model.FeatureSignData:
			counts[model.FeatureSignData]++
			types, isArr := entry["types"].([]any)
			if !isArr || len(types) == 0 {
				appendErr(rep, model.KindField, index, path+".types",
					"Feature 'SignData' must have a non-empty 'types' array")
				continue
			}
			for _, tv := range types {
				s, isStr := tv.(string)
				if !isStr || !model.SignDataTypes[s] {
					appendErr(rep, model.KindField, index, path+".types",
						fmt.Sprintf("Invalid SignData type: %v", tv))
				}
			}
		default:
			appendErr(rep, model.KindField, index, path, fmt.Sprintf("Invalid feature name: %v", rawName))
		}
	}

	for _, n := range []model.FeatureName{model.FeatureSendTransaction, model.FeatureSignData} {
		if counts[n] > 1 {
			appendErr(rep, model.KindDuplicate, index, fieldPath(index, "features"),
				fmt.Sprintf("Duplicate feature: %s", n))
		}
	}
	// 可识别变体里必须出现恰好一个 SendTransaction；未知变体不计入。
	if counts[model.FeatureSendTransaction] == 0 {
		appendErr(rep, model.KindMissingField, index, fieldPath(index, "features"),
			"Missing required feature: SendTransaction")
	}
}

// positiveInt 判断取值是否为正整数。
// 加载器以 json.Number 保留数字字面量，因此 3.0 这类小数会被拒绝；
// 同时接受 Go 整数（便于内部构造）。
func positiveInt(v any) bool {
	switch n := v.(type) {
	case json.Number:
		i, err := n.Int64()
		return err == nil && i > 0
	case int:
		return n > 0
	case int64:
		return n > 0
	}
	return false
}

// validURL 要求绝对 URL：scheme 与 host 同时存在。
func validURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && u.Scheme != "" && u.Host != ""
}

func recordPath(index int) string {
	return fmt.Sprintf("records[%d]", index)
}

func fieldPath(index int, field string) string {
	return fmt.Sprintf("records[%d].%s", index, field)
}

func elemPath(index int, field string, i int) string {
	return fmt.Sprintf("records[%d].%s[%d]", index, field, i)
}

func appendErr(rep *model.Report, kind model.DiagnosticKind, index int, entity, msg string) {
	rep.Append(model.Diagnostic{
		Severity:    model.SeverityError,
		Kind:        kind,
		Stage:       model.StageRecord,
		RecordIndex: index,
		Entity:      entity,
		Message:     msg,
	})
}
