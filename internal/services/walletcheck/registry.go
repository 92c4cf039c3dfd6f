package walletcheck

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
)

// CheckRegistry 对整个注册表执行逐条校验与集合级唯一性检查。
//
// 诊断顺序：先按记录序的单条诊断，再按重复值字典序的集合级诊断。
// 单条记录损坏不会中断运行，对应记录退化为部分诊断。
func CheckRegistry(rep *model.Report, records []any) {
	for i, rec := range records {
		CheckRecord(rep, rec, i)
	}
	checkUniqueField(rep, records, "app_name")
	checkUniqueField(rep, records, "image")
}

// checkUniqueField 报告在集合内出现多于一次的字段值。
// 每个重复值恰好产生一条诊断，并列出全部出现位置。
func checkUniqueField(rep *model.Report, records []any, field string) {
	byValue := make(map[string][]int)
	for i, rec := range records {
		obj, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		v, ok := obj[field].(string)
		if !ok {
			continue
		}
		byValue[v] = append(byValue[v], i)
	}

	dups := make([]string, 0, 4)
	for v, idxs := range byValue {
		if len(idxs) > 1 {
			dups = append(dups, v)
		}
	}
	sort.Strings(dups)

	for _, v := range dups {
		rep.Append(model.Diagnostic{
			Severity:    model.SeverityError,
			Kind:        model.KindDuplicate,
			Stage:       model.StageRegistry,
			RecordIndex: -1,
			Entity:      field + ":" + v,
			Message:     fmt.Sprintf("Duplicate %s: %s (records %s)", field, v, joinIndexes(byValue[v])),
		})
	}
}

func joinIndexes(idxs []int) string {
	parts := make([]string, 0, len(idxs))
	for _, i := range idxs {
		parts = append(parts, strconv.Itoa(i))
	}
	return strings.Join(parts, ", ")
}
