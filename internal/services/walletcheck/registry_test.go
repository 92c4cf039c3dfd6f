package walletcheck

import (
	"fmt"
	"strings"
	"testing"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
)

func validRecordWith(appName, image string) string {
	return fmt.Sprintf(`{
		"app_name": %q, "name": "Wallet",
		"image": %q, "about_url": "https://example.com",
		"bridge": [{"type": "js", "key": "k"}],
		"platforms": ["ios"],
		"features": [{"name": "SendTransaction", "maxMessages": 4, "extraCurrencySupported": false}]
	}`, appName, image)
}

func TestCheckRegistryClean(t *testing.T) {
	doc := "[" + strings.Join([]string{
		validRecordWith("alpha", "https://a.example/alpha.png"),
		validRecordWith("beta", "https://b.example/beta.png"),
	}, ",") + "]"

	rep := &model.Report{}
	CheckRegistry(rep, mustRecords(t, doc))
	if rep.HasErrors() || len(rep.Diagnostics) != 0 {
		t.Fatalf("clean registry reported: %+v", rep.Diagnostics)
	}
}

func TestCheckRegistryDuplicateAppName(t *testing.T) {
	doc := "[" + strings.Join([]string{
		validRecordWith("foo", "https://a.example/1.png"),
		validRecordWith("bar", "https://a.example/2.png"),
		validRecordWith("foo", "https://a.example/3.png"),
	}, ",") + "]"

	rep := &model.Report{}
	CheckRegistry(rep, mustRecords(t, doc))

	if got := countMessages(rep, "Duplicate app_name: foo"); got != 1 {
		t.Fatalf("duplicate app_name diagnostics=%d, want 1", got)
	}
	var dup model.Diagnostic
	for _, d := range rep.Diagnostics {
		if d.Kind == model.KindDuplicate && d.Stage == model.StageRegistry {
			dup = d
			break
		}
	}
	if dup.Entity != "app_name:foo" {
		t.Fatalf("entity=%q, want app_name:foo", dup.Entity)
	}
	if !strings.Contains(dup.Message, "(records 0, 2)") {
		t.Fatalf("message=%q, want record indexes 0, 2", dup.Message)
	}
	if dup.RecordIndex != -1 {
		t.Fatalf("record_index=%d, want -1", dup.RecordIndex)
	}
}

func TestCheckRegistryDuplicateImage(t *testing.T) {
	shared := "https://cdn.example/icon.png"
	doc := "[" + strings.Join([]string{
		validRecordWith("one", shared),
		validRecordWith("two", shared),
	}, ",") + "]"

	rep := &model.Report{}
	CheckRegistry(rep, mustRecords(t, doc))
	if got := countMessages(rep, "Duplicate image: "+shared); got != 1 {
		t.Fatalf("duplicate image diagnostics=%d, want 1", got)
	}
}

func TestCheckRegistryOrdering(t *testing.T) {
	// 记录级诊断在前（按记录序），集合级在后（按重复值字典序）。
	doc := "[" + strings.Join([]string{
		validRecordWith("zeta", "https://a.example/z.png"),
		`{"app_name": "zeta"}`,
		validRecordWith("alpha", "https://a.example/a.png"),
		validRecordWith("alpha", "https://a.example/a2.png"),
	}, ",") + "]"

	rep := &model.Report{}
	CheckRegistry(rep, mustRecords(t, doc))

	firstRegistry := -1
	for i, d := range rep.Diagnostics {
		if d.Stage == model.StageRegistry {
			firstRegistry = i
			break
		}
	}
	if firstRegistry < 0 {
		t.Fatalf("no registry-stage diagnostics")
	}
	for _, d := range rep.Diagnostics[:firstRegistry] {
		if d.Stage != model.StageRecord {
			t.Fatalf("record diagnostics must precede registry diagnostics")
		}
	}

	var dupValues []string
	for _, d := range rep.Diagnostics[firstRegistry:] {
		if d.Kind == model.KindDuplicate {
			dupValues = append(dupValues, d.Entity)
		}
	}
	if len(dupValues) != 2 || dupValues[0] != "app_name:alpha" || dupValues[1] != "app_name:zeta" {
		t.Fatalf("registry duplicates=%v, want [app_name:alpha app_name:zeta]", dupValues)
	}
}

func TestCheckRegistryMalformedRecordDegrades(t *testing.T) {
	// 非对象记录只产生结构诊断，唯一性检查照常覆盖其余记录。
	doc := "[" + strings.Join([]string{
		validRecordWith("foo", "https://a.example/1.png"),
		`"garbage"`,
		validRecordWith("foo", "https://a.example/2.png"),
	}, ",") + "]"

	rep := &model.Report{}
	CheckRegistry(rep, mustRecords(t, doc))

	if got := countMessages(rep, "Record must be a JSON object"); got != 1 {
		t.Fatalf("structural diagnostics=%d, want 1", got)
	}
	if got := countMessages(rep, "Duplicate app_name: foo"); got != 1 {
		t.Fatalf("duplicate diagnostics=%d, want 1", got)
	}
	if !rep.HasErrors() {
		t.Fatalf("expected errors")
	}
}
