package assetcheck

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ton-blockchain/wallets-list/internal/adapters/assets"
	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/pngcheck"
	"github.com/ton-blockchain/wallets-list/internal/platform/slug"
)

// Options 控制资产交叉引用检查。
type Options struct {
	AssetsDir string

	// EdgePixels 是要求的正方形图标边长（像素）。
	EdgePixels int

	// EnforceDimensions 为 false 时仍校验 PNG 格式，但跳过尺寸比对。
	EnforceDimensions bool

	// StrictOrphans 为 false 时未被引用的资产降级为 warning。
	StrictOrphans bool

	// SkipOrphans 为 true 时完全不扫描未引用资产。
	SkipOrphans bool
}

// slugOwner 记录一个派生文件名的来源记录。
type slugOwner struct {
	Index   int
	AppName string
}

// CrossReference 把注册表记录与资产目录互相核对，诊断追加到 rep。
//
// 诊断顺序：按记录序的逐条检查、按文件名字典序的标识冲突、
// 按文件名字典序的孤儿文件。每个资产文件的头部至多读取一次。
func CrossReference(ctx context.Context, rep *model.Report, records []any, opts Options) error {
	if opts.EdgePixels <= 0 {
		opts.EdgePixels = 288
	}
	scanner := assets.NewScanner(opts.AssetsDir)

	expected := make(map[string]bool)
	owners := make(map[string][]slugOwner)
	headers := make(map[string]headerResult)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		obj, ok := rec.(map[string]any)
		if !ok {
			continue
		}
		appName, ok := obj["app_name"].(string)
		if !ok || strings.TrimSpace(appName) == "" {
			continue
		}
		if _, ok := obj["image"]; !ok {
			// 没有 image 的记录不参与资产派生（结构问题由记录校验报告）。
			continue
		}

		name := slug.PNGName(appName)
		expected[name] = true
		owners[name] = append(owners[name], slugOwner{Index: i, AppName: appName})

		checkAssetFile(rep, scanner, headers, i, appName, name, opts)
	}

	reportSlugCollisions(rep, owners)

	if opts.SkipOrphans {
		return nil
	}
	files, err := scanner.ListPNGs(ctx)
	if err != nil {
		return err
	}
	orphanSeverity := model.SeverityError
	if !opts.StrictOrphans {
		orphanSeverity = model.SeverityWarning
	}
	for _, f := range files {
		if expected[f.Name] {
			continue
		}
		rep.Append(model.Diagnostic{
			Severity:    orphanSeverity,
			Kind:        model.KindReference,
			Stage:       model.StageAssets,
			RecordIndex: -1,
			Entity:      "assets/" + f.Name,
			Message:     fmt.Sprintf("Unused asset file: %s", f.Name),
		})
	}
	return nil
}

// headerResult 缓存单个文件的头部解析结果，保证每个文件至多读一次。
type headerResult struct {
	info model.Diagnostic // 零值表示无诊断
	ok   bool             // 文件头合法且（如启用）尺寸正确
}

func checkAssetFile(rep *model.Report, scanner *assets.Scanner, cache map[string]headerResult, index int, appName, name string, opts Options) {
	if !scanner.Exists(name) {
		rep.Append(model.Diagnostic{
			Severity:    model.SeverityError,
			Kind:        model.KindReference,
			Stage:       model.StageAssets,
			RecordIndex: index,
			Entity:      "assets/" + name,
			Message:     fmt.Sprintf("Missing asset file: %s (app_name: %s)", name, appName),
		})
		return
	}

	res, seen := cache[name]
	if !seen {
		res = inspectHeader(scanner.Path(name), name, opts)
		cache[name] = res
	}
	if res.ok {
		return
	}
	d := res.info
	d.RecordIndex = index
	rep.Append(d)
}

// inspectHeader 读取文件头并产出（最多一条）格式/尺寸诊断模板。
func inspectHeader(path, name string, opts Options) headerResult {
	info, err := pngcheck.ReadHeader(path)
	if err != nil {
		return headerResult{info: model.Diagnostic{
			Severity: model.SeverityError,
			Kind:     model.KindFormat,
			Stage:    model.StageAssets,
			Entity:   "assets/" + name,
			Message:  fmt.Sprintf("Invalid asset file: %s (%v)", name, err),
		}}
	}
	if opts.EnforceDimensions && (info.Width != opts.EdgePixels || info.Height != opts.EdgePixels) {
		return headerResult{info: model.Diagnostic{
			Severity: model.SeverityError,
			Kind:     model.KindFormat,
			Stage:    model.StageAssets,
			Entity:   "assets/" + name,
			Message: fmt.Sprintf("Wrong asset dimensions: %s (%d×%d, want %d×%d)",
				name, info.Width, info.Height, opts.EdgePixels, opts.EdgePixels),
		}}
	}
	return headerResult{ok: true}
}

// reportSlugCollisions 报告“不同 app_name 折叠到同一文件名”的冲突。
// 与文件缺失是两类问题：冲突时一个钱包的图标会静默顶替另一个的。
func reportSlugCollisions(rep *model.Report, owners map[string][]slugOwner) {
	names := make([]string, 0, len(owners))
	for name, list := range owners {
		distinct := make(map[string]bool, len(list))
		for _, o := range list {
			distinct[o.AppName] = true
		}
		if len(distinct) > 1 {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	for _, name := range names {
		list := owners[name]
		apps := make([]string, 0, len(list))
		idxs := make([]string, 0, len(list))
		seen := make(map[string]bool, len(list))
		for _, o := range list {
			if !seen[o.AppName] {
				seen[o.AppName] = true
				apps = append(apps, o.AppName)
			}
			idxs = append(idxs, fmt.Sprintf("%d", o.Index))
		}
		rep.Append(model.Diagnostic{
			Severity:    model.SeverityError,
			Kind:        model.KindDuplicate,
			Stage:       model.StageAssets,
			RecordIndex: -1,
			Entity:      "assets/" + name,
			Message: fmt.Sprintf("Slug collision: %s derived from distinct app_names %s (records %s)",
				name, strings.Join(apps, ", "), strings.Join(idxs, ", ")),
		})
	}
}
