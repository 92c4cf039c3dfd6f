package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
	"github.com/ton-blockchain/wallets-list/internal/platform/hash"
)

// Loader 负责从磁盘读取钱包注册表文档。
type Loader struct {
	WalletsFile string
}

// LoadedRegistry 是加载后的注册表及其三种视图。
//
// RawRecords 是校验器使用的原始视图（数字保留为 json.Number，
// 便于区分整数与小数）；Records 是宽容的类型化视图，逐条解码、
// 解码失败的记录跳过，供代理改写之后的消费方使用；Raw 保留原始
// 字节用于留痕与直接对外服务。
type LoadedRegistry struct {
	Path       string
	Raw        []byte
	SHA256     string
	RawRecords []any
	Records    []model.WalletRecord
}

func NewLoader(walletsFile string) *Loader {
	return &Loader{WalletsFile: walletsFile}
}

// RecordCount 返回顶层数组长度。
func (r *LoadedRegistry) RecordCount() int {
	return len(r.RawRecords)
}

// Load 读取并解析注册表文件。
// 顶层不是 JSON 数组或文件不可读是整条流水线唯一的致命错误。
func (l *Loader) Load(ctx context.Context) (*LoadedRegistry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(l.WalletsFile)
	if err != nil {
		return nil, fmt.Errorf("read wallets file: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var rawRecords []any
	if err := dec.Decode(&rawRecords); err != nil {
		return nil, fmt.Errorf("parse wallets file: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("parse wallets file: trailing data after top-level array")
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, fmt.Errorf("parse wallets file: %w", err)
	}
	records := make([]model.WalletRecord, 0, len(elems))
	for _, e := range elems {
		var rec model.WalletRecord
		if err := json.Unmarshal(e, &rec); err != nil {
			// 类型化视图保持宽容：坏记录由校验器负责报告。
			continue
		}
		records = append(records, rec)
	}

	return &LoadedRegistry{
		Path:       l.WalletsFile,
		Raw:        raw,
		SHA256:     hash.Bytes(raw),
		RawRecords: rawRecords,
		Records:    records,
	}, nil
}
