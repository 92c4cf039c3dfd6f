package assetcheck

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ton-blockchain/wallets-list/internal/domain/model"
)

func pngBytes(width, height uint32) []byte {
	b := []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	b = append(b, 0, 0, 0, 13)
	b = append(b, 'I', 'H', 'D', 'R')
	b = binary.BigEndian.AppendUint32(b, width)
	b = binary.BigEndian.AppendUint32(b, height)
	b = append(b, 8, 6, 0, 0, 0)
	return b
}

func writeAsset(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func records(t *testing.T, raw string) []any {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var out []any
	if err := dec.Decode(&out); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	return out
}

func crossRef(t *testing.T, dir string, recs []any, opts Options) *model.Report {
	t.Helper()
	opts.AssetsDir = dir
	rep := &model.Report{}
	if err := CrossReference(context.Background(), rep, recs, opts); err != nil {
		t.Fatalf("CrossReference: %v", err)
	}
	return rep
}

func TestCrossReferenceClean(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "tonkeeper.png", pngBytes(288, 288))

	recs := records(t, `[{"app_name":"tonkeeper","image":"https://example.com/i.png"}]`)
	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	if len(rep.Diagnostics) != 0 {
		t.Fatalf("got %d diagnostics, want 0: %+v", len(rep.Diagnostics), rep.Diagnostics)
	}
}

func TestCrossReferenceMissingFile(t *testing.T) {
	dir := t.TempDir()
	recs := records(t, `[{"app_name":"tonkeeper","image":"https://example.com/i.png"}]`)
	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})

	if rep.Errors != 1 {
		t.Fatalf("got %d errors, want 1: %+v", rep.Errors, rep.Diagnostics)
	}
	d := rep.Diagnostics[0]
	if d.Kind != model.KindReference || d.Entity != "assets/tonkeeper.png" || d.RecordIndex != 0 {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	if !strings.Contains(d.Message, "Missing asset file") {
		t.Fatalf("message = %q", d.Message)
	}
}

func TestCrossReferenceNotPNG(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "wallet.png", []byte("GIF89a not a png at all......."))

	recs := records(t, `[{"app_name":"wallet","image":"https://example.com/i.png"}]`)
	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})

	if rep.Errors != 1 {
		t.Fatalf("got %d errors, want 1: %+v", rep.Errors, rep.Diagnostics)
	}
	d := rep.Diagnostics[0]
	if d.Kind != model.KindFormat || !strings.Contains(d.Message, "not a valid PNG file") {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
}

func TestCrossReferenceBadHeader(t *testing.T) {
	dir := t.TempDir()
	b := pngBytes(288, 288)
	copy(b[12:16], "IDAT")
	writeAsset(t, dir, "wallet.png", b)

	recs := records(t, `[{"app_name":"wallet","image":"https://example.com/i.png"}]`)
	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})

	if rep.Errors != 1 || !strings.Contains(rep.Diagnostics[0].Message, "invalid PNG header") {
		t.Fatalf("unexpected report: %+v", rep.Diagnostics)
	}
}

func TestCrossReferenceDimensions(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "wallet.png", pngBytes(160, 144))
	recs := records(t, `[{"app_name":"wallet","image":"https://example.com/i.png"}]`)

	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	if rep.Errors != 1 {
		t.Fatalf("got %d errors, want 1: %+v", rep.Errors, rep.Diagnostics)
	}
	msg := rep.Diagnostics[0].Message
	if !strings.Contains(msg, "160×144") || !strings.Contains(msg, "288×288") {
		t.Fatalf("message = %q", msg)
	}

	rep = crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: false, StrictOrphans: true})
	if len(rep.Diagnostics) != 0 {
		t.Fatalf("dimension check not skipped: %+v", rep.Diagnostics)
	}
}

func TestCrossReferenceOrphans(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "tonkeeper.png", pngBytes(288, 288))
	writeAsset(t, dir, "zombie.png", pngBytes(288, 288))
	writeAsset(t, dir, "abandoned.png", pngBytes(288, 288))
	writeAsset(t, dir, "notes.txt", []byte("ignored"))
	recs := records(t, `[{"app_name":"tonkeeper","image":"https://example.com/i.png"}]`)

	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	if rep.Errors != 2 || rep.Warnings != 0 {
		t.Fatalf("strict: errors=%d warnings=%d: %+v", rep.Errors, rep.Warnings, rep.Diagnostics)
	}
	if rep.Diagnostics[0].Entity != "assets/abandoned.png" || rep.Diagnostics[1].Entity != "assets/zombie.png" {
		t.Fatalf("orphans not in lexical order: %+v", rep.Diagnostics)
	}

	rep = crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: false})
	if rep.Errors != 0 || rep.Warnings != 2 {
		t.Fatalf("lenient: errors=%d warnings=%d", rep.Errors, rep.Warnings)
	}
}

func TestCrossReferenceSlugCollision(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "architec_ton.png", pngBytes(288, 288))
	recs := records(t, `[
		{"app_name":"Architec.ton","image":"https://example.com/a.png"},
		{"app_name":"architec ton","image":"https://example.com/b.png"}
	]`)

	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	if rep.Errors != 1 {
		t.Fatalf("got %d errors, want 1: %+v", rep.Errors, rep.Diagnostics)
	}
	d := rep.Diagnostics[0]
	if d.Kind != model.KindDuplicate || d.Entity != "assets/architec_ton.png" {
		t.Fatalf("unexpected diagnostic: %+v", d)
	}
	for _, want := range []string{"Architec.ton", "architec ton", "records 0, 1"} {
		if !strings.Contains(d.Message, want) {
			t.Fatalf("message %q missing %q", d.Message, want)
		}
	}
}

func TestCrossReferenceSameAppNameNoCollision(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "wallet.png", pngBytes(288, 288))
	recs := records(t, `[
		{"app_name":"wallet","image":"https://example.com/a.png"},
		{"app_name":"wallet","image":"https://example.com/b.png"}
	]`)

	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	for _, d := range rep.Diagnostics {
		if d.Kind == model.KindDuplicate {
			t.Fatalf("same app_name flagged as collision: %+v", d)
		}
	}
}

func TestCrossReferenceSkipsIncompleteRecords(t *testing.T) {
	dir := t.TempDir()
	writeAsset(t, dir, "ghost.png", pngBytes(288, 288))
	recs := records(t, `[
		{"app_name":"ghost"},
		{"image":"https://example.com/i.png"},
		"not an object",
		{"app_name":"   ","image":"https://example.com/i.png"}
	]`)

	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	if rep.Errors != 1 {
		t.Fatalf("got %d errors, want 1 orphan: %+v", rep.Errors, rep.Diagnostics)
	}
	if !strings.Contains(rep.Diagnostics[0].Message, "Unused asset file") {
		t.Fatalf("unexpected diagnostic: %+v", rep.Diagnostics[0])
	}
}

func TestCrossReferenceMissingAssetsDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "does-not-exist")
	recs := records(t, `[{"app_name":"wallet","image":"https://example.com/i.png"}]`)

	rep := crossRef(t, dir, recs, Options{EdgePixels: 288, EnforceDimensions: true, StrictOrphans: true})
	if rep.Errors != 1 {
		t.Fatalf("got %d errors, want 1 missing-file error: %+v", rep.Errors, rep.Diagnostics)
	}
	if !strings.Contains(rep.Diagnostics[0].Message, "Missing asset file") {
		t.Fatalf("unexpected diagnostic: %+v", rep.Diagnostics[0])
	}
}
