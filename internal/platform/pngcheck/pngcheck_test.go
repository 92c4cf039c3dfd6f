package pngcheck

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func pngHeader(width, height uint32) []byte {
	b := make([]byte, 0, 24)
	b = append(b, Signature...)
	b = append(b, 0, 0, 0, 13) // IHDR 块长度固定 13
	b = append(b, []byte("IHDR")...)
	b = binary.BigEndian.AppendUint32(b, width)
	b = binary.BigEndian.AppendUint32(b, height)
	return b
}

func TestParseHeader(t *testing.T) {
	info, err := ParseHeader(pngHeader(288, 288))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if info.Width != 288 || info.Height != 288 {
		t.Fatalf("dims=%dx%d, want 288x288", info.Width, info.Height)
	}

	info, err = ParseHeader(pngHeader(288, 144))
	if err != nil {
		t.Fatalf("ParseHeader: %v", err)
	}
	if info.Height != 144 {
		t.Fatalf("height=%d, want 144", info.Height)
	}
}

func TestParseHeaderNotPNG(t *testing.T) {
	for _, b := range [][]byte{
		nil,
		[]byte("GIF89a"),
		[]byte{0x89, 'P', 'N', 'G', 0, 0, 0, 0},
		Signature[:7],
	} {
		if _, err := ParseHeader(b); !errors.Is(err, ErrNotPNG) {
			t.Fatalf("ParseHeader(%v) err=%v, want ErrNotPNG", b, err)
		}
	}
}

func TestParseHeaderBadIHDR(t *testing.T) {
	b := append(append([]byte{}, Signature...), 0, 0, 0, 13)
	b = append(b, []byte("IDAT")...)
	b = append(b, make([]byte, 8)...)
	if _, err := ParseHeader(b); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("err=%v, want ErrBadHeader", err)
	}

	// 魔数正确但在 IHDR 尺寸前被截断。
	trunc := pngHeader(288, 288)[:20]
	if _, err := ParseHeader(trunc); !errors.Is(err, ErrBadHeader) {
		t.Fatalf("truncated err=%v, want ErrBadHeader", err)
	}
}

func TestReadHeader(t *testing.T) {
	dir := t.TempDir()

	// 前缀之后的内容不影响解析，也不会被整读。
	path := filepath.Join(dir, "icon.png")
	data := append(pngHeader(288, 288), make([]byte, 4096)...)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := ReadHeader(path)
	if err != nil {
		t.Fatalf("ReadHeader: %v", err)
	}
	if info.Width != 288 || info.Height != 288 {
		t.Fatalf("dims=%dx%d, want 288x288", info.Width, info.Height)
	}

	// 恰好 24 字节（无像素数据）的文件也要能解析。
	short := filepath.Join(dir, "short.png")
	if err := os.WriteFile(short, pngHeader(64, 32), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err = ReadHeader(short)
	if err != nil {
		t.Fatalf("ReadHeader short: %v", err)
	}
	if info.Width != 64 || info.Height != 32 {
		t.Fatalf("dims=%dx%d, want 64x32", info.Width, info.Height)
	}

	empty := filepath.Join(dir, "empty.png")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadHeader(empty); !errors.Is(err, ErrNotPNG) {
		t.Fatalf("empty err=%v, want ErrNotPNG", err)
	}

	if _, err := ReadHeader(filepath.Join(dir, "absent.png")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
