package pngcheck

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
)

// Signature 是 PNG 文件固定的 8 字节魔数。
var Signature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

// headerLen 是判定格式与读取宽高所需的最大字节数：
// 8（魔数）+ 4（块长度）+ 4（IHDR 标记）+ 4（宽）+ 4（高），
// 上限 26 字节，绝不解码像素数据。
const headerLen = 26

var (
	// ErrNotPNG 表示文件开头不是 PNG 魔数。
	ErrNotPNG = errors.New("not a valid PNG file")
	// ErrBadHeader 表示魔数之后不是完整的 IHDR 块头。
	ErrBadHeader = errors.New("invalid PNG header")
)

// Info 是从 IHDR 块头解析出的图像尺寸。
type Info struct {
	Width  int
	Height int
}

// HasSignature 判断字节串是否以 PNG 魔数开头。
func HasSignature(b []byte) bool {
	return len(b) >= len(Signature) && bytes.Equal(b[:len(Signature)], Signature)
}

// ParseHeader 校验 PNG 头部并解析宽高。
// 输入只需要文件前缀；宽高为大端 32 位无符号整数。
func ParseHeader(b []byte) (Info, error) {
	if !HasSignature(b) {
		return Info{}, ErrNotPNG
	}
	// 魔数后依次为 4 字节块长度、4 字节块类型；首块必须是 IHDR。
	if len(b) < 16 || !bytes.Equal(b[12:16], []byte("IHDR")) {
		return Info{}, ErrBadHeader
	}
	if len(b) < 24 {
		return Info{}, ErrBadHeader
	}
	return Info{
		Width:  int(binary.BigEndian.Uint32(b[16:20])),
		Height: int(binary.BigEndian.Uint32(b[20:24])),
	}, nil
}

// ReadHeader 从磁盘读取文件前缀并解析 PNG 头部。
// 单文件最多读取 26 字节。
func ReadHeader(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	buf := make([]byte, headerLen)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Info{}, err
	}
	return ParseHeader(buf[:n])
}
