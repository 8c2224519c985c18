package importparse

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// DecodeText 把仪器导出的原始字节解码为字符串。
// 采集软件在不同机器上会产出 UTF-8、带 BOM 的 UTF-16 或 Windows 本地编码的文本，
// 这里按置信度从高到低逐个尝试，最后落到 Windows-1252（单字节映射，永不失败）。
func DecodeText(data []byte) string {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return string(bytes.TrimPrefix(data, bomUTF8))
	case bytes.HasPrefix(data, bomUTF16LE):
		return decodeUTF16(data, unicode.LittleEndian)
	case bytes.HasPrefix(data, bomUTF16BE):
		return decodeUTF16(data, unicode.BigEndian)
	}

	// NUL 是合法的 UTF-8 字节，所以先做奇偶检查再信 utf8.Valid：
	// 无 BOM 的 UTF-16 文本恰好是 NUL 间插的 ASCII，会被 utf8.Valid 放行。
	if utf8.Valid(data) && !bytes.ContainsRune(data, 0) {
		return string(data)
	}

	// 无 BOM 的 UTF-16：ASCII 为主的文本中 NUL 字节会集中在固定奇偶位上。
	if len(data) >= 2 && len(data)%2 == 0 {
		zeroOdd, zeroEven := 0, 0
		for i, b := range data {
			if b != 0 {
				continue
			}
			if i%2 == 1 {
				zeroOdd++
			} else {
				zeroEven++
			}
		}
		half := len(data) / 2
		if zeroOdd > half/2 && zeroEven == 0 {
			return decodeUTF16(data, unicode.LittleEndian)
		}
		if zeroEven > half/2 && zeroOdd == 0 {
			return decodeUTF16(data, unicode.BigEndian)
		}
	}

	out, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		// Windows-1252 对任意字节都有映射，到不了这里；保底原样返回。
		return string(data)
	}
	return string(out)
}

func decodeUTF16(data []byte, endian unicode.Endianness) string {
	dec := unicode.UTF16(endian, unicode.IgnoreBOM).NewDecoder()
	if bytes.HasPrefix(data, bomUTF16LE) || bytes.HasPrefix(data, bomUTF16BE) {
		dec = unicode.UTF16(endian, unicode.ExpectBOM).NewDecoder()
	}
	out, err := dec.Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(out)
}
