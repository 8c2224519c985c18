package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
)

// Bytes 计算内存中内容的 SHA-256 十六进制摘要。
// 附件入库前由摄入层调用，哈希只作核对线索，存储层不做校验。
func Bytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// File 读取文件并计算 SHA-256，同时返回文件大小。
// 用于 CLI 导入本地文件时生成完整性元数据。
func File(path string) (sum string, size int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
