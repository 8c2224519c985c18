package webapp

import (
	"fmt"
	"net/http"
	"strconv"
)

// serveBlob 把数据库里的附件内容作为附件下载返回。
func serveBlob(w http.ResponseWriter, filename string, mimeType string, blob []byte) {
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	if filename == "" {
		filename = "download.bin"
	}
	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	_, _ = w.Write(blob)
}
