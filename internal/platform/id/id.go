// Package id 提供进程内使用的轻量字符串 ID。
// 数据行的主键走 SQLite 自增，这里只服务不落库的对象（如后台任务）。
package id

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// New 返回 "prefix_毫秒时间戳_随机后缀" 形式的 ID。
// 时间戳前置让日志里的任务按创建顺序可读，随机后缀保证同毫秒不撞。
func New(prefix string) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}
