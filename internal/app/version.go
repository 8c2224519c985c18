package app

// 构建信息由 -ldflags 注入,缺省值用于本地 go run。
var (
	Version   = "dev"
	Commit    = "none"
	BuildTime = "unknown"
)
