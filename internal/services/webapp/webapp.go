package webapp

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"survey-manager/internal/adapters/checklist"
	sqliteadapter "survey-manager/internal/adapters/store/sqlite"
	"survey-manager/internal/app"

	_ "modernc.org/sqlite"
)

// 注意：
// - go:embed 的路径必须相对当前包目录，且不能包含 ".."
// - 我们把前端 build 输出拷贝到 internal/services/webapp/ui_dist/，这样二进制即可离线分发（解压即用）。
// - ui_dist/ 至少要有一个文件（本仓库已放置占位 index.html），否则 go:embed 会因“无匹配文件”而编译失败。
//
//go:embed ui_dist
var uiFS embed.FS

// Options 定义 Web UI + API 服务启动参数。
// 目标：外业现场单机使用优先，好用优先（默认不做鉴权）。
type Options struct {
	DBPath        string
	ChecklistPath string
	ThresholdPath string

	ListenAddr string
}

// Run 启动内置 Web UI：
// - 提供勘测、检查单、测量会话、导入与附件接口
// - 提供质量分析与 PDF 报告生成接口
func Run(ctx context.Context, opts Options) error {
	defaults := app.DefaultConfig()
	if opts.DBPath == "" {
		opts.DBPath = defaults.DBPath
	}
	if opts.ChecklistPath == "" {
		opts.ChecklistPath = defaults.ChecklistPath
	}
	if opts.ThresholdPath == "" {
		opts.ThresholdPath = defaults.ThresholdPath
	}
	if opts.ListenAddr == "" {
		opts.ListenAddr = "127.0.0.1:8787"
	}

	if err := os.MkdirAll(filepath.Dir(opts.DBPath), 0o755); err != nil {
		return fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", opts.DBPath)
	if err != nil {
		return fmt.Errorf("open sqlite: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(1)
	// WAL + NORMAL：外业单机写入以吞吐优先；断电最多回退到最近一次 checkpoint。
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL`); err != nil {
		return fmt.Errorf("set journal_mode: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA synchronous = NORMAL`); err != nil {
		return fmt.Errorf("set synchronous: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000`); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		return fmt.Errorf("set foreign_keys: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping sqlite: %w", err)
	}

	migrator := sqliteadapter.NewMigrator(db)
	if err := migrator.Up(ctx); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	loader := checklist.NewLoader(opts.ChecklistPath, opts.ThresholdPath)
	loaded, err := loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load checklist bundles: %w", err)
	}

	sub, err := fs.Sub(uiFS, "ui_dist")
	if err != nil {
		return fmt.Errorf("sub ui fs: %w", err)
	}

	s := &Server{
		opts:    opts,
		db:      db,
		store:   sqliteadapter.NewStore(db),
		bundles: loaded,
		ui:      sub,
		jobs:    newJobManager(),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	httpServer := &http.Server{
		Addr:              opts.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	fmt.Printf("webapp listening: http://%s\n", opts.ListenAddr)
	err = httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
