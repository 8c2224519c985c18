package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"survey-manager/internal/app"
	"survey-manager/internal/services/webapp"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// uiWindow 是桌面壳窗口的最小抽象：
// macOS + CGO 下由内嵌 WebView 实现，其余平台回落到系统浏览器。
type uiWindow interface {
	Run()
	Terminate()
	Destroy()
}

// 这个“desktop”入口的目标是降低现场使用门槛：
// - 一键启动内置 Web UI/API（本地端口监听）
// - macOS 下可用内嵌窗口，其余平台自动打开浏览器到工作台页面
func run(ctx context.Context, args []string) error {
	cfg := app.DefaultConfig()

	fs := flag.NewFlagSet("survey-desktop", flag.ContinueOnError)
	listen := fs.String("listen", "127.0.0.1:8787", "listen address")
	dbPath := fs.String("db", cfg.DBPath, "sqlite database path")
	checklistPath := fs.String("checklist", cfg.ChecklistPath, "checklist template file")
	thresholdPath := fs.String("thresholds", cfg.ThresholdPath, "quality thresholds file")
	useWebview := fs.Bool("webview", true, "use embedded webview window when available (macOS + CGO)")
	noOpen := fs.Bool("no-open", false, "do not auto-open browser")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Ctrl+C 优雅退出：给 http.Server.Shutdown 一个机会释放端口、刷完日志。
	sigCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- webapp.Run(sigCtx, webapp.Options{
			DBPath:        *dbPath,
			ChecklistPath: *checklistPath,
			ThresholdPath: *thresholdPath,
			ListenAddr:    *listen,
		})
	}()

	uiURL := "http://" + normalizeListenForBrowser(*listen)
	healthURL := uiURL + "/api/health"

	// 等服务起来再打开窗口/浏览器（减少“空白页/加载失败”的概率）
	if err := waitForHTTP(sigCtx, healthURL, 12*time.Second); err != nil {
		// 服务可能已经带错退出，优先把那个错误透出来。
		select {
		case serverErr := <-serverErrCh:
			if serverErr != nil {
				return serverErr
			}
		default:
		}
		return err
	}

	if *useWebview {
		if w, err := newWebViewWindow(uiURL, "Site Survey Manager"); err == nil {
			go func() {
				<-sigCtx.Done()
				w.Terminate()
			}()
			w.Run()
			w.Destroy()
			cancel()
			return <-serverErrCh
		}
	}

	if !*noOpen {
		_ = openBrowser(uiURL)
	}

	// 阻塞等待 server 退出（或报错）
	return <-serverErrCh
}

func normalizeListenForBrowser(listen string) string {
	// listen 常见形态：127.0.0.1:8787 / 0.0.0.0:8787 / :8787 / [::]:8787
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		// fallback：不做复杂解析，直接返回原始字符串
		return listen
	}
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

func waitForHTTP(ctx context.Context, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		resp, err := http.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
	return fmt.Errorf("timeout waiting for %s", url)
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		// cmd /c start "" "http://..."
		cmd = exec.Command("cmd", "/c", "start", "", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	// 不阻塞主流程：浏览器打开与否不影响服务运行。
	return cmd.Start()
}
