//go:build !darwin || !cgo

package main

import "fmt"

// 非 macOS（或未启用 CGO）平台没有内嵌窗口实现，回落到系统浏览器。
func newWebViewWindow(url, title string) (uiWindow, error) {
	return nil, fmt.Errorf("embedded webview not supported on this platform")
}
