// Package browserproc launches the two child processes a ChromeBrowser
// instance container wraps: headless Chrome itself, and the automation
// server (tzafonwright) that drives it over Chrome's DevTools protocol.
// Grounded in rust-instance-container/src/browser/chrome.rs's start_chrome
// and tzafonwright.rs's start_tzafonwright.
package browserproc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/tzafon/waypoint/internal/logging"
	"go.uber.org/zap"
)

var chromeArgs = []string{
	"--headless",
	"--no-sandbox",
	"--disable-gpu",
	"--remote-debugging-port=0",
	"--remote-debugging-address=127.0.0.1",
	"--disable-background-networking",
	"--disable-background-timer-throttling",
	"--disable-backgrounding-occluded-windows",
	"--disable-breakpad",
	"--disable-component-extensions-with-background-pages",
	"--disable-domain-reliability",
	"--disable-extensions",
	"--disable-features=TranslateUI",
	"--disable-hang-monitor",
	"--disable-ipc-flooding-protection",
	"--disable-popup-blocking",
	"--disable-dev-shm-usage",
	"--disable-sync",
	"--mute-audio",
	"--no-first-run",
	"--disable-prompt-on-repost",
	"--disable-default-apps",
	"--use-gl=swiftshader",
	"--window-size=1280,720",
	"--verbose",
	"--log-level=DEBUG",
}

// StartChrome launches chromeBinaryPath headless and waits for its DevTools
// websocket URL to appear on stderr ("DevTools listening on ..."). The
// process is killed when ctx is cancelled.
func StartChrome(ctx context.Context, chromeBinaryPath string) (string, error) {
	cmd := exec.CommandContext(ctx, chromeBinaryPath, chromeArgs...)
	cmd.Cancel = func() error { return cmd.Process.Kill() }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", fmt.Errorf("browserproc: chrome stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return "", fmt.Errorf("browserproc: chrome stderr pipe: %w", err)
	}

	logging.Info("browserproc: starting chrome", zap.String("binary", chromeBinaryPath))
	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("browserproc: start chrome: %w", err)
	}

	go func() {
		err := cmd.Wait()
		logging.Error("browserproc: chrome exited", zap.Error(err))
	}()
	go monitorPipe(stdout, "chrome stdout")

	wsLine := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(stderr)
		for scanner.Scan() {
			line := scanner.Text()
			logging.Debug("browserproc: chrome stderr", zap.String("line", line))
			if strings.Contains(line, "DevTools listening on") {
				select {
				case wsLine <- line:
				default:
				}
			}
		}
	}()

	select {
	case line := <-wsLine:
		return parseWSURL(line)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func parseWSURL(line string) (string, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return "", fmt.Errorf("browserproc: could not parse devtools url from %q", line)
	}
	return fields[len(fields)-1], nil
}

// StartTzafonwright launches the tzafonwright automation server against
// cdpURL on the given port, from tzafonwrightDir. The process is killed
// when ctx is cancelled.
func StartTzafonwright(ctx context.Context, tzafonwrightDir, cdpURL string, port int) error {
	cmd := exec.CommandContext(ctx, "uv", "run", "src/tzafonwright/server.py",
		"--port", fmt.Sprintf("%d", port), "--cdp-url", cdpURL)
	cmd.Dir = tzafonwrightDir
	cmd.Cancel = func() error { return cmd.Process.Kill() }

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("browserproc: tzafonwright stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("browserproc: tzafonwright stderr pipe: %w", err)
	}

	logging.Info("browserproc: starting tzafonwright", zap.String("dir", tzafonwrightDir), zap.Int("port", port))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("browserproc: start tzafonwright: %w", err)
	}

	go func() {
		err := cmd.Wait()
		logging.Error("browserproc: tzafonwright exited", zap.Error(err))
	}()
	go monitorPipe(stdout, "tzafonwright stdout")
	go monitorPipe(stderr, "tzafonwright stderr")

	return nil
}

func monitorPipe(r io.Reader, prefix string) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		logging.Debug(prefix, zap.String("line", scanner.Text()))
	}
}
