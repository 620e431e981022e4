package browser

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// xvfbReadyTimeout bounds the wait for the X server socket.
const xvfbReadyTimeout = 5 * time.Second

// xvfb is a virtual display for headful mode.
type xvfb struct {
	cmd     *exec.Cmd
	display string
	logger  *slog.Logger
}

// startXvfb launches Xvfb on display and waits until its socket accepts
// clients.
func startXvfb(display string, logger *slog.Logger) (*xvfb, error) {
	cmd := exec.Command("Xvfb", display, "-screen", "0", "1920x1080x24", "-ac", "-nolisten", "tcp")
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start xvfb: %w", err)
	}
	x := &xvfb{cmd: cmd, display: display, logger: logger}

	sock := socketPath(display)
	deadline := time.Now().Add(xvfbReadyTimeout)
	for {
		if _, err := os.Stat(sock); err == nil {
			break
		}
		if time.Now().After(deadline) {
			x.stop()
			return nil, fmt.Errorf("xvfb: %s not ready after %s", sock, xvfbReadyTimeout)
		}
		time.Sleep(50 * time.Millisecond)
	}

	logger.Info("browser: xvfb started", "display", display, "pid", cmd.Process.Pid)
	return x, nil
}

// stop kills the X server and reaps it.
func (x *xvfb) stop() {
	if x.cmd.Process != nil {
		x.cmd.Process.Kill()
		x.cmd.Wait()
	}
	x.logger.Info("browser: xvfb stopped", "display", x.display)
}

// socketPath maps a display such as ":99" or ":99.0" to its Unix socket.
func socketPath(display string) string {
	n := strings.TrimPrefix(display, ":")
	if i := strings.IndexByte(n, '.'); i >= 0 {
		n = n[:i]
	}
	return "/tmp/.X11-unix/X" + n
}
