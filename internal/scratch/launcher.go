package scratch

import (
	"os/exec"
	"runtime"
	"sync"
)

// OSLauncher starts the desktop's default handler and does not wait for it.
type OSLauncher struct{}

func (OSLauncher) Launch(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("cmd", "/c", "start", "", path)
	case "darwin":
		cmd = exec.Command("open", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}
	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// RecordingLauncher remembers what it was asked to open.
type RecordingLauncher struct {
	mu       sync.Mutex
	launched []string
	Err      error
}

func (r *RecordingLauncher) Launch(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.launched = append(r.launched, path)
	return nil
}

func (r *RecordingLauncher) Launched() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.launched...)
}
