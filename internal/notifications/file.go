package notifications

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileChannel appends notifications to a dated log file under dir
type FileChannel struct {
	dir string
	mu  sync.Mutex
}

// NewFileChannel creates a file channel writing to dir
func NewFileChannel(dir string) *FileChannel {
	return &FileChannel{dir: dir}
}

func (f *FileChannel) Name() string { return "file" }

// Send appends one line to alerts_YYYYMMDD.log
func (f *FileChannel) Send(ctx context.Context, n Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create log dir: %w", err)
	}

	ts := n.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	path := filepath.Join(f.dir, fmt.Sprintf("alerts_%s.log", ts.Format("20060102")))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open alert log: %w", err)
	}
	defer file.Close()

	line := fmt.Sprintf("[%s] %s %s: %s\n",
		ts.Format(time.RFC3339), n.Severity.icon(), n.Title, n.Message)
	if _, err := file.WriteString(line); err != nil {
		return fmt.Errorf("failed to write alert log: %w", err)
	}
	return nil
}
