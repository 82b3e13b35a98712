// Package logging writes the gateway's HTTP access log as rotated JSON lines.
// Request bodies are never logged since they carry user prompts.
package logging

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"jaterm_gateway/internal/utils"
)

// AccessEntry is one line of the access log
type AccessEntry struct {
	Timestamp  time.Time `json:"timestamp"`
	Method     string    `json:"method"`
	Route      string    `json:"route"`
	Path       string    `json:"path"`
	Status     int       `json:"status"`
	DurationMs int64     `json:"duration_ms"`
	UserID     string    `json:"user_id,omitempty"`
	RemoteAddr string    `json:"remote_addr"`
}

// AccessLog implements asynchronous, buffered logging with rotation and periodic flush.
type AccessLog struct {
	fileTemplate  string // e.g. "/var/log/jaterm/access-%s.jsonl"
	maxSize       int64
	maxFiles      int
	flushInterval time.Duration

	mu          sync.Mutex
	currentFile string
	file        *os.File
	writer      *bufio.Writer
	currentSize int64

	entries chan AccessEntry
	done    chan struct{}
	wg      sync.WaitGroup
	closed  bool
	dropped int64

	logger *utils.Logger
}

// NewAccessLog opens the first file and starts the writer goroutine.
// bufferSize entries may be queued before Record starts dropping.
func NewAccessLog(fileTemplate string, maxSize int64, maxFiles, bufferSize int, flushInterval time.Duration) (*AccessLog, error) {
	l := &AccessLog{
		fileTemplate:  fileTemplate,
		maxSize:       maxSize,
		maxFiles:      maxFiles,
		flushInterval: flushInterval,
		entries:       make(chan AccessEntry, bufferSize),
		done:          make(chan struct{}),
		logger:        utils.NewLogger("access-log"),
	}

	if err := l.openFile(); err != nil {
		return nil, err
	}

	l.wg.Add(1)
	go l.run()
	return l, nil
}

// newFileName stamps the template with the current time
func (l *AccessLog) newFileName() string {
	return fmt.Sprintf(l.fileTemplate, time.Now().Format("20060102150405.000000000"))
}

func (l *AccessLog) openFile() error {
	l.currentFile = l.newFileName()
	if err := os.MkdirAll(filepath.Dir(l.currentFile), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(l.currentFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open access log: %w", err)
	}
	fi, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}
	l.currentSize = fi.Size()
	l.file = file
	l.writer = bufio.NewWriter(file)
	return nil
}

// rotateIfNeeded starts a new file when n more bytes would exceed maxSize.
// Caller holds mu.
func (l *AccessLog) rotateIfNeeded(n int) (bool, error) {
	if l.currentSize+int64(n) < l.maxSize {
		return false, nil
	}
	if err := l.writer.Flush(); err != nil {
		return false, err
	}
	if err := l.file.Close(); err != nil {
		return false, err
	}
	return true, l.openFile()
}

// cleanupOldFiles keeps at most maxFiles files, removing the oldest
func (l *AccessLog) cleanupOldFiles() error {
	matches, err := filepath.Glob(fmt.Sprintf(l.fileTemplate, "*"))
	if err != nil {
		return err
	}
	if len(matches) <= l.maxFiles {
		return nil
	}

	// The timestamp in the name sorts chronologically.
	sort.Strings(matches)
	for _, name := range matches[:len(matches)-l.maxFiles] {
		if name == l.currentFile {
			continue
		}
		_ = os.Remove(name)
	}
	return nil
}

func (l *AccessLog) run() {
	defer l.wg.Done()
	ticker := time.NewTicker(l.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case entry := <-l.entries:
			l.write(entry)
		case <-ticker.C:
			l.mu.Lock()
			_ = l.writer.Flush()
			l.mu.Unlock()
		case <-l.done:
			for {
				select {
				case entry := <-l.entries:
					l.write(entry)
				default:
					l.mu.Lock()
					_ = l.writer.Flush()
					_ = l.file.Close()
					l.mu.Unlock()
					return
				}
			}
		}
	}
}

func (l *AccessLog) write(entry AccessEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	data = append(data, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	rotated, err := l.rotateIfNeeded(len(data))
	if err != nil {
		l.logger.Error("Failed to rotate access log", "file", l.currentFile, "error", err)
		return
	}
	n, _ := l.writer.Write(data)
	l.currentSize += int64(n)

	if rotated && l.maxFiles > 0 {
		if err := l.cleanupOldFiles(); err != nil {
			l.logger.Warn("Failed to remove old access logs", "error", err)
		}
	}
}

// Record queues entry. When the buffer is full the entry is dropped.
func (l *AccessLog) Record(entry AccessEntry) {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return
	}

	select {
	case l.entries <- entry:
	default:
		l.mu.Lock()
		l.dropped++
		l.mu.Unlock()
	}
}

// Dropped returns how many entries were discarded because the buffer was full
func (l *AccessLog) Dropped() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dropped
}

// CurrentFile returns the file being written
func (l *AccessLog) CurrentFile() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentFile
}

// Shutdown flushes queued entries and closes the file. Safe to call twice.
func (l *AccessLog) Shutdown() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	close(l.done)
	l.wg.Wait()
}
