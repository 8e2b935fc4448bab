// Package logfile appends log lines to one file per calendar day.
package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const dateLayout = "2006-01-02"

// DailyWriter is an io.Writer over <dir>/<YYYY-MM-DD>.log. The file is
// created (with its directory) on first write and switched when the date in
// loc changes; existing files are only ever appended to.
type DailyWriter struct {
	dir string
	loc *time.Location
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

func NewDailyWriter(dir string, loc *time.Location) *DailyWriter {
	if loc == nil {
		loc = time.UTC
	}
	return &DailyWriter{dir: dir, loc: loc, now: time.Now}
}

// Path returns the file the next write will land in.
func (w *DailyWriter) Path() string {
	return filepath.Join(w.dir, w.now().In(w.loc).Format(dateLayout)+".log")
}

func (w *DailyWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	day := w.now().In(w.loc).Format(dateLayout)
	if w.file == nil || day != w.day {
		if err := w.open(day); err != nil {
			return 0, err
		}
	}
	return w.file.Write(p)
}

func (w *DailyWriter) open(day string) error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(w.dir, day+".log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	w.file = f
	w.day = day
	return nil
}

func (w *DailyWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
