package logfile

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDailyWriterCreatesDirectoryAndAppends(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w := NewDailyWriter(dir, time.UTC)
	w.now = func() time.Time { return time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC) }
	defer w.Close()

	for _, line := range []string{"first\n", "second\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "2024-03-09.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(data) != "first\nsecond\n" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestDailyWriterSwitchesFileOnDateChange(t *testing.T) {
	dir := t.TempDir()
	w := NewDailyWriter(dir, time.UTC)
	current := time.Date(2024, 3, 9, 23, 59, 0, 0, time.UTC)
	w.now = func() time.Time { return current }
	defer w.Close()

	if _, err := w.Write([]byte("a\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	current = current.Add(2 * time.Minute)
	if _, err := w.Write([]byte("b\n")); err != nil {
		t.Fatalf("write: %v", err)
	}

	for name, want := range map[string]string{"2024-03-09.log": "a\n", "2024-03-10.log": "b\n"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != want {
			t.Fatalf("%s = %q, expected %q", name, data, want)
		}
	}
}

func TestDailyWriterUsesLocationForDate(t *testing.T) {
	loc := time.FixedZone("BRT", -3*60*60)
	w := NewDailyWriter("logs", loc)
	w.now = func() time.Time { return time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC) }

	if got := w.Path(); got != filepath.Join("logs", "2024-03-09.log") {
		t.Fatalf("Path()=%s", got)
	}
}
