package runtimehost

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// panicLogFile mirrors the teacher's app/paniclogger: panics inside
// user-code callouts always get a side-channel log file in addition to
// whatever the UnraisableHook does, so a collection that silently
// swallowed a panic (per spec §7's "never propagate") still leaves
// forensic evidence on disk.
const panicLogFile = "gc-panic.log"

const maxPanicLogSize = 50 * 1024 * 1024 // 50MB, matches the teacher's rotation threshold

var (
	panicFile     *os.File
	panicFileLock sync.Mutex
	panicLogDir   string
	panicInitOnce sync.Once
	panicInitErr  error
)

// InitPanicLog initializes the panic log file under dir/logs. Safe to
// call multiple times; only the first call takes effect until Reset.
func InitPanicLog(dir string) error {
	panicInitOnce.Do(func() {
		if dir == "" {
			dir = os.TempDir()
		}
		panicLogDir = filepath.Join(dir, "logs")
		if err := os.MkdirAll(panicLogDir, 0755); err != nil {
			panicInitErr = fmt.Errorf("create gc panic log dir: %w", err)
			return
		}
		f, err := os.OpenFile(filepath.Join(panicLogDir, panicLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			panicInitErr = fmt.Errorf("open gc panic log: %w", err)
			return
		}
		panicFile = f
	})
	return panicInitErr
}

// LogPanic appends a panic record to the panic log, falling back to
// stderr if the log was never initialized.
func LogPanic(context string, recovered any, stack string) {
	panicFileLock.Lock()
	defer panicFileLock.Unlock()

	if panicFile == nil {
		fmt.Fprintf(os.Stderr, "[gc-panic] context=%s error=%v\n%s\n", context, recovered, stack)
		return
	}

	if err := rotateIfNeeded(); err != nil {
		fmt.Fprintf(os.Stderr, "gc panic log rotation failed: %v\n", err)
	}

	entry := fmt.Sprintf(
		"\n----------------------------------------------------------------\n"+
			"GC CALLOUT PANIC\ntimestamp: %s\ncontext:   %s\nerror:     %v\nstack:\n%s\n",
		time.Now().UTC().Format(time.RFC3339Nano), context, recovered, stack,
	)
	if _, err := panicFile.WriteString(entry); err != nil {
		fmt.Fprintf(os.Stderr, "gc panic log write failed: %v\n", err)
		return
	}
	_ = panicFile.Sync()
}

func rotateIfNeeded() error {
	if panicFile == nil {
		return nil
	}
	stat, err := panicFile.Stat()
	if err != nil {
		return err
	}
	if stat.Size() < maxPanicLogSize {
		return nil
	}
	_ = panicFile.Close()
	path := filepath.Join(panicLogDir, panicLogFile)
	_ = os.Remove(path + ".old")
	if err := os.Rename(path, path+".old"); err != nil {
		return err
	}
	panicFile, err = os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	return err
}

// ClosePanicLog closes the panic log file, if open.
func ClosePanicLog() error {
	panicFileLock.Lock()
	defer panicFileLock.Unlock()
	if panicFile == nil {
		return nil
	}
	err := panicFile.Close()
	panicFile = nil
	return err
}

// ResetPanicLog resets all panic-log state. Test-only.
func ResetPanicLog() {
	panicFileLock.Lock()
	defer panicFileLock.Unlock()
	if panicFile != nil {
		_ = panicFile.Close()
	}
	panicFile = nil
	panicInitOnce = sync.Once{}
	panicInitErr = nil
}
