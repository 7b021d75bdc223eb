// Package applock implements the single-holder, process-wide instance
// lock described in spec §5/§6: a file containing
// "pid\ntimestamp\nuser@host\nargv0", acquired with stale-lock takeover
// and released only by the owning process unless forced.
package applock

import (
	"fmt"
	"os"
	"os/user"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/halvard/crate/internal/util"
	"github.com/halvard/crate/internal/xerr"
)

const (
	staleAge   = 30 * time.Minute
	waitMax    = 5 * time.Minute
	pollEvery  = 2 * time.Second
	logEvery   = 10 * time.Second
)

// Lock represents a held instance lock, tied to a path on disk.
type Lock struct {
	path string
	pid  int
}

// Info is the parsed content of a lock file.
type Info struct {
	PID       int
	Timestamp time.Time
	UserHost  string
	Argv0     string
}

func parse(data string) (Info, error) {
	lines := strings.Split(strings.TrimRight(data, "\n"), "\n")
	if len(lines) < 2 {
		return Info{}, fmt.Errorf("malformed lock file")
	}
	pid, err := strconv.Atoi(strings.TrimSpace(lines[0]))
	if err != nil {
		return Info{}, fmt.Errorf("malformed lock pid: %w", err)
	}
	tsUnix, err := strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 64)
	if err != nil {
		return Info{}, fmt.Errorf("malformed lock timestamp: %w", err)
	}
	info := Info{PID: pid, Timestamp: time.Unix(tsUnix, 0)}
	if len(lines) > 2 {
		info.UserHost = lines[2]
	}
	if len(lines) > 3 {
		info.Argv0 = lines[3]
	}
	return info, nil
}

func (i Info) render() string {
	return fmt.Sprintf("%d\n%d\n%s\n%s\n", i.PID, i.Timestamp.Unix(), i.UserHost, i.Argv0)
}

func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func currentUserHost() string {
	host, _ := os.Hostname()
	if u, err := user.Current(); err == nil {
		return u.Username + "@" + host
	}
	return "unknown@" + host
}

// Acquire waits (per the spec's poll/log cadence) up to waitMax for any
// existing, live, non-stale lock to be released, then writes a fresh lock
// file. It returns xerr.LockHeld if the wait times out on a live holder.
func Acquire(path string, log *util.Logger) (*Lock, error) {
	deadline := time.Now().Add(waitMax)
	lastLog := time.Time{}

	for {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read lock file: %w", err)
		}

		held := err == nil
		stale := false
		var info Info
		if held {
			info, err = parse(string(data))
			if err != nil {
				stale = true
			} else if !isAlive(info.PID) || time.Since(info.Timestamp) >= staleAge {
				stale = true
			}
		}

		if !held || stale {
			if stale && log != nil {
				log.Warn("-", "removing stale instance lock held by pid %d (age %s)", info.PID, time.Since(info.Timestamp))
			}
			if stale {
				os.Remove(path)
			}
			if err := writeLock(path); err == nil {
				return &Lock{path: path, pid: os.Getpid()}, nil
			} else if !os.IsExist(err) {
				return nil, fmt.Errorf("write lock file: %w", err)
			}
			// Lost the race to another process; loop and re-read.
			continue
		}

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("instance lock held by pid %d: %w", info.PID, xerr.LockHeld)
		}

		if log != nil && time.Since(lastLog) >= logEvery {
			log.Info("-", "waiting for instance lock held by pid %d (%s)", info.PID, info.UserHost)
			lastLog = time.Now()
		}
		time.Sleep(pollEvery)
	}
}

func writeLock(path string) error {
	info := Info{
		PID:       os.Getpid(),
		Timestamp: time.Now(),
		UserHost:  currentUserHost(),
		Argv0:     argv0(),
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(info.render())
	return err
}

func argv0() string {
	if len(os.Args) > 0 {
		return os.Args[0]
	}
	return "crate"
}

// Release deletes the lock file only if it is still owned by this
// process's pid, unless force is true.
func (l *Lock) Release(force bool) error {
	if l == nil {
		return nil
	}
	if !force {
		data, err := os.ReadFile(l.path)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		info, err := parse(string(data))
		if err != nil || info.PID != l.pid {
			return nil // not ours anymore; do not remove.
		}
	}
	return os.Remove(l.path)
}

// ForceUnlock unconditionally removes the lock file, for the
// `force-unlock` CLI command.
func ForceUnlock(path string) error {
	err := os.Remove(path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Read returns the parsed contents of an existing lock file without
// acquiring it, for the `doctor` diagnostics.
func Read(path string) (Info, bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Info{}, false, nil
	}
	if err != nil {
		return Info{}, false, err
	}
	info, err := parse(string(data))
	if err != nil {
		return Info{}, false, err
	}
	return info, true, nil
}
