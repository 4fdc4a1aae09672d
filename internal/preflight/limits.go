package preflight

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

const (
	// MinFileDescriptors is the minimum required file descriptor limit.
	MinFileDescriptors = 1024
	// MinInotifyWatches is the watch limit below which large trees fall
	// back to partial coverage.
	MinInotifyWatches = 8192

	defaultInotifyPath = "/proc/sys/fs/inotify/max_user_watches"
)

// CheckFileDescriptors checks if the file descriptor limit is sufficient.
func (c *Checker) CheckFileDescriptors() CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, MinFileDescriptors)
	if rLimit.Cur < MinFileDescriptors {
		result.Status = StatusFail
		result.Details = "Run 'ulimit -n 10240' to increase the limit"
		return result
	}
	result.Status = StatusPass
	return result
}

// CheckInotifyWatches checks the per-user inotify watch limit. Every
// watched directory uses one watch.
func (c *Checker) CheckInotifyWatches() CheckResult {
	result := CheckResult{
		Name:   "inotify_watches",
		Status: StatusPass,
	}
	if runtime.GOOS != "linux" {
		result.Message = "not applicable on " + runtime.GOOS
		return result
	}

	data, err := os.ReadFile(c.inotifyPath)
	if err != nil {
		result.Status = StatusWarn
		result.Message = "cannot read watch limit"
		result.Details = err.Error()
		return result
	}
	limit, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("unexpected watch limit %q", strings.TrimSpace(string(data)))
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum: %d)", limit, MinInotifyWatches)
	if limit < MinInotifyWatches {
		result.Status = StatusWarn
		result.Details = "Raise fs.inotify.max_user_watches or set watch.force_polling"
	}
	return result
}
