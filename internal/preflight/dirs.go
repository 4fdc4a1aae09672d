package preflight

import (
	"fmt"
	"os"
)

// CheckWritePermissions checks that the data directory can be created and written.
func (c *Checker) CheckWritePermissions(dir string) CheckResult {
	result := CheckResult{
		Name:     "data_dir",
		Required: true,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot create %s", dir)
		result.Details = err.Error()
		return result
	}
	f, err := os.CreateTemp(dir, ".preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %s", dir)
		result.Details = err.Error()
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = dir
	return result
}

// CheckRoot checks that a configured root is a readable directory. A
// missing root is not fatal: the daemon fails only that registration.
func (c *Checker) CheckRoot(root string) CheckResult {
	result := CheckResult{
		Name:    "root",
		Status:  StatusPass,
		Message: root,
	}

	info, err := os.Stat(root)
	switch {
	case err != nil:
		result.Status = StatusWarn
		result.Details = err.Error()
	case !info.IsDir():
		result.Status = StatusWarn
		result.Details = "not a directory"
	default:
		entries, err := os.ReadDir(root)
		if err != nil {
			result.Status = StatusWarn
			result.Details = err.Error()
		} else {
			result.Details = fmt.Sprintf("%d entries", len(entries))
		}
	}
	return result
}
