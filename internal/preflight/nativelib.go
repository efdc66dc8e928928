package preflight

import (
	"fmt"
	"runtime"

	"github.com/ebitengine/purego"
)

// CheckNativeLibLoading verifies that dynamic library loading works from
// this binary's install location by dlopen'ing a known-present system
// library. No embedder provider loads a native library: the mlx provider
// talks to its server over HTTP, so this check does not gate it.
func (c *Checker) CheckNativeLibLoading() CheckResult {
	var libPath string
	switch runtime.GOOS {
	case "darwin":
		libPath = "/usr/lib/libSystem.B.dylib"
	case "linux":
		libPath = "libc.so.6"
	default:
		return CheckResult{
			Name:     "native_lib",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("unsupported OS %s; dynamic loading not checked", runtime.GOOS),
			Required: false,
		}
	}

	lib, err := purego.Dlopen(libPath, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return CheckResult{
			Name:     "native_lib",
			Status:   StatusWarn,
			Message:  fmt.Sprintf("dlopen failed: %v", err),
			Required: false,
		}
	}
	defer func() { _ = purego.Dlclose(lib) }()

	return CheckResult{
		Name:     "native_lib",
		Status:   StatusPass,
		Message:  "dynamic loading available",
		Required: false,
	}
}
