package archive

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
)

// toolNames are looked up on PATH in order.
var toolNames = []string{"7z", "7za", "7zz"}

// wellKnownLocations lists install paths checked after PATH.
func wellKnownLocations() []string {
	if runtime.GOOS == "windows" {
		var out []string
		for _, env := range []string{"ProgramFiles", "ProgramW6432", "ProgramFiles(x86)"} {
			if dir := os.Getenv(env); dir != "" {
				out = append(out, dir+`\7-Zip\7z.exe`)
			}
		}
		return append(out, `C:\Program Files\7-Zip\7z.exe`, `C:\Program Files (x86)\7-Zip\7z.exe`)
	}
	return []string{
		"/usr/bin/7z",
		"/usr/local/bin/7z",
		"/opt/homebrew/bin/7z",
		"/usr/lib/p7zip/7z",
	}
}

// Locate resolves the compression utility. An explicit path must exist; an
// empty one triggers a PATH lookup followed by well-known locations.
func Locate(explicit string) (string, error) {
	if explicit != "" {
		if isExecutableFile(explicit) {
			return explicit, nil
		}
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, explicit)
	}

	for _, name := range toolNames {
		if p, err := exec.LookPath(name); err == nil {
			return p, nil
		}
	}
	for _, p := range wellKnownLocations() {
		if isExecutableFile(p) {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: searched PATH for %v and %v", ErrToolNotFound, toolNames, wellKnownLocations())
}

func isExecutableFile(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
