// Package container provides the heuristic that decides whether the current
// process is running inside a container. Two unrelated policy decisions
// consult it: whether the loopback-URL rewrite applies to workload
// addresses (registry package) and whether the sandbox runner may fall back
// to direct execution when the sandboxing facility is unavailable (sandbox
// package). Both consult the same detector but decide independently — see
// keeping them as separate knobs.
package container

import (
	"os"
	"strings"

	"mcpshell/internal/config"
)

// markerFile exists on essentially every container runtime (Docker,
// containerd, and their derivatives) that bind-mounts it into the rootfs.
const markerFile = "/.dockerenv"

const cgroupFile = "/proc/1/cgroup"

var cgroupHints = []string{"docker", "kubepods", "containerd", "lxc"}

// Detected reports whether the process is running inside a container.
// The explicit environment toggle (set only by the container image's
// entrypoint) takes precedence when present; otherwise filesystem markers
// and cgroup substrings are consulted as a best-effort heuristic.
func Detected() bool {
	if env, ok := os.LookupEnv(config.EnvInContainer); ok {
		return env != "" && env != "0" && env != "false"
	}
	if _, err := os.Stat(markerFile); err == nil {
		return true
	}
	data, err := os.ReadFile(cgroupFile)
	if err != nil {
		return false
	}
	content := string(data)
	for _, hint := range cgroupHints {
		if strings.Contains(content, hint) {
			return true
		}
	}
	return false
}
