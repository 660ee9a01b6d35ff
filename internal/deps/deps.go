package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"micromanagerr/internal/config"
)

// Requirement is one external binary the scanner may execute.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, are passed to the binary to capture a version
	// string for status output.
	VersionArgs []string
}

// Status reports the availability of a requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Path        string
	Version     string
	Detail      string
}

// RequiredBinaries lists the probes enabled by cfg. ffprobe is always
// required; MediaInfo and FFmpeg (used by crop detection) are optional because
// the scan degrades to the remaining sources without them.
func RequiredBinaries(cfg *config.Config) []Requirement {
	probes := config.Default().Probes
	if cfg != nil {
		probes = cfg.Probes
	}
	reqs := []Requirement{{
		Name:        "FFprobe",
		Command:     probes.FFprobeBinary,
		Description: "Container metadata probe",
		VersionArgs: []string{"-version"},
	}}
	if probes.MediaInfoEnabled {
		reqs = append(reqs, Requirement{
			Name:        "MediaInfo",
			Command:     probes.MediaInfoBinary,
			Description: "Stream inspector probe",
			Optional:    true,
			VersionArgs: []string{"--Version"},
		})
	}
	if probes.CropDetectionEnabled {
		reqs = append(reqs, Requirement{
			Name:        "FFmpeg",
			Command:     "ffmpeg",
			Description: "Used by crop detection",
			Optional:    true,
			VersionArgs: []string{"-version"},
		})
	}
	return reqs
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(ctx context.Context, requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		path, err := exec.LookPath(cmd)
		if err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		status.Path = path
		if len(req.VersionArgs) > 0 {
			status.Version = probeVersion(ctx, path, req.VersionArgs)
		}
		results = append(results, status)
	}
	return results
}

// MissingRequired reports whether any non-optional requirement is unavailable.
func MissingRequired(statuses []Status) bool {
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			return true
		}
	}
	return false
}

// probeVersion returns the first non-empty output line, or "" when the
// binary does not answer within a few seconds.
func probeVersion(ctx context.Context, path string, args []string) string {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, path, args...).Output()
	if err != nil {
		return ""
	}
	for line := range strings.SplitSeq(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
