package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pelletier/go-toml/v2"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/tagsync"
)

const testAPIKey = "0123456789abcdef0123456789abcdef"

const ffprobeHybridJSON = `{
  "streams": [
    {"codec_name": "hevc", "codec_type": "video", "width": 3840, "height": 2160, "color_transfer": "smpte2084",
     "side_data_list": [{"side_data_type": "DOVI configuration record", "dv_profile": 8, "rpu_present_flag": 1, "dv_bl_signal_compatibility_id": 1}]}
  ],
  "frames": [{"media_type": "video", "side_data_list": [
    {"side_data_type": "Mastering display metadata"},
    {"side_data_type": "HDR Dynamic Metadata SMPTE2094-40 (HDR10+)"}
  ]}],
  "format": {"duration": "8400.250"}
}`

type cliEnv struct {
	dir         string
	configPath  string
	mediaPath   string
	metricsPath string
	radarr      *fakeRadarr
}

func setupCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("probe stub requires a POSIX shell")
	}
	for _, key := range []string{"SONARR_URL", "SONARR_API_KEY", "RADARR_URL", "RADARR_API_KEY", "LOG_LEVEL"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	dir := t.TempDir()
	t.Setenv("HOME", filepath.Join(dir, "home"))

	stub := filepath.Join(dir, "ffprobe")
	script := "#!/bin/sh\nfor arg; do last=$arg; done\n" +
		"[ -f \"$last\" ] || { echo \"$last: No such file or directory\" >&2; exit 1; }\n" +
		"cat <<'JSON'\n" + ffprobeHybridJSON + "\nJSON\n"
	if err := os.WriteFile(stub, []byte(script), 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	media := filepath.Join(dir, "Film (2001) Extended Cut.mkv")
	if err := os.WriteFile(media, []byte("not really video"), 0o644); err != nil {
		t.Fatalf("write media: %v", err)
	}

	radarr := newFakeRadarr(t)
	env := &cliEnv{
		dir:         dir,
		configPath:  filepath.Join(dir, "config.toml"),
		mediaPath:   media,
		metricsPath: filepath.Join(dir, "metrics", "micromanagerr.prom"),
		radarr:      radarr,
	}
	payload := map[string]any{
		"paths": map[string]any{
			"data_dir": filepath.Join(dir, "data"),
			"log_dir":  filepath.Join(dir, "logs"),
		},
		"radarr": map[string]any{"url": radarr.server.URL, "api_key": testAPIKey},
		"probes": map[string]any{
			"ffprobe_binary":         stub,
			"mediainfo_enabled":      false,
			"crop_detection_enabled": false,
		},
		"metrics": map[string]any{"textfile_path": env.metricsPath},
		"logging": map[string]any{"level": "error"},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(env.configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

type fakeRadarr struct {
	server *httptest.Server

	mu     sync.Mutex
	down   bool
	tags   []arr.Tag
	movies map[int]*arr.Item
}

func newFakeRadarr(t *testing.T) *fakeRadarr {
	f := &fakeRadarr{
		tags: []arr.Tag{{ID: 1, Label: "hdr10"}, {ID: 2, Label: "4k"}},
		movies: map[int]*arr.Item{
			12: {ID: 12, Title: "Film", Year: 2001, Runtime: 135, TagIDs: []int{1, 2}},
		},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRadarr) serve(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Api-Key") != testAPIKey {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	path := strings.TrimPrefix(r.URL.Path, "/api/v3/")
	switch {
	case path == "system/status":
		writeTestJSON(w, arr.SystemStatus{AppName: "Radarr", Version: "5.8.3"})
	case path == "tag" && r.Method == http.MethodGet:
		writeTestJSON(w, f.tags)
	case path == "tag" && r.Method == http.MethodPost:
		var tag arr.Tag
		_ = json.NewDecoder(r.Body).Decode(&tag)
		tag.ID = len(f.tags) + 1
		f.tags = append(f.tags, tag)
		writeTestJSON(w, tag)
	case path == "movie" && r.Method == http.MethodGet:
		items := make([]arr.Item, 0, len(f.movies))
		for _, m := range f.movies {
			items = append(items, *m)
		}
		writeTestJSON(w, items)
	case path == "movie/editor" && r.Method == http.MethodPut:
		var body struct {
			MovieIDs  []int  `json:"movieIds"`
			Tags      []int  `json:"tags"`
			ApplyTags string `json:"applyTags"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.MovieIDs {
			m, ok := f.movies[id]
			if !ok {
				continue
			}
			for _, tagID := range body.Tags {
				switch body.ApplyTags {
				case "add":
					if !slices.Contains(m.TagIDs, tagID) {
						m.TagIDs = append(m.TagIDs, tagID)
					}
				case "remove":
					m.TagIDs = slices.DeleteFunc(m.TagIDs, func(v int) bool { return v == tagID })
				}
			}
		}
		writeTestJSON(w, []any{})
	case strings.HasPrefix(path, "movie/") && r.Method == http.MethodGet:
		id, _ := strconv.Atoi(strings.TrimPrefix(path, "movie/"))
		m, ok := f.movies[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeTestJSON(w, m)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRadarr) labelsOf(id int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var labels []string
	for _, tagID := range f.movies[id].TagIDs {
		for _, tag := range f.tags {
			if tag.ID == tagID {
				labels = append(labels, tag.Label)
			}
		}
	}
	slices.Sort(labels)
	return labels
}

func writeTestJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := env.run(t, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	for _, want := range []string{"Configuration valid", "Radarr configured: yes", "Sonarr configured: no"} {
		if !strings.Contains(out, want) {
			t.Fatalf("validate output missing %q:\n%s", want, out)
		}
	}

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err = env.run(t, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected init output:\n%s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := env.run(t, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestScanCommandJSON(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := env.run(t, "scan", "--json", "--reference-runtime", "8100", env.mediaPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var results []scanOutput
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode scan output: %v\n%s", err, out)
	}
	if len(results) != 1 || results[0].Classification == nil {
		t.Fatalf("unexpected results %+v", results)
	}
	c := results[0].Classification
	if c.HDRKind() != "HybridHDR10PlusDV" {
		t.Fatalf("hdr kind = %s", c.HDRKind())
	}
	if c.Edition == nil || c.Edition.Label != "Extended" || c.Edition.Confidence != 1.0 {
		t.Fatalf("unexpected edition %+v", c.Edition)
	}

	again, err := env.run(t, "scan", "--json", "--reference-runtime", "8100", env.mediaPath)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	var cached []scanOutput
	if err := json.Unmarshal([]byte(again), &cached); err != nil {
		t.Fatalf("decode second scan: %v", err)
	}
	if len(cached) != 1 || !cached[0].Cached {
		t.Fatalf("expected cached result, got %+v", cached)
	}

	metrics, err := os.ReadFile(env.metricsPath)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	if !strings.Contains(string(metrics), `micromanagerr_scans_total{outcome="cached"} 1`) {
		t.Fatalf("metrics textfile missing cached scan:\n%s", metrics)
	}
}

func TestScanCommandReportsFailures(t *testing.T) {
	env := setupCLIEnv(t)
	missing := filepath.Join(env.dir, "missing.mkv")
	out, err := env.run(t, "scan", "--no-cache", "--json", env.mediaPath, missing)
	if !errors.Is(err, errPartialFailure) {
		t.Fatalf("expected partial failure, got %v", err)
	}
	var results []scanOutput
	if err := json.Unmarshal([]byte(out), &results); err != nil {
		t.Fatalf("decode scan output: %v\n%s", err, out)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}
	if results[0].Error != "" || results[0].Classification == nil {
		t.Fatalf("first file should classify, got %+v", results[0])
	}
	if results[1].Outcome != "tool_error" || results[1].Classification != nil {
		t.Fatalf("missing file should fail with tool_error, got %+v", results[1])
	}
}

func TestTagsPlanAndApply(t *testing.T) {
	env := setupCLIEnv(t)
	target := "12=" + env.mediaPath

	out, err := env.run(t, "tags", "plan", "--app", "radarr", "--target", target, "--json")
	if err != nil {
		t.Fatalf("tags plan: %v", err)
	}
	var plans []planOutput
	if err := json.Unmarshal([]byte(out), &plans); err != nil {
		t.Fatalf("decode plan: %v\n%s", err, out)
	}
	if len(plans) != 1 {
		t.Fatalf("plans = %d", len(plans))
	}
	wantOps := []tagsync.TagOperation{
		{Kind: tagsync.OpCreateTag, Label: "dv-p8-fallback", ItemID: 12},
		{Kind: tagsync.OpCreateTag, Label: "edition-extended", ItemID: 12},
		{Kind: tagsync.OpCreateTag, Label: "hdr10plus-dv", ItemID: 12},
		{Kind: tagsync.OpAttachTag, Label: "dv-p8-fallback", ItemID: 12},
		{Kind: tagsync.OpAttachTag, Label: "edition-extended", ItemID: 12},
		{Kind: tagsync.OpAttachTag, Label: "hdr10plus-dv", ItemID: 12},
		{Kind: tagsync.OpDetachTag, Label: "hdr10", ItemID: 12},
	}
	if diff := cmp.Diff(wantOps, plans[0].Operations); diff != "" {
		t.Fatalf("plan mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"4k", "hdr10"}, env.radarr.labelsOf(12)); diff != "" {
		t.Fatalf("plan must not mutate remote state (-want +got):\n%s", diff)
	}

	if _, err := env.run(t, "tags", "apply", "--app", "radarr", "--target", target); err != nil {
		t.Fatalf("tags apply: %v", err)
	}
	want := []string{"4k", "dv-p8-fallback", "edition-extended", "hdr10plus-dv"}
	if diff := cmp.Diff(want, env.radarr.labelsOf(12)); diff != "" {
		t.Fatalf("remote labels mismatch (-want +got):\n%s", diff)
	}

	out, err = env.run(t, "tags", "plan", "--app", "radarr", "--target", target, "--json")
	if err != nil {
		t.Fatalf("second plan: %v", err)
	}
	plans = nil
	if err := json.Unmarshal([]byte(out), &plans); err != nil {
		t.Fatalf("decode second plan: %v", err)
	}
	if len(plans[0].Operations) != 0 {
		t.Fatalf("expected converged plan, got %v", plans[0].Operations)
	}
}

func TestTagsPlanReportsClassificationsWhenRemoteDown(t *testing.T) {
	env := setupCLIEnv(t)
	env.radarr.mu.Lock()
	env.radarr.down = true
	env.radarr.mu.Unlock()

	for _, sub := range []string{"plan", "apply"} {
		out, err := env.run(t, "tags", sub, "--app", "radarr", "--target", "12="+env.mediaPath, "--json")
		if !errors.Is(err, errPartialFailure) {
			t.Fatalf("tags %s: expected partial failure, got %v", sub, err)
		}
		var plans []planOutput
		if err := json.Unmarshal([]byte(out), &plans); err != nil {
			t.Fatalf("decode %s output: %v\n%s", sub, err, out)
		}
		if len(plans) != 1 {
			t.Fatalf("tags %s: plans = %d", sub, len(plans))
		}
		got := plans[0]
		want := []string{"dv-p8-fallback", "edition-extended", "hdr10plus-dv"}
		if diff := cmp.Diff(want, got.Desired); diff != "" {
			t.Fatalf("tags %s: desired labels mismatch (-want +got):\n%s", sub, diff)
		}
		if got.Outcome != "remote_unavailable" || got.Error == "" {
			t.Fatalf("tags %s: unexpected outcome %q error %q", sub, got.Outcome, got.Error)
		}
		if len(got.Operations) != 0 || len(got.Applied) != 0 {
			t.Fatalf("tags %s: no operations expected, got %+v", sub, got)
		}
	}

	env.radarr.mu.Lock()
	env.radarr.down = false
	env.radarr.mu.Unlock()
	if diff := cmp.Diff([]string{"4k", "hdr10"}, env.radarr.labelsOf(12)); diff != "" {
		t.Fatalf("remote labels changed (-want +got):\n%s", diff)
	}
}

func TestArrCommands(t *testing.T) {
	env := setupCLIEnv(t)

	out, err := env.run(t, "arr", "status", "--app", "radarr")
	if err != nil {
		t.Fatalf("arr status: %v", err)
	}
	if !strings.Contains(out, "5.8.3") {
		t.Fatalf("status output missing version:\n%s", out)
	}

	out, err = env.run(t, "arr", "tags", "--app", "radarr")
	if err != nil {
		t.Fatalf("arr tags: %v", err)
	}
	if !strings.Contains(out, "hdr10") || !strings.Contains(out, "4k") {
		t.Fatalf("tags output missing labels:\n%s", out)
	}

	out, err = env.run(t, "arr", "items", "--app", "radarr", "--tag", "HDR10")
	if err != nil {
		t.Fatalf("arr items: %v", err)
	}
	if !strings.Contains(out, "Film") || !strings.Contains(out, "135m") {
		t.Fatalf("items output missing movie:\n%s", out)
	}

	if _, err := env.run(t, "arr", "status", "--app", "sonarr"); err == nil {
		t.Fatal("expected unconfigured sonarr to fail")
	}
}

func TestParseTarget(t *testing.T) {
	cases := []struct {
		in      string
		wantID  int
		wantErr bool
	}{
		{in: "12=/movies/a.mkv", wantID: 12},
		{in: " 7 = /tv/b.mkv", wantID: 7},
		{in: "/movies/a.mkv", wantErr: true},
		{in: "x=/movies/a.mkv", wantErr: true},
		{in: "0=/movies/a.mkv", wantErr: true},
		{in: "3=", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseTarget(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("parseTarget(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil || got.ItemID != tc.wantID || !filepath.IsAbs(got.Path) {
			t.Errorf("parseTarget(%q) = %+v, %v", tc.in, got, err)
		}
	}
	if _, err := parseTargets([]string{"1=/a.mkv", "1=/b.mkv"}); err == nil {
		t.Fatal("expected duplicate item error")
	}
}

func TestCacheCommands(t *testing.T) {
	env := setupCLIEnv(t)
	if _, err := env.run(t, "scan", env.mediaPath); err != nil {
		t.Fatalf("scan: %v", err)
	}

	out, err := env.run(t, "cache", "stats")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	if !strings.Contains(out, "Entries:    1") || !strings.Contains(out, "Files:      1") {
		t.Fatalf("unexpected stats output:\n%s", out)
	}

	out, err = env.run(t, "cache", "clear")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 cached classification(s)") {
		t.Fatalf("unexpected clear output:\n%s", out)
	}
}
