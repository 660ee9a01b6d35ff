package ffprobe

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/exec"
	"strings"
	"testing"
)

const sampleDocument = `{
  "streams": [
    {"index": 0, "codec_name": "hevc", "codec_type": "video", "profile": "Main 10", "width": 3840, "height": 2160,
     "pix_fmt": "yuv420p10le", "color_transfer": "smpte2084",
     "side_data_list": [{"side_data_type": "DOVI configuration record", "dv_profile": 8, "rpu_present_flag": 1, "dv_bl_signal_compatibility_id": 1}]},
    {"index": 1, "codec_name": "eac3", "codec_type": "audio", "channels": 6, "tags": {"language": "eng", "TITLE": "Atmos"}},
    {"index": 2, "codec_name": "mjpeg", "codec_type": "video"}
  ],
  "frames": [{"media_type": "video", "side_data_list": [{"side_data_type": "Mastering display metadata"}]}],
  "format": {"duration": "123.45", "size": "1000"}
}`

func TestParseDecodesSideData(t *testing.T) {
	result, err := Parse([]byte(sampleDocument))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	video, ok := result.PrimaryVideo()
	if !ok {
		t.Fatal("expected primary video stream")
	}
	if video.SideData[0].DVProfile != 8 || video.SideData[0].RPUPresentFlag != 1 {
		t.Fatalf("unexpected dovi record: %+v", video.SideData[0])
	}
	if len(result.Frames) != 1 || result.Frames[0].SideData[0].Type != "Mastering display metadata" {
		t.Fatalf("unexpected frames: %+v", result.Frames)
	}
	if got := len(result.StreamsOfType("video")); got != 2 {
		t.Fatalf("expected 2 video streams, got %d", got)
	}
	audio := result.StreamsOfType("audio")[0]
	if audio.Tag("title") != "Atmos" || audio.Tag("language") != "eng" {
		t.Fatalf("unexpected tags: %+v", audio.Tags)
	}
	if result.DurationSeconds() != 123.45 || result.SizeBytes() != 1000 {
		t.Fatalf("unexpected format values: %v %d", result.DurationSeconds(), result.SizeBytes())
	}
	if len(result.RawJSON()) == 0 {
		t.Fatal("expected raw payload retained")
	}
}

func TestResultHelpersHandleInvalidNumbers(t *testing.T) {
	result := Result{Format: Format{Duration: "bad", Size: "-1"}}
	if !math.IsNaN(result.DurationSeconds()) {
		t.Fatalf("expected duration NaN, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 {
		t.Fatalf("expected size 0, got %d", result.SizeBytes())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("not json")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestRunPassesFrameArguments(t *testing.T) {
	var captured []string
	original := commandContext
	commandContext = func(ctx context.Context, name string, args ...string) *exec.Cmd {
		captured = append([]string(nil), args...)
		cmd := exec.CommandContext(ctx, os.Args[0], "-test.run=TestHelperProcess")
		cmd.Env = append(os.Environ(), "GO_WANT_HELPER_PROCESS=1")
		return cmd
	}
	t.Cleanup(func() { commandContext = original })

	result, err := Inspect(context.Background(), "", "/media/movie.mkv")
	if err != nil {
		t.Fatalf("Inspect returned error: %v", err)
	}
	if len(result.Streams) != 3 {
		t.Fatalf("expected helper document to decode, got %d streams", len(result.Streams))
	}
	joined := strings.Join(captured, " ")
	for _, fragment := range []string{"-show_frames", "-read_intervals %+#1", "-- /media/movie.mkv"} {
		if !strings.Contains(joined, fragment) {
			t.Fatalf("expected %q in args %q", fragment, joined)
		}
	}
}

func TestRunRequiresPath(t *testing.T) {
	if _, err := Run(context.Background(), "ffprobe", " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	fmt.Fprint(os.Stdout, sampleDocument)
	os.Exit(0)
}
