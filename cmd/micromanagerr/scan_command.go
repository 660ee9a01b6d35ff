package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"micromanagerr/internal/classify"
	"micromanagerr/internal/evidence"
	"micromanagerr/internal/scan"
	"micromanagerr/internal/services"
)

type scanOutput struct {
	Path           string                   `json:"path"`
	RequestID      string                   `json:"request_id,omitempty"`
	Cached         bool                     `json:"cached"`
	Classification *classify.Classification `json:"classification,omitempty"`
	AspectRatio    string                   `json:"aspect_ratio,omitempty"`
	Explain        []string                 `json:"explain,omitempty"`
	Skipped        []string                 `json:"skipped_sources,omitempty"`
	Outcome        string                   `json:"outcome"`
	Retryable      bool                     `json:"retryable,omitempty"`
	Error          string                   `json:"error,omitempty"`
}

func newScanCommand(ctx *commandContext) *cobra.Command {
	var (
		referenceRuntime float64
		filenameHint     string
		jsonOutput       bool
		noCache          bool
		explain          bool
	)

	cmd := &cobra.Command{
		Use:   "scan FILE...",
		Short: "Probe media files and print their classification",
		Long: `Probe media files and print their classification.

The filename hint defaults to each file's base name. Pass --reference-runtime
(seconds) to enable the runtime-based edition signal.

Recognised editions: ` + strings.Join(classify.Vocabulary(), ", ") + ".",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var reference *float64
			if cmd.Flags().Changed("reference-runtime") {
				if referenceRuntime <= 0 {
					return errors.New("--reference-runtime must be positive")
				}
				reference = &referenceRuntime
			}
			return runScan(cmd, ctx, args, scanFlags{
				reference:    reference,
				filenameHint: filenameHint,
				jsonOutput:   jsonOutput,
				noCache:      noCache,
				explain:      explain,
			})
		},
	}

	cmd.Flags().Float64Var(&referenceRuntime, "reference-runtime", 0, "Expected theatrical runtime in seconds")
	cmd.Flags().StringVar(&filenameHint, "filename-hint", "", "Text matched against the edition vocabulary (default: file base name)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Ignore the classification cache")
	cmd.Flags().BoolVar(&explain, "explain", false, "Print the evidence behind each verdict")
	return cmd
}

type scanFlags struct {
	reference    *float64
	filenameHint string
	jsonOutput   bool
	noCache      bool
	explain      bool
}

func runScan(cmd *cobra.Command, ctx *commandContext, args []string, flags scanFlags) (err error) {
	defer func() { err = errors.Join(err, ctx.flushMetrics()) }()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	reqs := make([]scan.Request, 0, len(args))
	for _, arg := range args {
		path, err := filepath.Abs(arg)
		if err != nil {
			return fmt.Errorf("resolve %q: %w", arg, err)
		}
		hint := flags.filenameHint
		if hint == "" {
			hint = defaultFilenameHint(path)
		}
		reqs = append(reqs, scan.Request{Path: path, ReferenceRuntime: flags.reference, FilenameHint: hint})
	}

	opts := []scan.Option{scan.WithLogger(ctx.log()), scan.WithMetrics(ctx.metrics)}
	if store := ctx.openCache(cmd, flags.noCache); store != nil {
		defer store.Close()
		opts = append(opts, scan.WithCache(store))
	}
	results := scan.NewFromConfig(cfg, opts...).ScanAll(cmd.Context(), reqs)

	outputs := make([]scanOutput, 0, len(results))
	failed := 0
	for _, res := range results {
		outputs = append(outputs, toScanOutput(res))
		if res.Err != nil {
			failed++
		}
	}

	if flags.jsonOutput {
		if err := writeJSON(cmd, outputs); err != nil {
			return err
		}
	} else {
		renderScanResults(cmd, outputs, flags.explain)
	}
	if failed > 0 {
		return fmt.Errorf("scan: %d of %d files failed: %w", failed, len(results), errPartialFailure)
	}
	return nil
}

func defaultFilenameHint(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func toScanOutput(res scan.Result) scanOutput {
	out := scanOutput{
		Path:      res.Request.Path,
		RequestID: res.RequestID,
		Cached:    res.Cached,
		Outcome:   services.Outcome(res.Err),
	}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, string(sk.Source))
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
		out.Retryable = services.IsRetryable(res.Err)
		return out
	}
	c := res.Classification
	out.Classification = &c
	out.AspectRatio = evidence.DetectedAspectRatio(res.Evidence)
	out.Explain = c.Explain()
	return out
}

func renderScanResults(cmd *cobra.Command, outputs []scanOutput, explain bool) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(outputs))
	failed := 0
	for _, o := range outputs {
		name := filepath.Base(o.Path)
		if o.Classification == nil {
			failed++
			rows = append(rows, []string{name, "-", "-", "-", "-", "-", o.Outcome + ": " + o.Error})
			continue
		}
		c := o.Classification
		note := strings.Join(sourceNames(c), ", ")
		if o.Cached {
			note = "cached"
		}
		if len(o.Skipped) > 0 {
			note += " (skipped " + strings.Join(o.Skipped, ", ") + ")"
		}
		rows = append(rows, []string{name, string(c.HDRKind()), dvCell(c), imaxCell(c), aspectCell(o.AspectRatio), editionCell(c), note})
	}
	footer := fmt.Sprintf("%d file(s), %d failed", len(outputs), failed)
	fmt.Fprintln(out, renderTable(
		[]string{"File", "HDR", "Dolby Vision", "IMAX", "Aspect", "Edition", "Sources"},
		rows, nil, footer,
	))
	if !explain {
		return
	}
	for _, o := range outputs {
		if len(o.Explain) == 0 {
			continue
		}
		fmt.Fprintf(out, "\n%s\n", filepath.Base(o.Path))
		for _, line := range o.Explain {
			fmt.Fprintf(out, "  - %s\n", line)
		}
	}
}

func sourceNames(c *classify.Classification) []string {
	names := make([]string, 0, len(c.EvidenceSources))
	for _, s := range c.EvidenceSources {
		names = append(names, string(s))
	}
	return names
}

func dvCell(c *classify.Classification) string {
	dv := c.DolbyVision
	if dv == nil {
		return "-"
	}
	if dv.Profile == 0 {
		return "present (profile unknown)"
	}
	cell := "P" + strconv.Itoa(dv.Profile)
	if dv.HasFallback {
		cell += " + fallback"
	}
	return cell
}

func imaxCell(c *classify.Classification) string {
	if !c.IMAX.Enhanced {
		return "-"
	}
	return strconv.FormatFloat(c.IMAX.Confidence, 'f', 1, 64)
}

func aspectCell(ratio string) string {
	if ratio == "" {
		return "-"
	}
	return ratio
}

func editionCell(c *classify.Classification) string {
	if c.Edition == nil {
		return "-"
	}
	return fmt.Sprintf("%s (%.1f)", c.Edition.Label, c.Edition.Confidence)
}
