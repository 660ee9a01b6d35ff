package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/logging"
	"micromanagerr/internal/scan"
	"micromanagerr/internal/services"
	"micromanagerr/internal/tagsync"
)

type tagTarget struct {
	ItemID int
	Path   string
}

type tagFlags struct {
	app           string
	targets       []string
	noArrRuntime  bool
	noCache       bool
	jsonOutput    bool
	maxConcurrent int
}

type planOutput struct {
	ItemID     int                    `json:"item_id"`
	Path       string                 `json:"path"`
	Desired    []string               `json:"desired_labels,omitempty"`
	Operations []tagsync.TagOperation `json:"operations"`
	Applied    []tagsync.TagOperation `json:"applied,omitempty"`
	Skipped    []tagsync.TagOperation `json:"skipped,omitempty"`
	Outcome    string                 `json:"outcome"`
	Error      string                 `json:"error,omitempty"`
}

func newTagsCommand(ctx *commandContext) *cobra.Command {
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "Reconcile classification tags with Sonarr or Radarr",
	}
	tagsCmd.AddCommand(newTagsRunCommand(ctx, false))
	tagsCmd.AddCommand(newTagsRunCommand(ctx, true))
	return tagsCmd
}

func newTagsRunCommand(ctx *commandContext, apply bool) *cobra.Command {
	flags := &tagFlags{}
	use, short := "plan", "Show the tag operations needed for each target without applying them"
	if apply {
		use, short = "apply", "Compute and apply the tag operations for each target"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Example: fmt.Sprintf(`  micromanagerr tags %s --app radarr --target 12=/movies/Film (2001)/Film.mkv
  micromanagerr tags %s --app sonarr --target 7=/tv/Show/S01E01.mkv --json`, use, use),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTags(cmd, ctx, flags, apply)
		},
	}
	cmd.Flags().StringVar(&flags.app, "app", "", "Target application: sonarr or radarr")
	cmd.Flags().StringArrayVar(&flags.targets, "target", nil, "Item to reconcile as ID=PATH (repeatable)")
	cmd.Flags().BoolVar(&flags.noArrRuntime, "no-arr-runtime", false, "Do not use the Radarr runtime as the edition reference")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "Ignore the classification cache")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "Output JSON")
	if apply {
		cmd.Flags().IntVar(&flags.maxConcurrent, "max-concurrent", 0, "Items applied at once (default tags.max_concurrent_items)")
	}
	_ = cmd.MarkFlagRequired("app")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

func parseTarget(value string) (tagTarget, error) {
	idText, path, ok := strings.Cut(value, "=")
	if !ok {
		return tagTarget{}, fmt.Errorf("target %q: want ID=PATH", value)
	}
	id, err := strconv.Atoi(strings.TrimSpace(idText))
	if err != nil || id <= 0 {
		return tagTarget{}, fmt.Errorf("target %q: item id must be a positive integer", value)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return tagTarget{}, fmt.Errorf("target %q: path is required", value)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return tagTarget{}, fmt.Errorf("target %q: %w", value, err)
	}
	return tagTarget{ItemID: id, Path: abs}, nil
}

func parseTargets(values []string) ([]tagTarget, error) {
	targets := make([]tagTarget, 0, len(values))
	seen := make(map[int]bool, len(values))
	for _, v := range values {
		t, err := parseTarget(v)
		if err != nil {
			return nil, err
		}
		if seen[t.ItemID] {
			return nil, fmt.Errorf("item %d listed more than once", t.ItemID)
		}
		seen[t.ItemID] = true
		targets = append(targets, t)
	}
	return targets, nil
}

func runTags(cmd *cobra.Command, ctx *commandContext, flags *tagFlags, apply bool) (err error) {
	defer func() { err = errors.Join(err, ctx.flushMetrics()) }()

	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	targets, err := parseTargets(flags.targets)
	if err != nil {
		return err
	}
	client, err := ctx.arrClient(flags.app)
	if err != nil {
		return err
	}

	runCtx := services.WithRequestID(cmd.Context(), uuid.NewString())
	logger := logging.WithContext(runCtx, logging.NewComponentLogger(ctx.log(), "tags"))

	if apply {
		lock := flock.New(cfg.LockPath())
		locked, err := lock.TryLock()
		if err != nil {
			return fmt.Errorf("acquire tag lock: %w", err)
		}
		if !locked {
			return fmt.Errorf("another tags apply run holds %s", cfg.LockPath())
		}
		defer func() { _ = lock.Unlock() }()
	}

	reqs := make([]scan.Request, len(targets))
	for i, t := range targets {
		reqs[i] = scan.Request{Path: t.Path, FilenameHint: defaultFilenameHint(t.Path)}
		if client.Kind() == arr.Radarr && !flags.noArrRuntime {
			ref, err := arrReferenceRuntime(runCtx, client, t.ItemID)
			switch {
			case errors.Is(err, services.ErrRemoteStateUnavailable):
				logging.WarnWithContext(logger, "reference runtime unavailable", "arr_runtime_unavailable",
					logging.Int(logging.FieldItemID, t.ItemID),
					logging.Error(err),
					logging.String(logging.FieldImpact, "edition guess relies on the filename only"),
					logging.String(logging.FieldErrorHint, "check the instance with `micromanagerr arr status`"),
				)
			case err != nil:
				return err
			}
			reqs[i].ReferenceRuntime = ref
		}
	}

	scanOpts := []scan.Option{scan.WithLogger(ctx.log()), scan.WithMetrics(ctx.metrics)}
	if store := ctx.openCache(cmd, flags.noCache); store != nil {
		defer store.Close()
		scanOpts = append(scanOpts, scan.WithCache(store))
	}
	scans := scan.NewFromConfig(cfg, scanOpts...).ScanAll(runCtx, reqs)

	outputs := make([]planOutput, len(targets))
	planTargets := make([]tagsync.Target, 0, len(targets))
	index := make(map[int]int, len(targets))
	failed := 0
	for i, res := range scans {
		outputs[i] = planOutput{ItemID: targets[i].ItemID, Path: targets[i].Path, Outcome: services.Outcome(res.Err)}
		index[targets[i].ItemID] = i
		if res.Err != nil {
			failed++
			outputs[i].Error = res.Err.Error()
			continue
		}
		outputs[i].Desired = tagsync.DesiredLabels(res.Classification, ctx.tagOptions())
		planTargets = append(planTargets, tagsync.Target{ItemID: targets[i].ItemID, Classification: res.Classification})
	}

	if len(planTargets) > 0 {
		planner := tagsync.NewPlanner(client, ctx.tagOptions(), ctx.log())
		state, plans, err := planner.PlanAll(runCtx, planTargets)
		if err != nil {
			logging.WarnWithContext(logger, "tag planning failed", "tag_plan_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "classifications are reported but no tags were changed"),
				logging.String(logging.FieldErrorHint, "re-run once the instance is reachable"),
			)
			for _, t := range planTargets {
				o := &outputs[index[t.ItemID]]
				o.Outcome = services.Outcome(err)
				o.Error = err.Error()
				failed++
			}
		}
		for _, p := range plans {
			outputs[index[p.ItemID]].Operations = p.Ops
		}

		if apply && err == nil {
			maxConcurrent := flags.maxConcurrent
			if maxConcurrent <= 0 {
				maxConcurrent = cfg.Tags.MaxConcurrentItems
			}
			inst, err := cfg.Instance(string(client.Kind()))
			if err != nil {
				return err
			}
			executor := tagsync.NewExecutor(client,
				tagsync.WithMaxConcurrent(maxConcurrent),
				tagsync.WithOpTimeout(time.Duration(inst.TimeoutSeconds)*time.Second),
				tagsync.WithObserver(func(op tagsync.TagOperation, err error) {
					ctx.metrics.ObserveTagOperation(string(op.Kind), err)
				}),
				tagsync.WithExecutorLogger(ctx.log()),
			)
			for _, r := range executor.Apply(runCtx, state, plans) {
				o := &outputs[index[r.ItemID]]
				o.Applied = r.Applied
				o.Skipped = r.Skipped
				if err := r.Err(); err != nil {
					failed++
					o.Outcome = services.Outcome(err)
					o.Error = err.Error()
				}
			}
		}
	}

	logger.Info("tag run finished",
		logging.String("app", string(client.Kind())),
		logging.Bool("apply", apply),
		logging.Int("targets", len(targets)),
		logging.Int("failed", failed),
	)

	if flags.jsonOutput {
		if err := writeJSON(cmd, outputs); err != nil {
			return err
		}
	} else {
		renderPlanOutputs(cmd, outputs, apply)
	}
	if failed > 0 {
		return fmt.Errorf("tags %s: %d of %d targets failed: %w", cmd.Name(), failed, len(targets), errPartialFailure)
	}
	return nil
}

// arrReferenceRuntime returns the Radarr runtime in seconds, or nil when the
// item has none recorded.
func arrReferenceRuntime(ctx context.Context, client *arr.Client, itemID int) (*float64, error) {
	item, err := client.GetItem(ctx, itemID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, fmt.Errorf("item %d not found in %s: %w", itemID, client.Kind(), err)
		}
		return nil, err
	}
	if item.Runtime <= 0 {
		return nil, nil
	}
	seconds := float64(item.Runtime) * 60
	return &seconds, nil
}

func renderPlanOutputs(cmd *cobra.Command, outputs []planOutput, apply bool) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(outputs))
	total := 0
	for _, o := range outputs {
		status := "planned"
		switch {
		case o.Error != "":
			status = o.Outcome + ": " + o.Error
		case apply:
			status = fmt.Sprintf("applied %d/%d", len(o.Applied), len(o.Operations))
		case len(o.Operations) == 0:
			status = "in sync"
		}
		ops := make([]string, 0, len(o.Operations))
		for _, op := range o.Operations {
			ops = append(ops, op.String())
		}
		total += len(o.Operations)
		rows = append(rows, []string{
			strconv.Itoa(o.ItemID),
			filepath.Base(o.Path),
			strings.Join(o.Desired, ", "),
			strings.Join(ops, "\n"),
			status,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Item", "File", "Desired", "Operations", "Status"},
		rows,
		[]columnAlignment{alignRight},
		fmt.Sprintf("%d target(s), %d operation(s)", len(outputs), total),
	))
}
