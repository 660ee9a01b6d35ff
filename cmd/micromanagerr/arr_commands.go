package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"micromanagerr/internal/arr"
	"micromanagerr/internal/tagsync"
)

func newArrCommand(ctx *commandContext) *cobra.Command {
	var app string

	arrCmd := &cobra.Command{
		Use:   "arr",
		Short: "Inspect a Sonarr or Radarr instance",
	}
	arrCmd.PersistentFlags().StringVar(&app, "app", "", "Target application: sonarr or radarr")
	_ = arrCmd.MarkPersistentFlagRequired("app")

	arrCmd.AddCommand(newArrStatusCommand(ctx, &app))
	arrCmd.AddCommand(newArrTagsCommand(ctx, &app))
	arrCmd.AddCommand(newArrItemsCommand(ctx, &app))
	return arrCmd
}

func newArrStatusCommand(ctx *commandContext, app *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check connectivity and report the instance version",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.arrClient(*app)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printLines(out, renderSectionHeader(string(client.Kind()), colorize)...)

			status, err := client.SystemStatus(cmd.Context())
			if err != nil {
				printLines(out, renderStatusLine("Connection", statusError, err.Error(), colorize))
				return err
			}
			name := status.InstanceName
			if name == "" {
				name = status.AppName
			}
			printLines(out,
				renderStatusLine("Connection", statusOK, name, colorize),
				renderStatusLine("Version", statusInfo, status.Version, colorize),
				renderStatusLine("Branch", statusInfo, status.Branch, colorize),
				renderStatusLine("OS", statusInfo, status.OSName, colorize),
			)
			return nil
		},
	}
}

func newArrTagsCommand(ctx *commandContext, app *string) *cobra.Command {
	var jsonOutput bool
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "List tags and whether each is managed by micromanagerr",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.arrClient(*app)
			if err != nil {
				return err
			}
			tags, err := client.ListTags(cmd.Context())
			if err != nil {
				return err
			}
			slices.SortFunc(tags, func(a, b arr.Tag) int { return a.ID - b.ID })
			if jsonOutput {
				return writeJSON(cmd, tags)
			}
			opts := ctx.tagOptions()
			rows := make([][]string, 0, len(tags))
			for _, tag := range tags {
				rows = append(rows, []string{strconv.Itoa(tag.ID), tag.Label, yesNo(tagsync.IsManaged(tag.Label, opts))})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Label", "Managed"},
				rows,
				[]columnAlignment{alignRight},
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	return cmd
}

func newArrItemsCommand(ctx *commandContext, app *string) *cobra.Command {
	var (
		jsonOutput bool
		tagFilter  string
	)
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List series or movies with their tags",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.arrClient(*app)
			if err != nil {
				return err
			}
			items, err := client.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			tags, err := client.ListTags(cmd.Context())
			if err != nil {
				return err
			}
			catalog := tagsync.NewCatalog(tags)

			type itemOutput struct {
				arr.Item
				Labels []string `json:"labels"`
			}
			outputs := make([]itemOutput, 0, len(items))
			for _, item := range items {
				labels := make([]string, 0, len(item.TagIDs))
				for _, id := range item.TagIDs {
					if tag, ok := catalog.ByID(id); ok {
						labels = append(labels, tag.Label)
					}
				}
				slices.Sort(labels)
				if tagFilter != "" && !slices.ContainsFunc(labels, func(l string) bool {
					return arr.NormalizeLabel(l) == arr.NormalizeLabel(tagFilter)
				}) {
					continue
				}
				outputs = append(outputs, itemOutput{Item: item, Labels: labels})
			}
			slices.SortFunc(outputs, func(a, b itemOutput) int { return a.ID - b.ID })

			if jsonOutput {
				return writeJSON(cmd, outputs)
			}
			rows := make([][]string, 0, len(outputs))
			for _, o := range outputs {
				runtime := "-"
				if o.Runtime > 0 {
					runtime = fmt.Sprintf("%dm", o.Runtime)
				}
				rows = append(rows, []string{
					strconv.Itoa(o.ID),
					o.Title,
					strconv.Itoa(o.Year),
					runtime,
					strings.Join(o.Labels, ", "),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Year", "Runtime", "Tags"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight},
				fmt.Sprintf("%d item(s)", len(outputs)),
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output JSON")
	cmd.Flags().StringVar(&tagFilter, "tag", "", "Only list items carrying this tag label")
	return cmd
}
