package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mixcraft/internal/config"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/sequence"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
	"mixcraft/internal/workflow"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect and reorder mix projects",
	}
	projectCmd.AddCommand(newProjectListCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectReorderCommand(ctx))
	projectCmd.AddCommand(newProjectResequenceCommand(ctx))
	projectCmd.AddCommand(newProjectChatCommand(ctx))
	return projectCmd
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				projects, err := st.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(projects) == 0 {
					fmt.Fprintln(out, "No projects")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(projects))
				for _, project := range projects {
					rows = append(rows, []string{
						project.ID,
						project.Name,
						humanLabel(string(project.Status)),
						strconv.Itoa(len(project.OrderedTracks)),
						averageCell(project, colorize),
					})
				}
				fmt.Fprintln(out, renderTable("", []string{"ID", "Name", "Status", "Ordered", "Average"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight}))
				return nil
			})
		},
	}
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project's order and transition scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				return describeError(showProject(cmd, st, strings.TrimSpace(args[0])))
			})
		},
	}
}

func showProject(cmd *cobra.Command, st *store.Store, id string) error {
	ctx := cmd.Context()
	project, err := st.GetProject(ctx, id)
	if err != nil {
		return err
	}
	if project == nil {
		return services.Wrap(services.ErrNotFound, "cli", "project show", "project "+id+" not found", nil)
	}
	tracks, err := st.Tracks(ctx, pipeline.EntityProject, id)
	if err != nil {
		return err
	}
	analyses, err := st.Analyses(ctx, pipeline.EntityProject, id)
	if err != nil {
		return err
	}
	transitions, err := st.Transitions(ctx, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	fmt.Fprintf(out, "Project %s (%s)\n", project.Name, project.ID)
	fmt.Fprintf(out, "Status:  %s\n", humanLabel(string(project.Status)))
	fmt.Fprintf(out, "Average: %s\n", averageCell(project, colorize))
	if project.OutputFile != "" {
		fmt.Fprintf(out, "Output:  %s\n", project.OutputFile)
	}
	if project.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:   %s\n", project.ErrorMessage)
	}
	fmt.Fprintln(out)

	byID := make(map[string]*store.Track, len(tracks))
	for _, track := range tracks {
		byID[track.ID] = track
	}
	renderOrder(out, project, byID, analyses)
	renderTransitions(out, transitions, byID, colorize)
	renderUnordered(out, project, tracks, analyses)
	return nil
}

func renderOrder(out io.Writer, project *store.Project, tracks map[string]*store.Track, analyses map[string]*store.Analysis) {
	if len(project.OrderedTracks) == 0 {
		fmt.Fprintln(out, "No order yet")
		return
	}
	rows := make([][]string, 0, len(project.OrderedTracks))
	for i, id := range project.OrderedTracks {
		row := []string{strconv.Itoa(i + 1), id, trackTitle(tracks[id]), "-", "-", "-"}
		if analysis := analyses[id]; analysis.Scorable() {
			row[3] = strconv.FormatFloat(analysis.Core.BPM, 'f', 1, 64)
			row[4] = analysis.Core.Camelot
			row[5] = strconv.FormatFloat(analysis.Core.Energy, 'f', 2, 64)
		}
		rows = append(rows, row)
	}
	fmt.Fprintln(out, renderTable("Order", []string{"#", "Track", "Title", "BPM", "Key", "Energy"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignLeft, alignRight}))
}

func renderTransitions(out io.Writer, transitions []*store.Transition, tracks map[string]*store.Track, colorize bool) {
	if len(transitions) == 0 {
		return
	}
	rows := make([][]string, 0, len(transitions))
	for _, tr := range transitions {
		rows = append(rows, []string{
			strconv.Itoa(tr.Position + 1),
			trackTitle(tracks[tr.FromTrackID]) + " -> " + trackTitle(tracks[tr.ToTrackID]),
			formatScore(tr.Score, colorize),
			humanLabel(tr.Label),
			fmt.Sprintf("%.2f%%", tr.BPMDifference),
			fmt.Sprintf("%+.3f", tr.EnergyDifference),
			audioCell(tr),
		})
	}
	fmt.Fprintln(out, renderTable("Transitions", []string{"#", "Pair", "Score", "Harmonic", "Tempo", "Energy", "Audio"}, rows,
		[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignRight, alignLeft}))
}

// renderUnordered lists tracks the order leaves out, with the reason.
func renderUnordered(out io.Writer, project *store.Project, tracks []*store.Track, analyses map[string]*store.Analysis) {
	ordered := make(map[string]struct{}, len(project.OrderedTracks))
	for _, id := range project.OrderedTracks {
		ordered[id] = struct{}{}
	}
	var lines []string
	for _, track := range tracks {
		if _, ok := ordered[track.ID]; ok {
			continue
		}
		reason := "not selected"
		switch analysis := analyses[track.ID]; {
		case analysis == nil:
			reason = "awaiting analysis"
		case !analysis.Scorable():
			reason = "incomplete analysis"
		}
		lines = append(lines, fmt.Sprintf("  %s %s (%s)", track.ID, trackTitle(track), reason))
	}
	if len(lines) == 0 {
		return
	}
	fmt.Fprintln(out, "Not in order:")
	fmt.Fprintln(out, strings.Join(lines, "\n"))
}

func newProjectReorderCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "reorder <project-id> <track-id>...",
		Short: "Set a manual track order and rescore it",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager, _ *store.Store) error {
				result, err := mgr.ReorderManual(cmd.Context(), strings.TrimSpace(args[0]), args[1:])
				if err != nil {
					return describeError(err)
				}
				printSequence(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func newProjectResequenceCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "resequence <project-id>",
		Short: "Discard the current order and rebuild it from scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager, _ *store.Store) error {
				result, err := mgr.Resequence(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return describeError(err)
				}
				printSequence(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
}

func newProjectChatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chat <project-id>",
		Short: "Show the retained reorder conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withManager(func(mgr *workflow.Manager, st *store.Store) error {
				id := strings.TrimSpace(args[0])
				project, err := st.GetProject(cmd.Context(), id)
				if err != nil {
					return err
				}
				if project == nil {
					return describeError(services.Wrap(services.ErrNotFound, "cli", "project chat", "project "+id+" not found", nil))
				}
				history, err := mgr.ChatHistory(cmd.Context(), id)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(history) == 0 {
					fmt.Fprintln(out, "No conversation")
					return nil
				}
				for _, msg := range history {
					fmt.Fprintf(out, "%s %-9s %s\n", msg.At.Local().Format("15:04"), humanLabel(string(msg.Role))+":", msg.Content)
				}
				return nil
			})
		},
	}
}

func printSequence(out io.Writer, result sequence.Result) {
	colorize := shouldColorize(out)
	if !result.Scorable() {
		fmt.Fprintf(out, "Order: %s\n", strings.Join(result.Order, ", "))
		fmt.Fprintln(out, "Fewer than two scorable tracks; no transitions")
		return
	}
	fmt.Fprintf(out, "Order: %s\n", strings.Join(result.Order, " -> "))
	fmt.Fprintf(out, "Average score: %s\n", formatScore(result.AverageScore, colorize))
	if len(result.Excluded) > 0 {
		fmt.Fprintf(out, "Excluded: %s\n", strings.Join(result.Excluded, ", "))
	}
}

func trackTitle(track *store.Track) string {
	if track == nil {
		return "?"
	}
	if title := strings.TrimSpace(track.Title); title != "" {
		return title
	}
	return track.ID
}

func averageCell(project *store.Project, colorize bool) string {
	if len(project.OrderedTracks) < 2 {
		return "-"
	}
	return formatScore(project.AverageMixScore, colorize)
}

func audioCell(tr *store.Transition) string {
	label := humanLabel(string(tr.AudioStatus))
	if tr.AudioStatus == pipeline.AudioError && tr.AudioError != "" {
		return label + ": " + tr.AudioError
	}
	return label
}
