package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"mixcraft/internal/compat"
	"mixcraft/internal/config"
	"mixcraft/internal/pipeline"
	"mixcraft/internal/services"
	"mixcraft/internal/store"
)

func newDraftCommand(ctx *commandContext) *cobra.Command {
	draftCmd := &cobra.Command{
		Use:   "draft",
		Short: "Inspect two-track drafts",
	}
	draftCmd.AddCommand(newDraftListCommand(ctx))
	draftCmd.AddCommand(newDraftShowCommand(ctx))
	return draftCmd
}

func newDraftListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(_ *config.Config, st *store.Store) error {
				drafts, err := st.ListDrafts(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(drafts) == 0 {
					fmt.Fprintln(out, "No drafts")
					return nil
				}
				colorize := shouldColorize(out)
				rows := make([][]string, 0, len(drafts))
				for _, draft := range drafts {
					score := "-"
					if draft.Compatibility != nil {
						score = formatScore(draft.Compatibility.Score, colorize)
					}
					rows = append(rows, []string{
						draft.ID,
						draft.Name,
						humanLabel(string(draft.Status)),
						humanLabel(string(draft.TransitionStatus)),
						score,
					})
				}
				fmt.Fprintln(out, renderTable("", []string{"ID", "Name", "Status", "Transition", "Score"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight}))
				return nil
			})
		},
	}
}

func newDraftShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <draft-id>",
		Short: "Show a draft's slots and compatibility breakdown",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				return describeError(showDraft(cmd, cfg, st, strings.TrimSpace(args[0])))
			})
		},
	}
}

func showDraft(cmd *cobra.Command, cfg *config.Config, st *store.Store, id string) error {
	ctx := cmd.Context()
	draft, err := st.GetDraft(ctx, id)
	if err != nil {
		return err
	}
	if draft == nil {
		return services.Wrap(services.ErrNotFound, "cli", "draft show", "draft "+id+" not found", nil)
	}
	tracks, err := st.Tracks(ctx, pipeline.EntityDraft, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Draft %s (%s)\n", draft.Name, draft.ID)
	fmt.Fprintf(out, "Status:     %s\n", humanLabel(string(draft.Status)))
	fmt.Fprintf(out, "Transition: %s\n", humanLabel(string(draft.TransitionStatus)))
	for _, slot := range []string{store.SlotA, store.SlotB} {
		label := "(empty)"
		for _, track := range tracks {
			if track.Slot == slot {
				label = trackTitle(track)
			}
		}
		fmt.Fprintf(out, "Slot %s:     %s\n", slot, label)
	}
	if draft.TransitionFile != "" {
		fmt.Fprintf(out, "File:       %s\n", draft.TransitionFile)
	}
	if draft.ErrorMessage != "" {
		fmt.Fprintf(out, "Error:      %s\n", draft.ErrorMessage)
	}
	fmt.Fprintln(out)

	if draft.Compatibility == nil {
		fmt.Fprintln(out, "No compatibility score yet")
		return nil
	}
	profile, err := compat.ProfileByName(draft.Compatibility.Profile)
	if err != nil {
		profile, _ = compat.ProfileByName(cfg.Scoring.DraftProfile)
	}
	fmt.Fprint(out, renderPair(*draft.Compatibility, profile, shouldColorize(out)))
	return nil
}
