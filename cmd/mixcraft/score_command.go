package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"mixcraft/internal/compat"
)

func newScoreCommand(ctx *commandContext) *cobra.Command {
	var outgoing, incoming, profileName string

	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score the transition between two tracks",
		Long: "Score the transition from track A to track B.\n\n" +
			"Each track is given as CAMELOT:BPM:ENERGY, for example 8A:122:0.3.\n" +
			"The profile defaults to the configured mix profile.",
		Example: "  mixcraft score --a 8A:122:0.3 --b 9A:124:0.5\n  mixcraft score --a 8A:122:0.3 --b 3B:140:0.9 --profile draft",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			a, err := parseFeatures("a", outgoing)
			if err != nil {
				return err
			}
			b, err := parseFeatures("b", incoming)
			if err != nil {
				return err
			}
			name := strings.TrimSpace(profileName)
			if name == "" {
				name = cfg.Scoring.MixProfile
			}
			profile, err := compat.ProfileByName(name)
			if err != nil {
				return err
			}

			pair := compat.Score(a, b, profile)
			out := cmd.OutOrStdout()
			fmt.Fprint(out, renderPair(pair, profile, shouldColorize(out)))
			return nil
		},
	}

	cmd.Flags().StringVar(&outgoing, "a", "", "Outgoing track as CAMELOT:BPM:ENERGY")
	cmd.Flags().StringVar(&incoming, "b", "", "Incoming track as CAMELOT:BPM:ENERGY")
	cmd.Flags().StringVar(&profileName, "profile", "", "Weight profile (mix or draft)")
	_ = cmd.MarkFlagRequired("a")
	_ = cmd.MarkFlagRequired("b")
	return cmd
}

// parseFeatures reads CAMELOT:BPM:ENERGY.
func parseFeatures(flag, value string) (compat.Features, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) != 3 {
		return compat.Features{}, fmt.Errorf("--%s: expected CAMELOT:BPM:ENERGY, got %q", flag, value)
	}
	bpm, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return compat.Features{}, fmt.Errorf("--%s: invalid bpm %q", flag, parts[1])
	}
	energy, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
	if err != nil {
		return compat.Features{}, fmt.Errorf("--%s: invalid energy %q", flag, parts[2])
	}
	features := compat.Features{
		Camelot: strings.ToUpper(strings.TrimSpace(parts[0])),
		BPM:     bpm,
		Energy:  energy,
	}
	if !features.Complete() {
		return compat.Features{}, fmt.Errorf("--%s: %q needs a Camelot key 1A-12B, a positive bpm and energy in [0, 1]", flag, value)
	}
	return features, nil
}

func renderPair(pair compat.Pair, profile compat.Profile, colorize bool) string {
	rows := [][]string{
		dimensionRow("Harmonic", pair.Harmonic, profile.Harmonic, "%.0f steps", colorize),
		dimensionRow("Tempo", pair.Tempo, profile.Tempo, "%.2f%%", colorize),
		dimensionRow("Energy", pair.Energy, profile.Energy, "%+.3f", colorize),
	}
	title := fmt.Sprintf("Overall %s (%s profile)", formatScore(pair.Score, colorize), profile.Name)

	var b strings.Builder
	b.WriteString(renderTable(title, []string{"Dimension", "Score", "Weight", "Classification", "Difference"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignRight}))
	b.WriteByte('\n')
	for _, warning := range pair.Warnings() {
		fmt.Fprintf(&b, "warning: %s\n", warning)
	}
	return b.String()
}

func dimensionRow(name string, dim compat.Dimension, weight float64, diffFormat string, colorize bool) []string {
	return []string{
		name,
		formatScore(dim.Score, colorize),
		strconv.FormatFloat(weight, 'f', 2, 64),
		humanLabel(dim.Type),
		fmt.Sprintf(diffFormat, dim.Difference),
	}
}
