package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/timeline"
)

func timelineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Timeline analysis",
	}
	cmd.AddCommand(timelineGapsCmd())
	return cmd
}

func timelineGapsCmd() *cobra.Command {
	var caseSlug, layer string
	var thresholdHours float64
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Report unaccounted spans between consecutive events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			threshold := time.Duration(thresholdHours * float64(time.Hour))
			report, err := timeline.Gaps(cmd.Context(), cs.DB, layer, threshold)
			if err != nil {
				return err
			}
			return printJSON(report)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&layer, "layer", "", "restrict to one timeline layer")
	cmd.Flags().Float64Var(&thresholdHours, "threshold-hours", 24, "minimum gap length to report")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
