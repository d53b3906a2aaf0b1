package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/model"
)

func hypothesisCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hypothesis",
		Short: "Manage competing hypotheses",
	}
	cmd.AddCommand(hypothesisAddCmd(), hypothesisListCmd(), hypothesisTierCmd())
	return cmd
}

func hypothesisAddCmd() *cobra.Command {
	var caseSlug, description, tier string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a hypothesis",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			h := model.Hypothesis{
				Description: description,
				Tier:        model.Tier(tier),
			}
			h, err = cs.DB.InsertHypothesis(cmd.Context(), h)
			if err != nil {
				return err
			}
			return printJSON(h)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&description, "description", "", "hypothesis statement")
	cmd.Flags().StringVar(&tier, "tier", string(model.TierPlausible), "probability tier")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func hypothesisListCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List hypotheses, most probable first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			hyps, err := cs.DB.ListHypotheses(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(hyps)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func hypothesisTierCmd() *cobra.Command {
	var caseSlug, tier string
	cmd := &cobra.Command{
		Use:   "tier <id>",
		Short: "Move a hypothesis to a different tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid hypothesis id %q", args[0])
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			if err := cs.DB.SetHypothesisTier(cmd.Context(), id, model.Tier(tier)); err != nil {
				return err
			}
			h, err := cs.DB.GetHypothesis(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(h)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&tier, "tier", "", "most_probable, plausible, less_likely, or unlikely")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("tier")
	return cmd
}
