package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/model"
)

func evidenceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evidence",
		Short: "Track case evidence",
	}
	cmd.AddCommand(evidenceAddCmd(), evidenceListCmd(), evidenceResubmitCmd(), evidenceCandidatesCmd())
	return cmd
}

func evidenceAddCmd() *cobra.Command {
	var caseSlug, name, etype, description, status string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a piece of evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			item := model.EvidenceItem{
				Name:         name,
				EvidenceType: model.EvidenceType(etype),
				Status:       model.EvidenceStatus(status),
			}
			if description != "" {
				item.Description = &description
			}
			item, err = cs.DB.InsertEvidence(cmd.Context(), item)
			if err != nil {
				return err
			}
			return printJSON(item)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&name, "name", "", "evidence name")
	cmd.Flags().StringVar(&etype, "type", "", "physical, digital, circumstantial, documentary, or testimonial")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&status, "status", string(model.EvidenceKnown), "processing status")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func evidenceListCmd() *cobra.Command {
	var caseSlug, status string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List evidence, optionally by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			items, err := cs.DB.ListEvidence(cmd.Context(), model.EvidenceStatus(status))
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func evidenceResubmitCmd() *cobra.Command {
	var caseSlug, status string
	cmd := &cobra.Command{
		Use:   "resubmit <id>",
		Short: "Update an item's lab resubmission status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid evidence id %q", args[0])
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			if err := cs.DB.SetEvidenceResubmission(cmd.Context(), id,
				model.ResubmissionStatus(status)); err != nil {
				return err
			}
			item, err := cs.DB.GetEvidence(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(item)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&status, "status", "", "not_needed, recommended, submitted, or completed")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("status")
	return cmd
}

func evidenceCandidatesCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List evidence recommended or submitted for retesting",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			items, err := cs.DB.ResubmissionCandidates(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(items)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
