package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/ach"
	"github.com/casetrace/casetrace/internal/model"
)

func achCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ach",
		Short: "Analysis of competing hypotheses",
	}
	cmd.AddCommand(achScoreCmd(), achMatrixCmd(), achSummariesCmd(), achDiagnosticityCmd())
	return cmd
}

func achScoreCmd() *cobra.Command {
	var caseSlug, consistency, weight, notes string
	var hypothesisID, evidenceID int64
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Record a consistency judgment for one matrix cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			s := model.Score{
				HypothesisID: hypothesisID,
				EvidenceID:   evidenceID,
				Consistency:  model.Consistency(consistency),
				Weight:       model.Weight(weight),
			}
			if notes != "" {
				s.Notes = &notes
			}
			s, err = ach.NewEngine(cs.DB).SetScore(cmd.Context(), s)
			if err != nil {
				return err
			}
			return printJSON(s)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().Int64Var(&hypothesisID, "hypothesis", 0, "hypothesis id")
	cmd.Flags().Int64Var(&evidenceID, "evidence", 0, "evidence id")
	cmd.Flags().StringVar(&consistency, "consistency", "", "C, I, or N")
	cmd.Flags().StringVar(&weight, "weight", string(model.WeightMedium), "H, M, or L")
	cmd.Flags().StringVar(&notes, "notes", "", "judgment notes")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("hypothesis")
	_ = cmd.MarkFlagRequired("evidence")
	_ = cmd.MarkFlagRequired("consistency")
	return cmd
}

func achMatrixCmd() *cobra.Command {
	var caseSlug string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "matrix",
		Short: "Print the hypothesis/evidence matrix",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			m, err := ach.NewEngine(cs.DB).BuildMatrix(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(m)
			}
			printMatrix(m)
			return nil
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit JSON instead of a table")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

// printMatrix renders the grid with evidence IDs as columns and one row
// per hypothesis, in summary rank order.
func printMatrix(m *ach.Matrix) {
	var header strings.Builder
	header.WriteString(fmt.Sprintf("%-6s", "hyp"))
	for _, ev := range m.Evidence {
		header.WriteString(fmt.Sprintf(" E%-4d", ev.ID))
	}
	header.WriteString("  weighted-inconsistency")
	fmt.Println(header.String())

	for _, s := range m.Summaries {
		var row strings.Builder
		row.WriteString(fmt.Sprintf("H%-5d", s.HypothesisID))
		for _, ev := range m.Evidence {
			cell := " ."
			if score, ok := m.Cells[s.HypothesisID][ev.ID]; ok {
				cell = fmt.Sprintf(" %s%s", score.Consistency, score.Weight)
			}
			row.WriteString(fmt.Sprintf("%-6s", cell))
		}
		row.WriteString(fmt.Sprintf("  %.1f", s.WeightedInconsistency))
		fmt.Println(row.String())
	}

	fmt.Println()
	for _, s := range m.Summaries {
		fmt.Printf("%d. H%d [%s] %s\n", s.Rank, s.HypothesisID, s.Tier, s.Description)
	}
}

func achSummariesCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "summaries",
		Short: "Rank hypotheses by weighted inconsistency",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			sums, err := ach.NewEngine(cs.DB).Summaries(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(sums)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func achDiagnosticityCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "diagnosticity",
		Short: "Score evidence by how well it discriminates between hypotheses",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			diags, err := ach.NewEngine(cs.DB).EvidenceDiagnosticity(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(diags)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

var _ = strconv.ParseInt
