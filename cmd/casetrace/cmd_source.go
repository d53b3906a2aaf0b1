package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/model"
	"github.com/casetrace/casetrace/internal/reliability"
)

func sourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "source",
		Short: "Manage case sources",
	}
	cmd.AddCommand(sourceAddCmd(), sourceListCmd(), sourceRateCmd(), sourceSuggestCmd())
	return cmd
}

func sourceAddCmd() *cobra.Command {
	var caseSlug, url, text, file, sourceType, notes string
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Ingest a source from text or a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if text == "" && file == "" {
				return fmt.Errorf("one of --text or --file is required")
			}
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return err
				}
				text = string(data)
			}

			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			src := model.Source{
				RawText:          text,
				SourceType:       sourceType,
				ReliabilityScore: 0.5,
			}
			if url != "" {
				src.URL = &url
			}
			if notes != "" {
				src.Notes = &notes
			}
			src, err = cs.DB.InsertSource(cmd.Context(), src)
			if err != nil {
				return err
			}
			return printJSON(src)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&url, "url", "", "origin URL")
	cmd.Flags().StringVar(&text, "text", "", "source text")
	cmd.Flags().StringVar(&file, "file", "", "read source text from a file")
	cmd.Flags().StringVar(&sourceType, "type", model.SourceTypeManual, "source type")
	cmd.Flags().StringVar(&notes, "notes", "", "analyst notes")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func sourceListCmd() *cobra.Command {
	var caseSlug string
	var unrated bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sources",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			var sources []model.Source
			if unrated {
				sources, err = cs.DB.UnratedSources(cmd.Context())
			} else {
				sources, err = cs.DB.ListSources(cmd.Context())
			}
			if err != nil {
				return err
			}
			return printJSON(sources)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().BoolVar(&unrated, "unrated", false, "only sources without a human rating")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func sourceRateCmd() *cobra.Command {
	var caseSlug, rel, acc, access, bias string
	cmd := &cobra.Command{
		Use:   "rate <id>",
		Short: "Apply an Admiralty rating to a source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			var accessPtr, biasPtr *string
			if access != "" {
				accessPtr = &access
			}
			if bias != "" {
				biasPtr = &bias
			}
			src, err := cs.DB.RateSource(cmd.Context(), id,
				model.ReliabilityGrade(rel), model.AccuracyGrade(acc), accessPtr, biasPtr)
			if err != nil {
				return err
			}
			return printJSON(src)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&rel, "reliability", "", "reliability grade A..F")
	cmd.Flags().StringVar(&acc, "accuracy", "", "accuracy grade 1..6")
	cmd.Flags().StringVar(&access, "access", "", "access assessment")
	cmd.Flags().StringVar(&bias, "bias", "", "bias assessment")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("reliability")
	_ = cmd.MarkFlagRequired("accuracy")
	return cmd
}

func sourceSuggestCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "suggest <id>",
		Short: "Suggest a starting rating for a source without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid source id %q", args[0])
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			src, err := cs.DB.GetSource(cmd.Context(), id)
			if err != nil {
				return err
			}
			sug := reliability.Suggest(src)
			return printJSON(map[string]any{
				"suggestion": sug,
				"composite":  reliability.Composite(sug.Reliability, sug.Accuracy),
			})
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
