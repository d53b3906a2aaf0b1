package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/casedir"
)

func caseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage case workspaces",
	}
	cmd.AddCommand(caseCreateCmd(), caseListCmd(), caseDeleteCmd())
	return cmd
}

func newManager() (*casedir.Manager, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return casedir.NewManager(cfg.WorkspaceDir, newLogger(cfg))
}

func caseCreateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			cs, err := mgr.Create(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			defer cs.Close()
			fmt.Printf("created case %q at %s\n", cs.Slug, cs.Dir)
			return nil
		},
	}
}

func caseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cases in the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			slugs, err := mgr.List()
			if err != nil {
				return err
			}
			for _, slug := range slugs {
				fmt.Println(slug)
			}
			return nil
		},
	}
}

func caseDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <slug>",
		Short: "Delete a case and everything in it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := newManager()
			if err != nil {
				return err
			}
			if err := mgr.Delete(args[0]); err != nil {
				return err
			}
			fmt.Printf("deleted case %q\n", args[0])
			return nil
		},
	}
}
