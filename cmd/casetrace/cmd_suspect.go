package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/casetrace/casetrace/internal/model"
)

func suspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suspect",
		Short: "Manage suspect pools",
	}
	cmd.AddCommand(suspectCreateCmd(), suspectListCmd(), suspectAddMemberCmd(),
		suspectMembersCmd(), suspectRemoveMemberCmd(), suspectDeleteCmd())
	return cmd
}

func parseID(kind, raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", kind, raw)
	}
	return id, nil
}

func suspectCreateCmd() *cobra.Command {
	var caseSlug, category, description, evidence, priority string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a suspect pool",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			pool := model.SuspectPool{
				Category:    category,
				Description: description,
				Priority:    model.Priority(priority),
			}
			if evidence != "" {
				pool.SupportingEvidence = &evidence
			}
			pool, err = cs.DB.InsertSuspectPool(cmd.Context(), pool)
			if err != nil {
				return err
			}
			return printJSON(pool)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().StringVar(&category, "category", "", "pool category")
	cmd.Flags().StringVar(&description, "description", "", "what this pool represents")
	cmd.Flags().StringVar(&evidence, "evidence", "", "supporting evidence notes")
	cmd.Flags().StringVar(&priority, "priority", string(model.PriorityMedium), "high, medium, or low")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("category")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func suspectListCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List suspect pools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			pools, err := cs.DB.ListSuspectPools(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(pools)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func suspectAddMemberCmd() *cobra.Command {
	var caseSlug string
	var entityID int64
	cmd := &cobra.Command{
		Use:   "add-member <pool-id>",
		Short: "Add an entity to a suspect pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID, err := parseID("pool", args[0])
			if err != nil {
				return err
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			m, err := cs.DB.AddPoolMember(cmd.Context(), poolID, entityID)
			if err != nil {
				return err
			}
			return printJSON(m)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().Int64Var(&entityID, "entity", 0, "entity id to add")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func suspectMembersCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "members <pool-id>",
		Short: "List the entities in a suspect pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID, err := parseID("pool", args[0])
			if err != nil {
				return err
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			members, err := cs.DB.PoolMembers(cmd.Context(), poolID)
			if err != nil {
				return err
			}
			return printJSON(members)
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func suspectRemoveMemberCmd() *cobra.Command {
	var caseSlug string
	var entityID int64
	cmd := &cobra.Command{
		Use:   "remove-member <pool-id>",
		Short: "Remove an entity from a suspect pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID, err := parseID("pool", args[0])
			if err != nil {
				return err
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			if err := cs.DB.RemovePoolMember(cmd.Context(), poolID, entityID); err != nil {
				return err
			}
			fmt.Printf("removed entity %d from pool %d\n", entityID, poolID)
			return nil
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	cmd.Flags().Int64Var(&entityID, "entity", 0, "entity id to remove")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("entity")
	return cmd
}

func suspectDeleteCmd() *cobra.Command {
	var caseSlug string
	cmd := &cobra.Command{
		Use:   "delete <pool-id>",
		Short: "Delete a suspect pool and its memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			poolID, err := parseID("pool", args[0])
			if err != nil {
				return err
			}
			cs, err := openCase(cmd.Context(), caseSlug)
			if err != nil {
				return err
			}
			defer cs.Close()

			if err := cs.DB.DeleteSuspectPool(cmd.Context(), poolID); err != nil {
				return err
			}
			fmt.Printf("deleted pool %d\n", poolID)
			return nil
		},
	}
	cmd.Flags().StringVar(&caseSlug, "case", "", "case slug")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}
