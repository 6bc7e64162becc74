package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newActivateCmd(st *cliState) *cobra.Command {
	var reason, actor string

	cmd := &cobra.Command{
		Use:   "activate <template-id>",
		Short: "Activate a tested template version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadState(st); err != nil {
				return err
			}

			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("activate: missing template id")
			}

			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer stor.Close()

			tpl, err := stor.Activate(cmd.Context(), id, reason, strings.TrimSpace(actor))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Activated %s (%s/%s version %d)\n",
				tpl.ID, tpl.ServiceCode, tpl.DocType, tpl.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "reason for the activation (required)")
	cmd.Flags().StringVar(&actor, "actor", "", "acting user recorded in the audit trail")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func newArchiveCmd(st *cliState) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "archive <template-id>",
		Short: "Archive a retired template version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadState(st); err != nil {
				return err
			}

			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("archive: missing template id")
			}

			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer stor.Close()

			if err := stor.Archive(cmd.Context(), id, strings.TrimSpace(actor)); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Archived %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting user recorded in the audit trail")
	return cmd
}
