package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

type auditOptions struct {
	templateID string
	action     string
	limit      int
	offset     int
	output     string
}

func newAuditCmd(st *cliState) *cobra.Command {
	var opts auditOptions

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the audit trail, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAudit(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.templateID, "template", "", "filter by template id")
	cmd.Flags().StringVar(&opts.action, "action", "", "filter by action")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max entries to list")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "entries to skip")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format (table|json)")
	return cmd
}

func runAudit(cmd *cobra.Command, st *cliState, opts *auditOptions) error {
	if err := loadState(st); err != nil {
		return err
	}
	format, err := resolveOutputFormat(opts.output)
	if err != nil {
		return err
	}

	filter := store.AuditFilter{
		TemplateID: strings.TrimSpace(opts.templateID),
		Action:     template.Action(strings.ToUpper(strings.TrimSpace(opts.action))),
		Limit:      opts.limit,
		Offset:     opts.offset,
	}
	if filter.Limit <= 0 {
		filter.Limit = st.cfg.AuditPageSize()
	}

	stor, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	entries, err := stor.ListAudit(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 && format == FormatTable {
		_, _ = fmt.Fprintln(out, "No audit entries found.")
		return nil
	}
	_, _ = fmt.Fprint(out, formatAuditList(entries, format))
	return nil
}

func newStatsCmd(st *cliState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show registry counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadState(st); err != nil {
				return err
			}
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}

			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer stor.Close()

			stats, err := stor.Overview(cmd.Context(), timeNow().UTC())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), formatStats(stats, format))
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format (table|json)")
	return cmd
}
