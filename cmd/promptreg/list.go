package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-registry/internal/store"
	"github.com/stellarlinkco/prompt-registry/internal/template"
)

type listOptions struct {
	serviceCode     string
	docType         string
	status          string
	includeArchived bool
	limit           int
	offset          int
	output          string
}

func newListCmd(st *cliState) *cobra.Command {
	var opts listOptions

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List prompt template versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.serviceCode, "service", "", "filter by service code")
	cmd.Flags().StringVar(&opts.docType, "doc-type", "", "filter by document type")
	cmd.Flags().StringVar(&opts.status, "status", "", "filter by lifecycle status")
	cmd.Flags().BoolVar(&opts.includeArchived, "include-archived", false, "include archived versions")
	cmd.Flags().IntVar(&opts.limit, "limit", 0, "max templates to list")
	cmd.Flags().IntVar(&opts.offset, "offset", 0, "templates to skip")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format (table|json)")
	return cmd
}

func runList(cmd *cobra.Command, st *cliState, opts *listOptions) error {
	if err := loadState(st); err != nil {
		return err
	}
	format, err := resolveOutputFormat(opts.output)
	if err != nil {
		return err
	}

	filter := store.TemplateFilter{
		ServiceCode:     strings.TrimSpace(opts.serviceCode),
		DocType:         strings.TrimSpace(opts.docType),
		IncludeArchived: opts.includeArchived,
		Limit:           opts.limit,
		Offset:          opts.offset,
	}
	if raw := strings.TrimSpace(opts.status); raw != "" {
		status := template.Status(strings.ToUpper(raw))
		if !template.ValidStatus(status) {
			return fmt.Errorf("list: unknown status %q", raw)
		}
		filter.Status = status
	}

	stor, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	templates, err := stor.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(templates) == 0 && format == FormatTable {
		_, _ = fmt.Fprintln(out, "No templates found.")
		return nil
	}
	_, _ = fmt.Fprint(out, formatTemplateList(templates, format))
	return nil
}

func newActiveCmd(st *cliState) *cobra.Command {
	var serviceCode, docType, output string

	cmd := &cobra.Command{
		Use:   "active",
		Short: "Show the active template for a logical key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadState(st); err != nil {
				return err
			}
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}
			serviceCode = strings.TrimSpace(serviceCode)
			docType = strings.TrimSpace(docType)
			if serviceCode == "" || docType == "" {
				return fmt.Errorf("active: --service and --doc-type are required")
			}

			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer stor.Close()

			tpl, err := stor.GetActive(cmd.Context(), serviceCode, docType)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprint(cmd.OutOrStdout(), formatTemplateDetail(tpl, nil, format))
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceCode, "service", "", "service code")
	cmd.Flags().StringVar(&docType, "doc-type", "", "document type")
	cmd.Flags().StringVar(&output, "output", "", "output format (table|json)")
	return cmd
}
