package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newShowCmd(st *cliState) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "show <template-id>",
		Short: "Show a template version and its last test result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadState(st); err != nil {
				return err
			}
			format, err := resolveOutputFormat(output)
			if err != nil {
				return err
			}

			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("show: missing template id")
			}

			stor, err := openStore(st.cfg)
			if err != nil {
				return err
			}
			defer stor.Close()

			tpl, err := stor.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			result, err := stor.LastTestResult(cmd.Context(), id)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprint(cmd.OutOrStdout(), formatTemplateDetail(tpl, result, format))
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "output format (table|json)")
	return cmd
}
