package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-registry/internal/seed"
)

func newImportCmd(st *cliState) *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "import <file-or-dir>",
		Short: "Import template definitions from YAML files as new drafts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := loadState(st); err != nil {
				return err
			}
			return runImport(cmd, st, strings.TrimSpace(args[0]), strings.TrimSpace(actor))
		},
	}

	cmd.Flags().StringVar(&actor, "actor", "", "acting user recorded in the audit trail")
	return cmd
}

func runImport(cmd *cobra.Command, st *cliState, path, actor string) error {
	if path == "" {
		return fmt.Errorf("import: missing path")
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("import: stat %q: %w", path, err)
	}

	var defs []*seed.Definition
	if info.IsDir() {
		defs, err = seed.LoadFromDir(path)
	} else {
		var d *seed.Definition
		d, err = seed.LoadFromFile(path)
		defs = []*seed.Definition{d}
	}
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No definitions found.")
		return nil
	}

	stor, err := openStore(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	results, err := seed.Import(cmd.Context(), stor, defs, actor)
	if err != nil {
		return err
	}

	failed := 0
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tDOC_TYPE\tNAME\tRESULT")
	for _, res := range results {
		outcome := fmt.Sprintf("created %s version %d", res.TemplateID, res.Version)
		if res.Err != nil {
			failed++
			outcome = "error: " + res.Err.Error()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", res.ServiceCode, res.DocType, res.Name, outcome)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("import: %d of %d definitions failed", failed, len(results))
	}
	return nil
}
