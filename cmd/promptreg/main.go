package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/prompt-registry/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "promptreg",
		Short:         "Manage prompt template versions",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newListCmd(st))
	root.AddCommand(newShowCmd(st))
	root.AddCommand(newActiveCmd(st))
	root.AddCommand(newActivateCmd(st))
	root.AddCommand(newArchiveCmd(st))
	root.AddCommand(newAuditCmd(st))
	root.AddCommand(newStatsCmd(st))
	root.AddCommand(newImportCmd(st))
	return root
}

func loadState(st *cliState) error {
	if st == nil {
		return fmt.Errorf("promptreg: nil state (internal error)")
	}
	if st.cfg != nil {
		return nil
	}
	cfg, err := loadConfig(st.configPath)
	if err != nil {
		return err
	}
	st.cfg = cfg
	return nil
}
