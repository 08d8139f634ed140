package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"go-looper/history"
	"go-looper/looper"
)

var historyFlags struct {
	keep int
}

func init() {
	historyPruneCmd.Flags().IntVar(&historyFlags.keep, "keep", 0, "how many saves to keep (default: historyLimit from the config)")

	historyCmd.AddCommand(historyListCmd, historyArchiveCmd, historyRestoreCmd, historyRenameCmd, historyDeleteCmd, historyPruneCmd)
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Manages archived saves",
	Long:  `Every save from the looper also lands in a timestamped archive. These commands list and manage it.`,
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists archived saves, newest first",
	Args:  cobra.NoArgs,
	RunE:  listHistory,
}

func listHistory(cmd *cobra.Command, args []string) error {
	dir, err := historyDir()
	if err != nil {
		return err
	}
	entries, err := history.List(dir)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintf(out, "no saves in %s\n", looper.DisplayPath(dir))
		return nil
	}
	for _, e := range entries {
		name := e.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "%s  %-20s %s\n", e.Timestamp.Format("2006-01-02 15:04:05"), name, e.Filename)
	}
	return nil
}

var historyArchiveCmd = &cobra.Command{
	Use:   "archive [name]",
	Short: "Archives the current state file, optionally under a name",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := historyDir()
		if err != nil {
			return err
		}
		c, err := looper.ReadCompositionFile(cfg.StateFile)
		if err != nil {
			return err
		}
		name := ""
		if len(args) == 1 {
			name = args[0]
		}
		path, err := history.Archive(dir, c, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "archived %s\n", filepath.Base(path))
		return nil
	},
}

var historyRestoreCmd = &cobra.Command{
	Use:   "restore [ref]",
	Short: "Copies an archived save over the state file (newest if no ref)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := historyDir()
		if err != nil {
			return err
		}
		ref := ""
		if len(args) == 1 {
			ref = args[0]
		}
		c, path, err := history.Load(dir, ref)
		if err != nil {
			return err
		}

		if err := looper.WriteCompositionFile(cfg.StateFile, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", filepath.Base(path), looper.DisplayPath(cfg.StateFile))
		return nil
	},
}

var historyRenameCmd = &cobra.Command{
	Use:   "rename <file> <name>",
	Short: "Renames an archived save",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := historyDir()
		if err != nil {
			return err
		}
		renamed, err := history.Rename(dir, args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "renamed to %s\n", renamed)
		return nil
	},
}

var historyDeleteCmd = &cobra.Command{
	Use:   "delete <file>",
	Short: "Deletes an archived save",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := historyDir()
		if err != nil {
			return err
		}
		if err := history.Delete(dir, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

var historyPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Deletes all but the newest saves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		dir, err := historyDir()
		if err != nil {
			return err
		}
		keep := cfg.HistoryLimit
		if cmd.Flags().Changed("keep") {
			keep = historyFlags.keep
		}
		removed, err := history.Prune(dir, keep)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d\n", removed)
		return nil
	},
}
