package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"go-looper/history"
	"go-looper/looper"
)

var exportFlags struct {
	from string
}

func init() {
	exportCmd.Flags().StringVar(&exportFlags.from, "from", "", "export an archived save (name, file or timestamp prefix) instead of the state file")
	rootCmd.AddCommand(exportCmd)
}

var exportCmd = &cobra.Command{
	Use:   "export [output.mid]",
	Short: "Writes a saved loop as a Standard MIDI File",
	Long: `Writes one full cycle of a saved loop, metronome included, as a
Standard MIDI File. The output defaults to the state file with a .mid
extension.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var c looper.CompositionData
		if cmd.Flags().Changed("from") {
			dir, err := historyDir()
			if err != nil {
				return err
			}
			if c, _, err = history.Load(dir, exportFlags.from); err != nil {
				return err
			}
		} else if c, err = looper.ReadCompositionFile(cfg.StateFile); err != nil {
			return err
		}

		out := exportPath(cfg.StateFile)
		if len(args) == 1 {
			out = args[0]
		}
		if err := writeSMF(out, c); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "exported %s\n", looper.DisplayPath(out))
		return nil
	},
}

func writeSMF(path string, c looper.CompositionData) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := looper.ExportSMF(f, c); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	return f.Close()
}
