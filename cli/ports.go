package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"go-looper/midi"
)

func init() {
	rootCmd.AddCommand(portsCmd)
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "Lists the MIDI ports",
	Long:  `Lists the MIDI input and output ports the driver can see. Any part of a name works for --in and --out.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ports, err := midi.ListPorts()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printPorts := func(title string, names []string) {
			fmt.Fprintf(out, "%s:\n", title)
			if len(names) == 0 {
				fmt.Fprintln(out, "  (none)")
			}
			for i, name := range names {
				fmt.Fprintf(out, "  %d: %s\n", i, name)
			}
		}
		printPorts("Inputs", ports.Inputs)
		printPorts("Outputs", ports.Outputs)
		return nil
	},
}
