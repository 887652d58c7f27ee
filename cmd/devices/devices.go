package devices

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tphakala/audiopulse/internal/audiocore/sources"
	"github.com/tphakala/audiopulse/internal/conf"
)

// Command creates a new command listing capture devices.
func Command(settings *conf.Settings) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List audio capture devices",
		Long:  "Lists the capture devices of the selected source backend (malgo or portaudio).",
		RunE: func(cmd *cobra.Command, args []string) error {
			devices, err := sources.ListDevices(settings.Audio.Source)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DEFAULT\tNAME\tID")
			for _, d := range devices {
				marker := ""
				if d.IsDefault {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", marker, d.Name, d.ID)
			}
			return w.Flush()
		},
	}
}
