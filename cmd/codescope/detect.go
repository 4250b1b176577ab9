package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newDetectCmd(g *globalFlags, newEngine engineFactory) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "detect [path]",
		Short: "Detect the languages of a project",
		Long: `Detect the languages of a project from its manifests and file extensions.

Languages are listed by confidence. A project where nothing reaches the
configured minimum confidence fails with DETECTION_FAILURE.`,
		Args: optionalPath,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd, g, newEngine, args)
			if err != nil {
				return err
			}
			defer s.Close()

			detection, err := s.engine.Detect(cmd.Context(), s.root)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(detection)
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "LANGUAGE\tCONFIDENCE\tFILES\tMANIFESTS")
			for _, l := range detection.Languages {
				manifests := strings.Join(l.Manifests, ", ")
				if manifests == "" {
					manifests = "-"
				}
				fmt.Fprintf(tw, "%s\t%.2f\t%d\t%s\n", l.Language.DisplayName(), l.Confidence, l.Files, manifests)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the detection as JSON")
	return cmd
}
