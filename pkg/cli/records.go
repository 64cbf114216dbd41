package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/getmockd/mockd-statsd/pkg/cli/internal/output"
)

func newRecordsCmd(root *rootOptions) *cobra.Command {
	var (
		adminURL string
		name     string
		typ      string
		reset    bool
	)

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List metrics received by a running server",
		Example: `  # Everything received so far
  mockd-statsd records

  # Only counters under api.
  mockd-statsd records --name 'api.**' --type c

  # Clear the server between test phases
  mockd-statsd records --reset`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := resolveAdminURL(cmd, root, adminURL)
			if err != nil {
				return err
			}
			c := newAdminClient(base)
			w := cmd.OutOrStdout()

			if reset {
				if err := c.reset(cmd.Context()); err != nil {
					return formatConnectionError(err)
				}
				fmt.Fprintln(w, "records cleared")
				return nil
			}

			list, err := c.records(cmd.Context(), name, typ)
			if err != nil {
				return formatConnectionError(err)
			}
			if root.jsonOutput {
				return output.JSON(w, list)
			}

			if list.Count == 0 {
				fmt.Fprintf(w, "No records (%d total)\n", list.Total)
				return nil
			}
			tw := output.Table(w)
			fmt.Fprintln(tw, "SEQ\tNAME\tTYPE\tVALUE\tRATE\tTAGS")
			for _, r := range list.Records {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%g\t%s\n",
					r.Seq, r.Name, r.Type, r.Raw, r.SampleRate, strings.Join(r.TagStrings(), ","))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(w, "\n%d of %d record(s)\n", list.Count, list.Total)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&adminURL, "admin-url", "", "Admin API base URL (default from config)")
	flags.StringVar(&name, "name", "", "Filter by name glob")
	flags.StringVar(&typ, "type", "", "Filter by metric type")
	flags.BoolVar(&reset, "reset", false, "Discard all records instead of listing them")
	return cmd
}
