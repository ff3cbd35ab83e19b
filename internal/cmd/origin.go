package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/salmonumbrella/paddock-cli/internal/host"
	"github.com/salmonumbrella/paddock-cli/internal/iocontext"
)

func newOriginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "origin",
		Short: "Print the backend address requests are sent to",
		Long: `Print the backend address requests are sent to.

An explicit base URL wins. Otherwise the address is derived from the page
URL: same scheme and host, the API port (8001 when the page runs on the
frontend dev port 3000 or has no port) and the /api prefix.`,
		Example: `  paddock origin
  paddock origin --page-url https://admin.paddock.example.com/horses
  paddock origin --base-url //api.paddock.example.com`,
		Args: cobra.NoArgs,
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			factory, err := newClientFactory(cmd)
			if err != nil {
				return err
			}
			h, err := factory.hostContext()
			if err != nil {
				return err
			}
			client, err := factory.newClient()
			if err != nil {
				return err
			}
			base := client.BaseURL()

			if isJSON(cmd) {
				page := ""
				if loc, ok := h.Location(); ok {
					page = loc.String()
				}
				return printJSON(cmd, map[string]any{
					"origin":   base,
					"page_url": page,
					"route":    host.Route(h),
					"headless": factory.settings.Headless,
				})
			}
			_, _ = fmt.Fprintln(iocontext.GetIO(cmd.Context()).Out, base)
			return nil
		}),
	}
}
