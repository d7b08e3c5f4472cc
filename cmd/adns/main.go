// Command `adns` is the end-user CLI for the adns daemon.
//
// adns is an asynchronous DNS resolution front-end with DNSSEC awareness.
// The CLI communicates with a background daemon that multiplexes queries
// onto a validating resolver context.
//
// Usage:
//
//	adns query <name>... [-t type] [-c class]  - Resolve one or more names
//	adns purge                                 - Reset the daemon's resolver context
//	adns status                                - Show daemon status
//
// Examples:
//
//	adns query example.com                     - Resolve A records for example.com
//	adns query -t MX example.com example.org   - Resolve MX records for both names
//	adns purge                                 - Cancel pending queries, rebuild context
//
// Multiple names are resolved concurrently.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/lc/adns/internal/buildinfo"
	"github.com/lc/adns/internal/config"
	"github.com/lc/adns/pkg/api"
	"github.com/lc/adns/pkg/client"
)

func main() {
	cfg, err := config.New().Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	cli := client.New(cfg.Socket.Path)

	root := &cobra.Command{
		Use:   "adns",
		Short: "adns DNS resolution CLI",
		Long: `adns is an asynchronous DNS resolution front-end with DNSSEC awareness.
Queries go through a background daemon that validates answers and discards
records that fail DNSSEC validation.`,
	}
	// ---- version command ----
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Show version information for the adns CLI and daemon.`,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("version: %s\n", buildinfo.Version)
			fmt.Printf("commit: %s\n", buildinfo.Commit)
		},
	}

	// ---- query command ----
	var qtype, qclass string
	queryCmd := &cobra.Command{
		Use:   "query <name>...",
		Short: "Resolve one or more names through the daemon",
		Long: `Resolve one or more names through the daemon's validating resolver.
Multiple names are resolved concurrently. Records that fail DNSSEC
validation are discarded and the answer is flagged as bogus.`,
		Example: "adns query -t MX example.com example.org",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			var (
				mu      sync.Mutex
				results = make([]api.ResolveResponse, 0, len(args))
			)

			grp, ctx := errgroup.WithContext(ctx)
			for _, name := range args {
				name := name
				grp.Go(func() error {
					resp, err := cli.Resolve(ctx, name, qtype, qclass)
					if err != nil {
						return fmt.Errorf("resolving %q: %w", name, err)
					}
					mu.Lock()
					results = append(results, resp)
					mu.Unlock()
					return nil
				})
			}
			if err := grp.Wait(); err != nil {
				return err
			}

			renderResults(results)
			return nil
		},
	}
	queryCmd.Flags().StringVarP(&qtype, "type", "t", "A", "record type (A, AAAA, MX, TXT, ...)")
	queryCmd.Flags().StringVarP(&qclass, "class", "c", "IN", "record class (IN, CH, ...)")

	// ---- purge command ----
	purgeCmd := &cobra.Command{
		Use:   "purge",
		Short: "Cancel pending queries and rebuild the resolver context",
		Long: `Cancel every pending query and rebuild the daemon's resolver context
from the latest configuration. Waiting callers are notified with a
cancellation error.`,
		Example: "adns purge",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := cli.Purge(ctx); err != nil {
				return err
			}
			color.New(color.FgGreen, color.Bold).Println("✓ Resolver context purged")
			return nil
		},
	}

	// ---- status command ----
	statusCmd := &cobra.Command{
		Use:     "status",
		Short:   "Show daemon status",
		Example: "adns status",
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()

			st, err := cli.Status(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("pending:    %d\n", st.Pending)
			fmt.Printf("generation: %s\n", st.Generation)
			fmt.Printf("uptime:     %s\n", st.Uptime)
			fmt.Printf("version:    %s (%s)\n", st.Version, st.Commit)
			return nil
		},
	}

	root.AddCommand(queryCmd, purgeCmd, statusCmd, versionCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// renderResults prints one table row per record, flagging security status.
func renderResults(results []api.ResolveResponse) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Class", "Type", "Status", "Security", "Value"})
	table.SetHeaderColor(
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
		tablewriter.Colors{tablewriter.Bold, tablewriter.FgHiCyanColor},
	)
	table.SetBorder(false)

	for _, res := range results {
		security := "Insecure"
		switch {
		case res.Bogus != "":
			security = color.RedString("Bogus: %s", res.Bogus)
		case res.Secure:
			security = color.GreenString("Secure")
		}

		if len(res.Records) == 0 {
			table.Append([]string{res.Name, res.Class, res.Type, res.Status, security, ""})
			continue
		}
		for _, rec := range res.Records {
			table.Append([]string{res.Name, res.Class, res.Type, res.Status, security, rec.Value})
		}
	}

	table.Render()
}
