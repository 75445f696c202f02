package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/FranksOps/internsift/internal/classify"
	"github.com/FranksOps/internsift/internal/listing"
	"github.com/FranksOps/internsift/internal/metrics"
	"github.com/FranksOps/internsift/internal/pipeline"
	"github.com/spf13/cobra"
)

type runFlags struct {
	terms      string
	location   string
	sources    []string
	max        int
	policy     string
	include    []string
	categories []string
	output     string
}

func newRunCmd(c *cli) *cobra.Command {
	f := &runFlags{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one query against one or more sources",
		Example: `  internsift run -q "software intern" -l "New York, NY" -s jsearch
  internsift run -s indeed -s linkedin --policy strict -o text`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if f.output != "json" && f.output != "text" {
				return fmt.Errorf("unknown output %q (want json or text)", f.output)
			}
			if cmd.Flags().Changed("max") && f.max <= 0 {
				return fmt.Errorf("--max must be positive, got %d", f.max)
			}

			a, err := c.app(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.cfg.Metrics.Enabled {
				srv := metrics.Start(c.cfg.Metrics.Port, c.logger)
				defer srv.Stop(context.WithoutCancel(cmd.Context()))
			}

			var spec classify.RoleSpec
			if f.policy != "" {
				if spec, err = a.Policies.Lookup(f.policy); err != nil {
					return err
				}
			} else {
				spec = a.RoleSpec
			}
			if len(f.include) > 0 {
				spec = classify.RoleSpec{Name: "custom", Include: f.include, Categories: f.categories}
			} else if cmd.Flags().Changed("category") {
				spec.Categories = f.categories
			}

			q := listing.Query{Terms: f.terms, Location: f.location, MaxResults: f.max}
			sources := make([]listing.Source, len(f.sources))
			for i, s := range f.sources {
				sources[i] = listing.ParseSource(s)
			}

			out, err := a.Orchestrator.RunMany(cmd.Context(), q, sources, pipeline.WithRoleSpec(spec.Normalized()))
			if err != nil {
				return err
			}

			if f.output == "text" {
				return writeTable(cmd.OutOrStdout(), out)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"count": len(out), "listings": nonNil(out)})
		},
	}

	fl := cmd.Flags()
	fl.StringVarP(&f.terms, "terms", "q", listing.DefaultTerms, "search terms")
	fl.StringVarP(&f.location, "location", "l", "", "location filter passed to the source")
	fl.StringSliceVarP(&f.sources, "source", "s", nil, "source to query; repeat or comma-separate (default from config)")
	fl.IntVarP(&f.max, "max", "n", listing.DefaultMaxResults, "maximum listings fetched per source")
	fl.StringVar(&f.policy, "policy", "", "named role policy (default from config)")
	fl.StringSliceVar(&f.include, "include", nil, "explicit include keywords; overrides the policy")
	fl.StringSliceVar(&f.categories, "category", nil, "explicit category keywords")
	fl.StringVarP(&f.output, "output", "o", "json", "output format: json or text")
	return cmd
}

func nonNil(ls []listing.Listing) []listing.Listing {
	if ls == nil {
		return []listing.Listing{}
	}
	return ls
}

func writeTable(w io.Writer, ls []listing.Listing) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tCOMPANY\tLOCATION\tURL")
	for _, l := range ls {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			orDash(l.Title), orDash(l.Company), orDash(l.Location), orDash(l.URL))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%d listing(s)\n", len(ls))
	return err
}

func orDash(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
