package main

import (
	"io"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/aluiziolira/go-scrape-whisky/profile"
)

var sitesCmd = &cobra.Command{
	Use:   "sites",
	Short: "Lists the site profiles known to the scraper.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(profilesFile)
		if err != nil {
			return err
		}
		return renderSites(cmd.OutOrStdout(), reg)
	},
}

func init() {
	rootCmd.AddCommand(sitesCmd)
}

func renderSites(out io.Writer, reg *profile.Registry) error {
	t := newTable(out)
	t.AppendHeader(table.Row{"Site", "Domain", "Root sitemap", "Sitemap filter", "Page filter", "Delay", "Mandatory"})

	for _, name := range reg.Names() {
		p, err := reg.Resolve(name)
		if err != nil {
			return err
		}
		t.AppendRow(table.Row{
			p.Name,
			p.Domain,
			p.RootSitemap,
			p.SitemapFilter,
			p.PageFilter,
			p.RandomDelay,
			strings.Join(mandatory(p), ", "),
		})
	}

	t.Render()
	return nil
}

// mandatory lists the blocks and fields whose absence skips a page.
func mandatory(p *profile.Profile) []string {
	var out []string
	for name, block := range p.Blocks {
		if block.Required {
			out = append(out, "block:"+name)
		}
	}
	sort.Strings(out)
	for _, rule := range p.Fields {
		if rule.Required {
			out = append(out, string(rule.Field))
		}
	}
	return out
}
