package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/JustJay7/ojv-scraper/internal/database"
	"github.com/JustJay7/ojv-scraper/internal/scraper"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeRoles        []string
	scrapeCompetencies []string
	scrapeUpdateDB     bool
)

func init() {
	scrapeCmd.Flags().StringSliceVar(&scrapeRoles, "roles", nil, "Roles to search, as <number>-<year>.")
	scrapeCmd.Flags().StringSliceVar(&scrapeCompetencies, "competencias", nil, "Competencies to search (default civil,laboral,penal,cobranza,familia).")
	scrapeCmd.Flags().BoolVar(&scrapeUpdateDB, "update-db", true, "Store the results.")
	_ = scrapeCmd.MarkFlagRequired("roles")
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape --roles <rol>[,<rol>...] [--competencias civil,laboral] [--update-db=false]",
	Short: "Runs one bulk scrape and prints what was found.",
	RunE: func(cmd *cobra.Command, args []string) error {
		comps := make([]scraper.Competency, 0, len(scrapeCompetencies))
		for _, name := range scrapeCompetencies {
			c, err := scraper.ParseCompetency(name)
			if err != nil {
				return err
			}
			comps = append(comps, c)
		}

		cfg, log, db, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		opts := scraper.OptionsFromConfig(cfg)
		session, err := scraper.NewSession(opts, log)
		if err != nil {
			return err
		}
		session.AssumeAuthenticated()

		ctx := cmd.Context()
		cases := scraper.NewOrchestrator(session, opts.Pacing, log).Run(ctx, scrapeRoles, comps)

		var stored database.UpsertResult
		if scrapeUpdateDB {
			stored, err = database.NewStore(db, log).Upsert(ctx, cases)
			if err != nil {
				return err
			}
		}

		printCases(cases)
		fmt.Printf("%d scraped, %d new, %d updated\n", len(cases), stored.Created, stored.Updated)
		return nil
	},
}

func printCases(cases []scraper.Case) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Rol", "Competencia", "Tribunal", "Caratulado", "Estado", "Movimientos"})
	for _, c := range cases {
		t.AppendRow(table.Row{
			c.Key(),
			c.Competencia,
			c.Tribunal,
			truncate(c.Caratulado, 40),
			c.Status(),
			len(c.Movements()),
		})
	}
	t.Render()
}

func truncate(s string, n int) string {
	r := []rune(strings.TrimSpace(s))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
