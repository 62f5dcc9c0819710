package main

import (
	"errors"
	"strings"

	"circ-exchange/internal/common/messaging"
	"circ-exchange/internal/matching"
	"circ-exchange/internal/search"
	"circ-exchange/internal/store"
	ac "circ-exchange/internal/workers/matching/analyze-compatibility"
	aq "circ-exchange/internal/workers/matching/ask-question"
	rc "circ-exchange/internal/workers/matching/rank-candidates"
	sl "circ-exchange/internal/workers/matching/search-listings"

	"github.com/urfave/cli/v2"
)

// withEnv opens an env for the command and closes it afterwards.
func withEnv(run func(c *cli.Context, e *env) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		return run(c, e)
	}
}

var rankCmd = &cli.Command{
	Name:    "rank",
	Usage:   "Rank counterpart listings for a source listing",
	Aliases: []string{"r"},
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "id",
			Required: true,
			Usage:    "specify the source listing id",
		},
		&cli.IntFlag{
			Name:  "top-k",
			Usage: "specify the number of candidates to return (0: matching.top_k)",
		},
		&cli.Float64Flag{
			Name:  "min-similarity",
			Value: -1,
			Usage: "specify the minimum composition similarity (0.0-1.0)",
		},
		&cli.BoolFlag{
			Name:  "known-distance-only",
			Usage: "drop candidates without coordinates",
		},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		pool, err := e.pool(c)
		if err != nil {
			return err
		}
		cfg := rc.LoadConfig()
		cfg.Options = matching.OptionsFromConfig(e.cfg.Matching)

		input := &rc.Input{
			SourceListingID:   c.String("id"),
			TopK:              c.Int("top-k"),
			KnownDistanceOnly: c.Bool("known-distance-only"),
		}
		if ms := c.Float64("min-similarity"); ms >= 0 {
			if ms > 1 {
				return errors.New("invalid min-similarity")
			}
			input.MinSimilarity = &ms
		}

		out, err := rc.NewHandler(cfg, pool, messaging.NoopPublisher{}, nil, e.log).Execute(c.Context, input)
		if err != nil {
			return err
		}
		return e.print(out)
	}),
}

var searchCmd = &cli.Command{
	Name:    "search",
	Usage:   "Filter listings by text, material, location and role",
	Aliases: []string{"s"},
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "query", Aliases: []string{"q"}, Usage: "specify free text matched against company, industry and materials"},
		&cli.StringFlag{Name: "material", Usage: "specify an exact material name, or \"all\""},
		&cli.StringFlag{Name: "location", Usage: "specify a city or state substring, or \"all\""},
		&cli.StringFlag{Name: "role", Usage: "specify supply, demand or all"},
		&cli.IntFlag{Name: "limit", Usage: "specify the maximum listings to print"},
		&cli.BoolFlag{Name: "facets", Usage: "include material and location facets"},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		pool, err := e.pool(c)
		if err != nil {
			return err
		}
		input := &sl.Input{
			Filter: search.Filter{
				Query:    c.String("query"),
				Material: c.String("material"),
				Location: c.String("location"),
				Role:     c.String("role"),
			},
			IncludeFacets: c.Bool("facets"),
			Limit:         c.Int("limit"),
		}
		out, err := sl.NewHandler(sl.LoadConfig(), pool, nil, nil, e.log).Execute(c.Context, input)
		if err != nil {
			return err
		}
		return e.print(out)
	}),
}

var facetsCmd = &cli.Command{
	Name:  "facets",
	Usage: "List the distinct materials and locations in the pool",
	Action: withEnv(func(c *cli.Context, e *env) error {
		pool, err := e.pool(c)
		if err != nil {
			return err
		}
		listings, err := pool.Pool(c.Context)
		if err != nil {
			return err
		}
		idx := search.NewIndex(listings)
		return e.print(map[string]interface{}{
			"listings":  idx.Len(),
			"materials": idx.Materials(),
			"locations": idx.Locations(),
		})
	}),
}

var analyzeCmd = &cli.Command{
	Name:    "analyze",
	Usage:   "Ask the exchange API to assess a supply and demand pair",
	Aliases: []string{"a"},
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "supply", Required: true, Usage: "specify the supply listing id"},
		&cli.StringFlag{Name: "demand", Required: true, Usage: "specify the demand listing id"},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		pool, err := e.pool(c)
		if err != nil {
			return err
		}
		api, err := e.exchange(c)
		if err != nil {
			return err
		}
		input := &ac.Input{SupplyListingID: c.String("supply"), DemandListingID: c.String("demand")}
		out, err := ac.NewHandler(ac.LoadConfig(), pool, api, messaging.NoopPublisher{}, nil, e.log).Execute(c.Context, input)
		if err != nil {
			return err
		}
		return e.print(out)
	}),
}

var askCmd = &cli.Command{
	Name:      "ask",
	Usage:     "Ask the exchange API a free-form question",
	ArgsUsage: "<question>",
	Action: withEnv(func(c *cli.Context, e *env) error {
		question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
		if question == "" {
			return errors.New("a question is required")
		}
		api, err := e.exchange(c)
		if err != nil {
			return err
		}
		out, err := aq.NewHandler(aq.LoadConfig(), api, nil, e.log).Execute(c.Context, &aq.Input{Question: question})
		if err != nil {
			return err
		}
		return e.print(out)
	}),
}

var healthCmd = &cli.Command{
	Name:  "health",
	Usage: "Check that the exchange API answers",
	Action: withEnv(func(c *cli.Context, e *env) error {
		api, err := e.exchange(c)
		if err != nil {
			return err
		}
		status, err := api.Health(c.Context)
		if err != nil {
			return err
		}
		return e.print(status)
	}),
}

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "Import the exchange's demo companies into the local listing stores",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "remote",
			Usage: "ask the exchange to load its sample data first",
		},
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "print the converted listings without writing them",
		},
	},
	Action: withEnv(func(c *cli.Context, e *env) error {
		api, err := e.exchange(c)
		if err != nil {
			return err
		}
		if c.Bool("remote") {
			res, err := api.LoadSampleData(c.Context)
			if err != nil {
				return err
			}
			e.log.Info("remote sample data loaded", map[string]interface{}{"count": res.Count, "message": res.Message})
		}

		companies, err := api.DemoCompanies(c.Context)
		if err != nil {
			return err
		}
		listings := store.CompaniesToListings(companies, e.log)
		if c.Bool("dry-run") {
			return e.print(listings)
		}

		pg, err := e.postgres(c)
		if err != nil {
			return err
		}
		repo := store.NewListingRepository(pg.DB, e.log)
		if err := repo.EnsureSchema(c.Context); err != nil {
			return err
		}
		if err := repo.Upsert(c.Context, listings...); err != nil {
			return err
		}

		indexed := 0
		es, err := e.elasticsearch(c)
		if err != nil {
			return err
		}
		if es != nil {
			idx := store.NewListingIndex(es.Client, e.cfg.Database.Elasticsearch.Index, e.log)
			if err := idx.EnsureIndex(c.Context); err != nil {
				return err
			}
			if err := idx.Index(c.Context, listings...); err != nil {
				return err
			}
			indexed = len(listings)
		}

		return e.print(map[string]interface{}{
			"companies": len(companies),
			"stored":    len(listings),
			"indexed":   indexed,
			"skipped":   len(companies) - len(listings),
		})
	}),
}
