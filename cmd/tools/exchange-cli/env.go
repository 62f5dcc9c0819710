package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"circ-exchange/internal/common/config"
	"circ-exchange/internal/common/database"
	"circ-exchange/internal/common/logger"
	"circ-exchange/internal/exchange"
	"circ-exchange/internal/models"
	"circ-exchange/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

// env holds the lazily opened connections for one command run.
type env struct {
	cfg     *config.Config
	log     logger.Logger
	out     io.Writer
	closers []func() error

	api exchange.API
	pg  *database.PostgresClient
	es  *database.ElasticsearchClient
}

func newEnv(c *cli.Context) (*env, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.LoadFromFile(path)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if u := c.String("base-url"); u != "" {
		cfg.Exchange.BaseURL = u
	}
	if s := c.String("source"); s != "" {
		cfg.Matching.PoolSource = s
	}

	return &env{
		cfg: cfg,
		log: logger.NewStructured(c.String("log-level"), "console", "stderr"),
		out: c.App.Writer,
	}, nil
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

func (e *env) exchange(c *cli.Context) (exchange.API, error) {
	if e.api != nil {
		return e.api, nil
	}
	var rdb *redis.Client
	ex := e.cfg.Exchange
	if ex.RateLimit.Enabled || (ex.Cache.Enabled && ex.Cache.Backend == config.CacheBackendRedis) {
		client := database.NewRedis(e.cfg.Database.Redis)
		if err := client.Ping(c.Context); err != nil {
			_ = client.Close()
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		rdb = client.Client
	}
	api, err := exchange.NewFromConfig(ex, rdb, e.log)
	if err != nil {
		return nil, err
	}
	e.api = api
	return api, nil
}

func (e *env) postgres(c *cli.Context) (*database.PostgresClient, error) {
	if e.pg != nil {
		return e.pg, nil
	}
	pg, err := database.NewPostgres(e.cfg.Database.Postgres)
	if err != nil {
		return nil, err
	}
	if err := pg.Ping(c.Context); err != nil {
		_ = pg.Close()
		return nil, err
	}
	e.closers = append(e.closers, pg.Close)
	e.pg = pg
	return pg, nil
}

// elasticsearch returns nil when no addresses are configured.
func (e *env) elasticsearch(c *cli.Context) (*database.ElasticsearchClient, error) {
	if e.es != nil || !e.cfg.Database.Elasticsearch.Enabled() {
		return e.es, nil
	}
	es, err := database.NewElasticsearch(e.cfg.Database.Elasticsearch)
	if err != nil {
		return nil, err
	}
	if err := es.Ping(c.Context); err != nil {
		return nil, err
	}
	e.es = es
	return es, nil
}

// pool resolves the listing pool: an input file when given, otherwise the
// configured source.
func (e *env) pool(c *cli.Context) (store.PoolSource, error) {
	if path := c.String("file"); path != "" {
		var listings []models.Listing
		if err := readJSONFile(path, &listings); err != nil {
			return nil, err
		}
		for _, l := range listings {
			if err := l.Validate(); err != nil {
				return nil, err
			}
		}
		return store.StaticSource(listings), nil
	}
	if path := c.String("companies-file"); path != "" {
		var companies []models.Company
		if err := readJSONFile(path, &companies); err != nil {
			return nil, err
		}
		return store.StaticSource(store.CompaniesToListings(companies, e.log)), nil
	}

	switch e.cfg.Matching.PoolSource {
	case config.PoolSourceExchange:
		api, err := e.exchange(c)
		if err != nil {
			return nil, err
		}
		return store.NewExchangeSource(api, e.log), nil
	case config.PoolSourceElasticsearch:
		es, err := e.elasticsearch(c)
		if err != nil {
			return nil, err
		}
		if es == nil {
			return nil, fmt.Errorf("pool source elasticsearch needs database.elasticsearch.addresses")
		}
		return store.NewListingIndex(es.Client, e.cfg.Database.Elasticsearch.Index, e.log), nil
	default:
		pg, err := e.postgres(c)
		if err != nil {
			return nil, err
		}
		return store.NewListingRepository(pg.DB, e.log), nil
	}
}

func (e *env) print(v interface{}) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
