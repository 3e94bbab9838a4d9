package cmd

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/rustyeddy/daytrader/broker/paper"
	"github.com/rustyeddy/daytrader/config"
	"github.com/rustyeddy/daytrader/exit"
	"github.com/rustyeddy/daytrader/hub"
	"github.com/rustyeddy/daytrader/journal"
	"github.com/rustyeddy/daytrader/market"
	"github.com/rustyeddy/daytrader/pricing"
	"github.com/rustyeddy/daytrader/risk"
	"github.com/rustyeddy/daytrader/scoring"
)

// session is everything one run needs, assembled from a config.
type session struct {
	hub     *hub.Hub
	feed    pricing.Feed
	journal journal.Journal
	router  *paper.Router
}

func (s *session) Close() error {
	return errors.Join(s.feed.Close(), s.journal.Close())
}

func buildSession(cfg *config.Config, log zerolog.Logger, reg prometheus.Registerer) (*session, error) {
	loc, err := cfg.Session.Location()
	if err != nil {
		return nil, fmt.Errorf("time zone: %w", err)
	}

	var sectors market.SectorLookup
	if cfg.Risk.SectorFile != "" {
		m, err := market.LoadSectorMap(cfg.Risk.SectorFile)
		if err != nil {
			return nil, fmt.Errorf("sector map: %w", err)
		}
		sectors = m
	}

	policies, err := buildPolicies(cfg)
	if err != nil {
		return nil, err
	}

	exits, err := exit.NewEngine(exit.Params{
		TakeProfitPct: cfg.Exits.TakeProfitPct,
		StopLossPct:   cfg.Exits.StopLossPct,
		TrailingPct:   cfg.Exits.TrailingPct,
		MinHoldTicks:  cfg.Exits.MinHoldTicks,
		CooldownTicks: cfg.Exits.CooldownTicks,
	})
	if err != nil {
		return nil, err
	}

	scorer, err := scoring.ByName(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	router, err := paper.New(paper.Options{
		SlippageBps: cfg.Broker.SlippageBps,
		MaxFillQty:  cfg.Broker.MaxFillQty,
		Reject:      cfg.Broker.Reject,
	}, log.With().Str("component", "paper").Logger())
	if err != nil {
		return nil, err
	}

	feed, err := buildFeed(cfg)
	if err != nil {
		return nil, err
	}

	j, err := buildJournal(cfg.Journal)
	if err != nil {
		_ = feed.Close()
		return nil, err
	}

	throttle := 0
	if config.On(cfg.Risk.Throttle.Enabled) {
		throttle = cfg.Risk.Throttle.CooldownTicks
	}

	h, err := hub.New(hub.Config{
		Symbols:       cfg.Session.Symbols,
		Cash:          cfg.Session.Cash,
		Budget:        cfg.Session.Budget,
		OrderValue:    cfg.Session.OrderValue,
		LotSize:       cfg.Session.LotSize,
		BuyThreshold:  cfg.Session.BuyThreshold,
		OrderTimeout:  cfg.Session.OrderTimeout,
		ThrottleTicks: throttle,
		Location:      loc,
	}, hub.Deps{
		Gate:    risk.NewGate(log.With().Str("component", "gate").Logger(), policies...),
		Exits:   exits,
		Router:  router,
		Scorer:  scorer,
		Sectors: sectors,
		Journal: j,
		Metrics: hub.NewMetrics(reg),
		Log:     log.With().Str("component", "hub").Logger(),
	})
	if err != nil {
		_ = feed.Close()
		_ = j.Close()
		return nil, err
	}

	return &session{hub: h, feed: feed, journal: j, router: router}, nil
}

// buildPolicies registers the enabled policies in a fixed order so verdict
// reasons always read the same way.
func buildPolicies(cfg *config.Config) ([]risk.Policy, error) {
	var out []risk.Policy
	rc := cfg.Risk

	if config.On(rc.DayDrawdown.Enabled) {
		p, err := risk.NewDayDrawdownPolicy(risk.DayDrawdownParams{
			HardLimitPct:    rc.DayDrawdown.HardLimitPct,
			SoftLimitPct:    rc.DayDrawdown.SoftLimitPct,
			CooldownMinutes: rc.DayDrawdown.CooldownMinutes,
			MinScale:        rc.DayDrawdown.MinScale,
			FlattenOnHard:   rc.DayDrawdown.FlattenOnHard,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if config.On(rc.Exposure.Enabled) {
		p, err := risk.NewExposurePolicy(risk.ExposureParams{
			MaxTotalPct:   rc.Exposure.MaxTotalPct,
			MaxSymbolPct:  rc.Exposure.MaxSymbolPct,
			MaxSectorPct:  rc.Exposure.MaxSectorPct,
			LotSize:       cfg.Session.LotSize,
			MinOrderValue: rc.Exposure.MinOrderValue,
			Budget:        cfg.Session.Budget,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if rc.SectorCap.Enabled {
		p, err := risk.NewSectorCapPolicy(risk.SectorCapParams{
			SectorCapPct: rc.SectorCap.SectorCapPct,
			Budget:       cfg.Session.Budget,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if config.On(rc.Throttle.Enabled) {
		out = append(out, risk.NewThrottlePolicy())
	}
	return out, nil
}

func buildFeed(cfg *config.Config) (pricing.Feed, error) {
	from, to, err := cfg.Feed.Range()
	if err != nil {
		return nil, fmt.Errorf("feed range: %w", err)
	}
	switch cfg.Feed.Type {
	case "csv":
		f, err := pricing.NewCSVFeed(cfg.Feed.Path, from, to)
		if err != nil {
			return nil, fmt.Errorf("open feed: %w", err)
		}
		return f, nil
	case "random":
		return pricing.NewRandomWalk(pricing.RandomWalkParams{
			Start:      cfg.Feed.StartPrices,
			Seed:       cfg.Feed.Seed,
			Volatility: cfg.Feed.Volatility,
			Interval:   cfg.Feed.Interval,
			From:       from,
		}), nil
	}
	return nil, fmt.Errorf("unknown feed type %q", cfg.Feed.Type)
}

func buildJournal(jc config.JournalConfig) (journal.Journal, error) {
	switch jc.Type {
	case "sqlite":
		j, err := journal.NewSQLite(jc.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open journal db: %w", err)
		}
		return j, nil
	case "csv":
		j, err := journal.NewCSV(jc.FillsFile, jc.EquityFile, jc.SessionsFile)
		if err != nil {
			return nil, fmt.Errorf("open journal files: %w", err)
		}
		return j, nil
	}
	return journal.Nop{}, nil
}
