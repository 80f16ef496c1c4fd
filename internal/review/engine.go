// Package review generates per-principal access review records from
// external membership systems for registered applications.
package review

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"accessreview/internal/config"
	"accessreview/internal/directory"
	"accessreview/internal/domain"
	"accessreview/internal/events"
	"accessreview/internal/gitlab"
	"accessreview/internal/repo"
)

const maxPrincipalFetches = 8

// Run input errors, matched with errors.Is at the API boundary.
var (
	ErrPeriodRequired     = errors.New("period is required")
	ErrUnknownSource      = errors.New("unknown source")
	ErrSourceUnconfigured = errors.New("source not configured")
)

// Engine drives the review pipeline: load registrations, discover
// principals, resolve managers, build and (optionally) persist records.
type Engine struct {
	DB        *sql.DB
	Repo      repo.Repo
	Events    events.Writer
	Directory *directory.Client
	GitLab    *gitlab.Client
	Config    *config.Config
	Log       zerolog.Logger
	Now       func() time.Time
}

// New wires an engine from config. Sources whose credentials are absent
// from the config stay nil and reject runs against them.
func New(db *sql.DB, cfg *config.Config, log zerolog.Logger) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Log:    log,
		Now:    time.Now,
	}
	if cfg.Directory.BaseURL != "" {
		e.Directory = directory.New(cfg.Directory.BaseURL, cfg.Directory.Username, cfg.Directory.Password, cfg.Timeout())
	}
	if cfg.GitLab.BaseURL != "" {
		e.GitLab = gitlab.New(cfg.GitLab.BaseURL, cfg.GitLab.Token, cfg.Timeout())
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Run is the outcome of one generate or fresh-fetch invocation.
type Run struct {
	AppName         string                        `json:"app_name"`
	Source          string                        `json:"source"`
	Frequency       string                        `json:"frequency"`
	Period          string                        `json:"period"`
	Persisted       bool                          `json:"persisted"`
	Records         []domain.AccessReviewRecord   `json:"records"`
	ServiceAccounts []domain.ServiceAccountRecord `json:"service_accounts"`
}

// Generate builds review records for every registration of the
// application under the given source and persists them. The only fatal
// condition is an application with no registrations; every per-account
// and per-principal failure is logged and skipped.
func (e Engine) Generate(ctx context.Context, appName, source, frequency, period string) (Run, error) {
	return e.run(ctx, appName, source, frequency, period, true)
}

// FetchForFresh runs the identical pipeline without persisting
// anything, for dry-run synchronization previews.
func (e Engine) FetchForFresh(ctx context.Context, appName, source, frequency, period string) (Run, error) {
	return e.run(ctx, appName, source, frequency, period, false)
}

// pendingRecord is a principal waiting for its manager join.
type pendingRecord struct {
	principal  domain.Principal
	managerUID string
	role       string
}

type accountBatch struct {
	reg   domain.Registration
	items []pendingRecord
}

func (e Engine) run(ctx context.Context, appName, source, frequency, period string, persist bool) (Run, error) {
	if frequency == "" {
		frequency = e.Config.Defaults.Frequency
	}
	if period == "" {
		return Run{}, ErrPeriodRequired
	}
	regs, err := e.Repo.ListRegistrations(ctx, appName, source)
	if err != nil {
		return Run{}, err
	}
	if len(regs) == 0 {
		return Run{}, fmt.Errorf("no registrations for app %q source %q: %w", appName, source, repo.ErrNotFound)
	}
	src, err := e.sourceFor(source)
	if err != nil {
		return Run{}, err
	}

	// The manager cache is scoped to this run so that repeated runs
	// never serve stale directory data.
	var dir DirectoryAPI
	if e.Directory != nil {
		dir = e.Directory
	}
	managers := NewManagerResolver(dir, e.Log)

	bc := BuildContext{Frequency: frequency, Period: period, Now: e.now()}
	run := Run{AppName: appName, Source: source, Frequency: frequency, Period: period, Persisted: persist}

	var serviceRegs, regularRegs []domain.Registration
	for _, reg := range regs {
		if reg.IsServiceAccount() {
			serviceRegs = append(serviceRegs, reg)
		} else {
			regularRegs = append(regularRegs, reg)
		}
	}

	// Service accounts have no member list; the manager comes from the
	// account's own directory profile, else the app-owner fallbacks.
	for _, reg := range serviceRegs {
		m := managers.ResolveForPrincipal(ctx, reg.AccountName)
		rec := BuildServiceAccountRecord(reg, m, bc)
		if persist {
			if err := e.Repo.InsertServiceAccountReview(ctx, rec); err != nil {
				e.Log.Error().Err(err).Str("account", reg.AccountName).Str("app", appName).Msg("service account review insert failed")
			}
		}
		run.ServiceAccounts = append(run.ServiceAccounts, rec)
	}

	// Accounts are independent until the manager join, so their
	// membership and profile fetches run concurrently.
	batches := make([]accountBatch, len(regularRegs))
	var wg sync.WaitGroup
	for i, reg := range regularRegs {
		wg.Add(1)
		go func(i int, reg domain.Registration) {
			defer wg.Done()
			batches[i] = e.collectAccount(ctx, src, reg)
		}(i, reg)
	}
	wg.Wait()

	// Cross-registration manager dedup: resolve the distinct manager
	// set once, then join back onto each principal.
	var managerUIDs []string
	for _, b := range batches {
		for _, it := range b.items {
			if it.managerUID != "" {
				managerUIDs = append(managerUIDs, it.managerUID)
			}
		}
	}
	resolved := managers.ResolveBatch(ctx, managerUIDs)

	for _, b := range batches {
		for _, it := range b.items {
			rec := BuildRecord(b.reg, it.principal, resolved[it.managerUID], it.role, bc)
			if persist {
				if err := e.Repo.InsertAccessReview(ctx, rec); err != nil {
					e.Log.Error().Err(err).Str("account", b.reg.AccountName).Str("principal", it.principal.ID).Msg("review insert failed")
				}
			}
			run.Records = append(run.Records, rec)
		}
	}

	if persist {
		if err := e.Events.Append(ctx, "review.generate", appName, source, "engine", events.EventPayload{
			"period":           period,
			"frequency":        frequency,
			"records":          len(run.Records),
			"service_accounts": len(run.ServiceAccounts),
		}); err != nil {
			e.Log.Warn().Err(err).Msg("event append failed")
		}
	}
	return run, nil
}

// collectAccount gathers one account's principals, each already
// classified and annotated with its manager uid. Every failure path
// logs and contributes zero principals.
func (e Engine) collectAccount(ctx context.Context, src Source, reg domain.Registration) accountBatch {
	batch := accountBatch{reg: reg}
	typ, err := src.ResolveType(ctx, reg)
	if err != nil {
		e.Log.Error().Err(err).Str("account", reg.AccountName).Str("source", src.Name()).Msg("account type probe failed")
		return batch
	}
	if typ == AccountUnknown {
		e.Log.Warn().Str("account", reg.AccountName).Str("source", src.Name()).Msg("account is neither project nor group, skipping")
		return batch
	}
	mem, err := src.ListMembers(ctx, reg.AccountName, typ)
	if err != nil {
		e.Log.Error().Err(err).Str("account", reg.AccountName).Msg("membership fetch failed")
		return batch
	}

	results := make([]*pendingRecord, len(mem.Principals))
	sem := make(chan struct{}, maxPrincipalFetches)
	var wg sync.WaitGroup
	for i, p := range mem.Principals {
		// The membership API reports a state per member; inactive ones
		// are excluded. Directory principals carry no state and pass
		// through unfiltered.
		if p.State != "" && p.State != "active" {
			continue
		}
		wg.Add(1)
		go func(i int, p domain.Principal) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			enriched, managerUID, err := src.GetPrincipal(ctx, p)
			if err != nil {
				e.Log.Warn().Err(err).Str("account", reg.AccountName).Str("principal", p.ID).Msg("principal profile unavailable, skipping")
				return
			}
			role := ClassifyRole(enriched.ID, mem.MemberIDs, mem.OwnerIDs)
			if role == domain.NotAvailable && enriched.AccessLevel > 0 {
				role = RoleForAccessLevel(enriched.AccessLevel)
			}
			results[i] = &pendingRecord{principal: enriched, managerUID: managerUID, role: role}
		}(i, p)
	}
	wg.Wait()

	for _, r := range results {
		if r != nil {
			batch.items = append(batch.items, *r)
		}
	}
	return batch
}

func (e Engine) sourceFor(name string) (Source, error) {
	switch name {
	case domain.SourceGitLab:
		if e.GitLab == nil {
			return nil, fmt.Errorf("gitlab: %w", ErrSourceUnconfigured)
		}
		var dir DirectoryAPI
		if e.Directory != nil {
			dir = e.Directory
		}
		return &GitLabSource{GitLab: e.GitLab, Directory: dir, Log: e.Log}, nil
	case domain.SourceRover:
		if e.Directory == nil {
			return nil, fmt.Errorf("rover: %w", ErrSourceUnconfigured)
		}
		return &DirectorySource{Directory: e.Directory, Log: e.Log}, nil
	default:
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, name)
	}
}
