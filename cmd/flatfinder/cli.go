package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/pipeline"
)

// SourceLister reports the sources a store holds state for.
type SourceLister interface {
	FindSources(ctx context.Context) ([]string, error)
}

// KnownListingFinder returns recorded listings with their timestamps.
type KnownListingFinder interface {
	FindKnownListings(ctx context.Context, filter flatfinder.KnownListingFilter) ([]*flatfinder.KnownListing, error)
}

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx    context.Context
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Sources selected on the command line.
	Sources []*flatfinder.Source

	// Interval from the configuration file. Zero when unset.
	Interval time.Duration

	Fetcher       flatfinder.ListingFetcher
	RenderFetcher flatfinder.ListingFetcher
	Notifier      flatfinder.Notifier
	Store         flatfinder.KnownListingService
	StoredSources SourceLister
	KnownListings KnownListingFinder
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Config string `short:"c" env:"FLATFINDER_CONFIG" default:"flatfinder.yaml" help:"Source configuration file"`

	Store    string `enum:"sqlite,file" default:"sqlite" env:"FLATFINDER_STORE" help:"Known listings store (sqlite, file)"`
	DB       string `name:"db" env:"FLATFINDER_DB" default:"${default_db}" help:"SQLite database path"`
	StoreDir string `env:"FLATFINDER_STORE_DIR" default:"data" help:"Directory of the file store"`

	TelegramToken string `env:"TELEGRAM_TOKEN" help:"Telegram bot token"`
	TelegramChat  string `env:"TELEGRAM_CHAT_ID" help:"Telegram chat to notify"`
	NoPreview     bool   `help:"Disable link previews in Telegram messages"`
	DryRun        bool   `help:"Print messages to stdout instead of sending them"`

	Timeout   time.Duration `default:"10s" help:"Page fetch timeout"`
	RPS       float64       `name:"rps" default:"1" help:"Requests per second per domain (0 disables limiting)"`
	UserAgent string        `env:"FLATFINDER_USER_AGENT" help:"User-Agent header for static fetches"`
	MaxPages  int           `default:"50" help:"Page limit for sources without max_pages"`
	Retries   int           `default:"2" help:"Retries of a failed page fetch, with exponential backoff"`

	Verbose bool `short:"v" help:"Enable debug logging"`
	LogJSON bool `name:"log-json" help:"Log as JSON"`

	Run     RunCmd     `cmd:"" help:"Check sources once and report new listings"`
	Watch   WatchCmd   `cmd:"" help:"Check sources repeatedly until interrupted"`
	Known   KnownCmd   `cmd:"" help:"Print the known listing ids of a source"`
	Sources SourcesCmd `cmd:"" help:"List configured sources"`
}

// RunCmd is the "run" subcommand.
type RunCmd struct {
	Sources    []string `arg:"" optional:"" name:"source" help:"Sources to check (default: all)"`
	Pagination string   `enum:"first-run,every-run,never" default:"first-run" help:"When to follow next page links (first-run, every-run, never)"`
}

// WatchCmd is the "watch" subcommand.
type WatchCmd struct {
	Sources    []string      `arg:"" optional:"" name:"source" help:"Sources to watch (default: all)"`
	Interval   time.Duration `help:"Time between checks (default: config interval, else 10m)"`
	Pagination string        `enum:"first-run,every-run,never" default:"first-run" help:"When to follow next page links (first-run, every-run, never)"`
}

// KnownCmd is the "known" subcommand.
type KnownCmd struct {
	Source string `arg:"" optional:"" help:"Source name (omit to list sources with recorded listings)"`
}

// SourcesCmd is the "sources" subcommand.
type SourcesCmd struct{}

// fetcherFor returns the listing fetcher suited to source.
func (d *Dependencies) fetcherFor(source *flatfinder.Source) flatfinder.ListingFetcher {
	if source.Render && d.RenderFetcher != nil {
		return d.RenderFetcher
	}
	return d.Fetcher
}

// pipelines builds one pipeline per selected source.
func (d *Dependencies) pipelines(policy pipeline.PaginationPolicy) ([]*pipeline.Pipeline, error) {
	pipelines := make([]*pipeline.Pipeline, 0, len(d.Sources))
	for _, s := range d.Sources {
		p, err := pipeline.New(s, d.fetcherFor(s), d.Notifier, d.Store,
			pipeline.WithLogger(d.Logger),
			pipeline.WithPagination(policy),
		)
		if err != nil {
			return nil, err
		}
		pipelines = append(pipelines, p)
	}
	return pipelines, nil
}
