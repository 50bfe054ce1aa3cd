// Command flatfinder watches apartment listing sites and reports new
// listings to a Telegram chat.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/fwojciec/flatfinder"
	"github.com/fwojciec/flatfinder/fs"
	"github.com/fwojciec/flatfinder/goquery"
	ffhttp "github.com/fwojciec/flatfinder/http"
	"github.com/fwojciec/flatfinder/rod"
	ffslog "github.com/fwojciec/flatfinder/slog"
	"github.com/fwojciec/flatfinder/sqlite"
	"github.com/fwojciec/flatfinder/telegram"
	"github.com/fwojciec/flatfinder/yaml"
	"github.com/joho/godotenv"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A missing .env file is fine; flags and the environment still apply.
	_ = godotenv.Load()

	m := NewMain()
	defer m.Close()

	if err := m.Run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		m.Close()
		os.Exit(1)
	}
}

// Main represents the program.
type Main struct {
	// SQLite database, opened when the sqlite store is selected.
	DB *sqlite.DB

	closers []io.Closer
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{}
}

// Close releases the database and any browser started by Run.
// Close is safe to call more than once.
func (m *Main) Close() error {
	var firstErr error
	for _, c := range m.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.closers = nil
	if m.DB != nil {
		if err := m.DB.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		m.DB = nil
	}
	return firstErr
}

// Run executes the CLI with the given arguments.
func (m *Main) Run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	deps := &Dependencies{
		Ctx:    ctx,
		Stdout: stdout,
		Stderr: stderr,
	}

	cli := &CLI{}
	parser, err := kong.New(cli,
		kong.Name("flatfinder"),
		kong.Description("Watch apartment listing sites and report new listings."),
		kong.Writers(stdout, stderr),
		kong.Exit(func(int) {}), // Don't exit on help
		kong.Vars{"default_db": defaultDBPath()},
		kong.Bind(deps),
	)
	if err != nil {
		return fmt.Errorf("failed to create parser: %w", err)
	}

	if len(args) == 0 {
		_, _ = parser.Parse([]string{"--help"})
		return fmt.Errorf("no command specified. Run 'flatfinder --help' to see available commands")
	}

	if args[0] == "help" || args[0] == "--help" || args[0] == "-h" {
		_, _ = parser.Parse([]string{"--help"})
		return nil
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	cmd := strings.Fields(kongCtx.Command())[0]

	if cli.MaxPages < 1 {
		return flatfinder.Errorf(flatfinder.EINVALID, "--max-pages must be at least 1")
	}

	deps.Logger = newLogger(stderr, cli.Verbose, cli.LogJSON)

	if cmd == "run" || cmd == "watch" || cmd == "sources" {
		if err := m.loadSources(cli, cmd, deps); err != nil {
			fmt.Fprintf(stderr, "Hint: Set FLATFINDER_CONFIG or pass --config to use a different file\n")
			return err
		}
	}

	if cmd == "run" || cmd == "watch" || cmd == "known" {
		if err := m.openStore(cli, deps); err != nil {
			return err
		}
	}

	if cmd == "run" || cmd == "watch" {
		if err := m.wireNotifier(cli, deps); err != nil {
			fmt.Fprintln(stderr, "Hint: Set TELEGRAM_TOKEN and TELEGRAM_CHAT_ID, or use --dry-run")
			return err
		}
		if err := m.wireFetchers(cli, deps); err != nil {
			fmt.Fprintln(stderr, "Hint: Chrome or Chromium must be installed for sources with render: true")
			return err
		}
	}

	return kongCtx.Run(deps)
}

// loadSources reads the configuration and selects the sources named on the
// command line, or all of them.
func (m *Main) loadSources(cli *CLI, cmd string, deps *Dependencies) error {
	cfg, err := yaml.LoadConfig(cli.Config)
	if err != nil {
		return err
	}
	sources, err := cfg.Sources()
	if err != nil {
		return err
	}

	var names []string
	switch cmd {
	case "run":
		names = cli.Run.Sources
	case "watch":
		names = cli.Watch.Sources
	}
	if deps.Sources, err = selectSources(sources, names); err != nil {
		return err
	}
	deps.Interval = cfg.Interval
	return nil
}

func (m *Main) openStore(cli *CLI, deps *Dependencies) error {
	switch cli.Store {
	case "file":
		store := fs.NewKnownListingService(cli.StoreDir)
		deps.Store = store
		deps.StoredSources = store
	default:
		m.DB = sqlite.NewDB(cli.DB)
		if err := m.DB.Open(); err != nil {
			fmt.Fprintf(deps.Stderr, "Hint: Set FLATFINDER_DB to use a different database path\n")
			return fmt.Errorf("failed to open database at %q: %w", cli.DB, err)
		}
		store := sqlite.NewKnownListingService(m.DB)
		deps.Store = store
		deps.StoredSources = store
		deps.KnownListings = store
	}
	deps.Store = ffslog.NewLoggingKnownListingService(deps.Store, deps.Logger)
	return nil
}

func (m *Main) wireNotifier(cli *CLI, deps *Dependencies) error {
	var notifier flatfinder.Notifier
	if cli.DryRun {
		notifier = NewPrintNotifier(deps.Stdout)
	} else {
		n, err := telegram.NewNotifier(cli.TelegramToken, cli.TelegramChat,
			telegram.WithDisablePreview(cli.NoPreview),
		)
		if err != nil {
			return err
		}
		notifier = n
	}
	deps.Notifier = ffslog.NewLoggingNotifier(notifier, deps.Logger)
	return nil
}

// wireFetchers builds the static fetcher and, only when a selected source
// needs JavaScript, the browser fetcher.
func (m *Main) wireFetchers(cli *CLI, deps *Dependencies) error {
	opts := []ffhttp.Option{
		ffhttp.WithTimeout(cli.Timeout),
		ffhttp.WithLimiter(ffhttp.NewDomainLimiter(cli.RPS)),
	}
	if cli.UserAgent != "" {
		opts = append(opts, ffhttp.WithUserAgent(cli.UserAgent))
	}
	var static flatfinder.Fetcher = ffhttp.NewFetcher(opts...)
	if cli.Verbose {
		static = rod.NewLoggingFetcher(static, deps.Logger)
	}
	deps.Fetcher = ffslog.NewLoggingListingFetcher(
		goquery.NewListingFetcher(static, goquery.WithMaxPages(cli.MaxPages), goquery.WithRetryDelays(goquery.RetryDelays(cli.Retries)...)),
		deps.Logger,
	)

	if !anyRendered(deps.Sources) {
		return nil
	}
	browser, err := rod.NewFetcher(rod.WithFetchTimeout(cli.Timeout))
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}
	m.closers = append(m.closers, browser)

	var rendered flatfinder.Fetcher = browser
	if cli.Verbose {
		rendered = rod.NewLoggingFetcher(browser, deps.Logger)
	}
	deps.RenderFetcher = ffslog.NewLoggingListingFetcher(
		goquery.NewListingFetcher(rendered, goquery.WithMaxPages(cli.MaxPages), goquery.WithRetryDelays(goquery.RetryDelays(cli.Retries)...)),
		deps.Logger,
	)
	return nil
}

// selectSources returns the sources named in names, in the given order,
// or all sources when names is empty.
func selectSources(sources []*flatfinder.Source, names []string) ([]*flatfinder.Source, error) {
	if len(sources) == 0 {
		return nil, flatfinder.Errorf(flatfinder.EINVALID, "no sources configured")
	}
	if len(names) == 0 {
		return sources, nil
	}

	byName := make(map[string]*flatfinder.Source, len(sources))
	for _, s := range sources {
		byName[s.Name] = s
	}
	selected := make([]*flatfinder.Source, 0, len(names))
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, flatfinder.Errorf(flatfinder.ENOTFOUND, "unknown source %q", name)
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		selected = append(selected, s)
	}
	return selected, nil
}

func anyRendered(sources []*flatfinder.Source) bool {
	for _, s := range sources {
		if s.Render {
			return true
		}
	}
	return false
}

func newLogger(w io.Writer, verbose, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}
	if verbose {
		opts.Level = slog.LevelDebug
	}
	if json {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "flatfinder.db"
	}
	return filepath.Join(home, ".flatfinder", "flatfinder.db")
}
