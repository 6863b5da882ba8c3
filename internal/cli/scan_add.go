package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/mrlokans/flashshelf/internal/backend"
	"github.com/mrlokans/flashshelf/internal/config"
	"github.com/mrlokans/flashshelf/internal/database"
	"github.com/mrlokans/flashshelf/internal/entities"
	"github.com/mrlokans/flashshelf/internal/metadata"
	"github.com/mrlokans/flashshelf/internal/remote"
	"github.com/mrlokans/flashshelf/internal/scanner"
	"github.com/mrlokans/flashshelf/internal/tags"
)

// ScanAddCommand reads barcodes from stdin (a USB scanner types the digits
// followed by Enter), takes the first ISBN-13, looks it up and inserts the book.
type ScanAddCommand struct {
	DatabasePath string
	Timeout      time.Duration
	DryRun       bool

	in        io.Reader
	out       io.Writer
	provider  metadata.Provider
	suggester tags.Suggester
	store     remote.BookStore
}

func NewScanAddCommand() *ScanAddCommand {
	return &ScanAddCommand{in: os.Stdin, out: os.Stdout}
}

func (cmd *ScanAddCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("scan-add", flag.ContinueOnError)

	fs.StringVar(&cmd.DatabasePath, "db", "", "Database file for the local backend (default: DATABASE_PATH)")
	fs.DurationVar(&cmd.Timeout, "timeout", 0, "Give up waiting for a barcode after this long (0 waits forever)")
	fs.BoolVar(&cmd.DryRun, "dry-run", false, "Look the book up but do not insert it")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s scan-add [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Read barcodes from stdin until an ISBN-13 (978/979) arrives, look it up\n")
		fmt.Fprintf(os.Stderr, "and add the book to the configured backend.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	return fs.Parse(args)
}

func (cmd *ScanAddCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if cmd.provider == nil || (cmd.store == nil && !cmd.DryRun) {
		cfg := config.NewConfig()
		if cmd.DatabasePath != "" {
			cfg.Database.Path = cmd.DatabasePath
		}
		cleanup, err := cmd.configure(cfg)
		if err != nil {
			return err
		}
		defer cleanup()
	}

	return cmd.run(ctx)
}

// configure opens the backend and lookup chain described by cfg.
func (cmd *ScanAddCommand) configure(cfg *config.Config) (func(), error) {
	cleanup := func() {}
	if cmd.provider == nil {
		cmd.provider = metadata.NewDefaultChain(cfg.Metadata)
	}
	if cmd.suggester == nil {
		cmd.suggester = tags.NewSuggester(cfg.Tags)
	}
	if cmd.store != nil || cmd.DryRun {
		return cleanup, nil
	}

	if err := cfg.Validate(); err != nil && !errors.Is(err, config.ErrMissingPasscode) {
		return cleanup, err
	}

	var db *database.Database
	if cfg.Backend.Kind == config.BackendLocal {
		var err error
		db, err = database.NewDatabase(cfg.Database.Path)
		if err != nil {
			return cleanup, fmt.Errorf("failed to open database: %w", err)
		}
		cleanup = func() { _ = db.Close() }
	}

	b, err := backend.Open(cfg, db)
	if err != nil {
		cleanup()
		return func() {}, err
	}
	cmd.store = b.Store
	return cleanup, nil
}

func (cmd *ScanAddCommand) run(ctx context.Context) error {
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	fmt.Fprintln(cmd.out, "Waiting for a barcode...")
	isbn, err := scanner.Scan(ctx, scanner.NewLineSource(cmd.in))
	if err != nil {
		if errors.Is(err, scanner.ErrNoCode) {
			return fmt.Errorf("no ISBN barcode received")
		}
		return err
	}
	fmt.Fprintf(cmd.out, "ISBN:   %s\n", isbn)

	result, err := cmd.provider.LookupISBN(ctx, isbn)
	if errors.Is(err, metadata.ErrNotFound) {
		return fmt.Errorf("no book found for ISBN %s", isbn)
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	book := entities.NewBook{
		ISBN:     isbn,
		Title:    result.Title,
		CoverURL: result.CoverURL,
		Tags:     append([]string{}, result.Categories...),
	}
	if tags.ShouldSuggest(result.Categories, cmd.suggester) {
		if suggested, err := cmd.suggester.SuggestTags(ctx, result.Title); err == nil {
			book.Tags = suggested
		} else {
			fmt.Fprintf(os.Stderr, "Warning: tag suggestion failed: %v\n", err)
		}
	}

	fmt.Fprintf(cmd.out, "Title:  %s\n", book.Title)
	fmt.Fprintf(cmd.out, "Tags:   %s\n", strings.Join(book.Tags, ", "))

	if cmd.DryRun {
		fmt.Fprintln(cmd.out, "DRY RUN - not saved")
		return nil
	}
	if err := cmd.store.Insert(ctx, book); err != nil {
		return fmt.Errorf("failed to save book: %w", err)
	}
	fmt.Fprintln(cmd.out, "Saved.")
	return nil
}
