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

	"github.com/mrlokans/flashshelf/internal/config"
	"github.com/mrlokans/flashshelf/internal/metadata"
	"github.com/mrlokans/flashshelf/internal/tags"
)

// LookupCommand resolves an ISBN the same way the add-book form does and
// prints what it found.
type LookupCommand struct {
	ISBN    string
	Suggest bool

	provider  metadata.Provider
	suggester tags.Suggester
	out       io.Writer
}

func NewLookupCommand() *LookupCommand {
	return &LookupCommand{out: os.Stdout}
}

func (cmd *LookupCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("lookup", flag.ContinueOnError)

	fs.StringVar(&cmd.ISBN, "isbn", "", "ISBN to look up (required)")
	fs.BoolVar(&cmd.Suggest, "suggest", true, "Ask the tag suggester when no categories are found")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s lookup -isbn <isbn> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Look up book metadata via openBD and Google Books.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n")
		fmt.Fprintf(os.Stderr, "  %s lookup -isbn 9784167158057\n", os.Args[0])
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if strings.TrimSpace(cmd.ISBN) == "" {
		return fmt.Errorf("required flag -isbn not provided")
	}
	return nil
}

// configure fills unset collaborators from the environment.
func (cmd *LookupCommand) configure(cfg *config.Config) {
	if cmd.provider == nil {
		cmd.provider = metadata.NewDefaultChain(cfg.Metadata)
	}
	if cmd.suggester == nil && cmd.Suggest {
		cmd.suggester = tags.NewSuggester(cfg.Tags)
	}
}

func (cmd *LookupCommand) Run() error {
	cmd.configure(config.NewConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := cmd.provider.LookupISBN(ctx, cmd.ISBN)
	if errors.Is(err, metadata.ErrNotFound) {
		return fmt.Errorf("no book found for ISBN %s", cmd.ISBN)
	}
	if err != nil {
		return fmt.Errorf("lookup failed: %w", err)
	}

	fmt.Fprintf(cmd.out, "Title:  %s\n", result.Title)
	fmt.Fprintf(cmd.out, "Cover:  %s\n", result.CoverURL)
	fmt.Fprintf(cmd.out, "Source: %s\n", result.Source)
	if len(result.Categories) > 0 {
		fmt.Fprintf(cmd.out, "Tags:   %s\n", metadata.JoinCategories(result.Categories))
		return nil
	}

	if cmd.Suggest && tags.ShouldSuggest(result.Categories, cmd.suggester) {
		suggested, err := cmd.suggester.SuggestTags(ctx, result.Title)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: tag suggestion failed: %v\n", err)
			return nil
		}
		fmt.Fprintf(cmd.out, "Tags:   %s (suggested)\n", strings.Join(suggested, ", "))
	}
	return nil
}
