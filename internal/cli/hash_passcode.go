package cli

import (
	"flag"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/bcrypt"

	"github.com/mrlokans/flashshelf/internal/auth"
)

// HashPasscodeCommand prints a bcrypt hash for PASSCODE_HASH.
type HashPasscodeCommand struct {
	Passcode string
	Cost     int

	out io.Writer
}

func NewHashPasscodeCommand() *HashPasscodeCommand {
	return &HashPasscodeCommand{out: os.Stdout}
}

func (cmd *HashPasscodeCommand) ParseFlags(args []string) error {
	fs := flag.NewFlagSet("hash-passcode", flag.ContinueOnError)

	fs.StringVar(&cmd.Passcode, "passcode", "", "Passcode to hash (required)")
	fs.IntVar(&cmd.Cost, "cost", bcrypt.DefaultCost, "bcrypt cost factor")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s hash-passcode -passcode <passcode> [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Print a bcrypt hash to use as PASSCODE_HASH instead of a plain PASSCODE.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if cmd.Passcode == "" {
		return fmt.Errorf("required flag -passcode not provided")
	}
	if cmd.Cost < bcrypt.MinCost || cmd.Cost > bcrypt.MaxCost {
		return fmt.Errorf("cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return nil
}

func (cmd *HashPasscodeCommand) Run() error {
	hash, err := auth.HashPasscode(cmd.Passcode, cmd.Cost)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.out, hash)
	return nil
}
