// Command hash-generator prints bcrypt hashes for seeding users directly in
// the database. Passwords come from the arguments or, one per line, from
// standard input.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/phrazzld/cards-api/internal/domain"
	"github.com/phrazzld/cards-api/internal/service/auth"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("hash-generator", flag.ContinueOnError)
	cost := fs.Int("cost", bcrypt.DefaultCost, "bcrypt cost factor")
	if err := fs.Parse(args); err != nil {
		return err
	}

	passwords := fs.Args()
	if len(passwords) == 0 {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if line := scanner.Text(); line != "" {
				passwords = append(passwords, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read passwords: %w", err)
		}
	}
	if len(passwords) == 0 {
		return fmt.Errorf("no passwords given")
	}

	hasher := auth.NewBcryptVerifier(*cost)
	for _, password := range passwords {
		// Same rules as registration.
		if err := domain.ValidatePassword(password); err != nil {
			return err
		}
		hash, err := hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		if _, err := fmt.Fprintln(out, hash); err != nil {
			return err
		}
	}
	return nil
}
