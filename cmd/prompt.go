package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/desertthunder/fixity/internal/shared"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// PromptFunc asks the user for a secret. ok is false when no one can answer.
type PromptFunc func(label string) (value string, ok bool, err error)

// terminalPrompt reads a password from stdin without echo. It declines when stdin is not a terminal.
func terminalPrompt(label string) (string, bool, error) {
	fd := os.Stdin.Fd()
	if !isatty.IsTerminal(fd) {
		return "", false, nil
	}

	fmt.Fprint(os.Stderr, label)
	secret, err := term.ReadPassword(int(fd))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", false, fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(string(secret)), true, nil
}

// ensurePassword prompts for the repository password when a username is configured without one.
func (r *Runner) ensurePassword(config *shared.Config) error {
	fc := &config.Fedora
	if fc.Token != "" || fc.Username == "" || fc.Password != "" {
		return nil
	}

	password, ok, err := r.prompt(fmt.Sprintf("Password for %s at %s: ", fc.Username, fc.BaseURL))
	if err != nil {
		return err
	}
	if !ok {
		r.logger.Warn("no password configured and stdin is not a terminal, continuing without one", "user", fc.Username)
		return nil
	}
	if password == "" {
		return fmt.Errorf("%w: empty password for %s", shared.ErrMissingCredentials, fc.Username)
	}
	fc.Password = password
	return nil
}
