package commands

import (
	"fmt"
	"os"

	"github.com/AlecAivazis/survey/v2"
	"github.com/mattn/go-isatty"
)

// promptPassword asks for the password with masked input. Replaced in tests.
var promptPassword = func(message string) (string, error) {
	var password string
	err := survey.AskOne(&survey.Password{Message: message}, &password)
	return password, err
}

// stdinIsTerminal reports whether a human can answer prompts. Replaced in
// tests.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// askPassword prompts when no password was configured and stdin is a
// terminal. Non-interactive runs fall through to passwordless auth.
func askPassword(user, target string) (string, error) {
	if !stdinIsTerminal() {
		return "", nil
	}
	password, err := promptPassword(fmt.Sprintf("Password for %s@%s:", user, target))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return password, nil
}
