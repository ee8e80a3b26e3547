package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/nguyengg/sealer"
	"golang.org/x/term"
)

// PasswordEnv is the environment variable that holds the archive password.
const PasswordEnv = "SEALER_PASSWORD"

var errNoPassword = errors.New("no password given: use --password, set " + PasswordEnv + " or run from a terminal")

// prompt reads a line from the terminal without echo.
var prompt = func(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNoPassword
	}

	_, _ = fmt.Fprint(os.Stderr, label)
	b, err := term.ReadPassword(fd)
	_, _ = fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read password error: %w", err)
	}

	return string(b), nil
}

// readPassword returns the flag value if given, then the value of PasswordEnv, then prompts for it.
//
// If confirm is true, the prompt asks for the password twice.
func readPassword(value string, confirm bool) (sealer.Password, error) {
	if value != "" {
		return sealer.Password(value), nil
	}

	if v := os.Getenv(PasswordEnv); v != "" {
		return sealer.Password(v), nil
	}

	p, err := prompt("Password: ")
	if err != nil {
		return "", err
	}
	if p == "" {
		return "", errors.New("password must not be empty")
	}

	if confirm {
		again, err := prompt("Confirm password: ")
		if err != nil {
			return "", err
		}
		if again != p {
			return "", errors.New("passwords do not match")
		}
	}

	return sealer.Password(p), nil
}

type Password struct {
	Count int `short:"n" long:"count" description:"the number of passwords to generate" default:"1"`
}

func (c *Password) Execute(args []string) error {
	if err := checkArgs(args); err != nil {
		return err
	}

	for range max(c.Count, 1) {
		p, err := sealer.GeneratePassword()
		if err != nil {
			return err
		}

		fmt.Println(p)
	}

	return nil
}
