package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

const minPasswordLen = 6

// prompter reads answers from a terminal. Passwords are read without echo
// when stdin is a TTY and as a plain line otherwise, so piped input works
// in scripts.
type prompter struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

func newPrompter() *prompter {
	return &prompter{in: bufio.NewReader(os.Stdin), out: os.Stdout, fd: int(os.Stdin.Fd())}
}

func (p *prompter) line(label string) (string, error) {
	fmt.Fprintf(p.out, "%s: ", label)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		return "", err
	}
	return strings.TrimSpace(s), nil
}

func (p *prompter) required(label string) (string, error) {
	s, err := p.line(label)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(label))
	}
	return s, nil
}

func (p *prompter) password(label string) (string, error) {
	if !term.IsTerminal(p.fd) {
		return p.line(label)
	}
	fmt.Fprintf(p.out, "%s: ", label)
	b, err := term.ReadPassword(p.fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(b), nil
}

// newPassword asks twice and enforces the minimum length.
func (p *prompter) newPassword() (string, error) {
	pw, err := p.password("Password")
	if err != nil {
		return "", err
	}
	if len(pw) < minPasswordLen {
		return "", fmt.Errorf("password must be at least %d characters", minPasswordLen)
	}
	if term.IsTerminal(p.fd) {
		again, err := p.password("Confirm password")
		if err != nil {
			return "", err
		}
		if again != pw {
			return "", errors.New("passwords do not match")
		}
	}
	return pw, nil
}

// valueOr returns the flag value, prompting when it was left empty.
func (p *prompter) valueOr(flag, label string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	return p.required(label)
}
