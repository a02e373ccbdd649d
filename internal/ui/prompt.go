package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var promptStyle = lipgloss.NewStyle().
	Foreground(PrimaryColor).
	Bold(true)

// PromptLine prints label and reads one line from in.
func PromptLine(in io.Reader, label string) (string, error) {
	fmt.Print(promptStyle.Render(label + ": "))

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		fmt.Println()
		return "", fmt.Errorf("failed to read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(line), nil
}

// PromptPassword reads a password from the terminal without echo.
// When stdin is not a terminal the first line of stdin is used.
func PromptPassword(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Print(promptStyle.Render(label + ": "))
	pw, err := term.ReadPassword(fd)
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
