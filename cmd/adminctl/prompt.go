package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// secretReader prompts for hidden input on a terminal and falls back to plain
// line reads when stdin is piped.
type secretReader struct {
	cmd *cobra.Command
	buf *bufio.Reader
}

func newSecretReader(cmd *cobra.Command) *secretReader {
	return &secretReader{cmd: cmd, buf: bufio.NewReader(cmd.InOrStdin())}
}

func (r *secretReader) read(label string) (string, error) {
	out := r.cmd.ErrOrStderr()
	fmt.Fprintf(out, "%s: ", label)

	if f, ok := r.cmd.InOrStdin().(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
		}
		return string(b), nil
	}

	line, err := r.buf.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	fmt.Fprintln(out)
	return strings.TrimRight(line, "\r\n"), nil
}

// readConfirmed reads a secret twice and requires both entries to match.
func (r *secretReader) readConfirmed(label string) (string, error) {
	first, err := r.read(label)
	if err != nil {
		return "", err
	}
	second, err := r.read("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", fmt.Errorf("%s entries do not match", strings.ToLower(label))
	}
	return first, nil
}
