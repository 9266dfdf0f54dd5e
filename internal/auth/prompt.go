package auth

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// PromptSource obtains the request token by asking the user to complete
// the login in any browser and paste the token back. Used on headless
// hosts where a local callback listener is unreachable.
type PromptSource struct {
	In  io.Reader
	Out io.Writer
}

// Obtain prints the login URL and reads one line from In. The redirect
// lands on a dead page in this mode; the user copies request_token from
// the redirected URL's query string.
func (p *PromptSource) Obtain(ctx context.Context, loginURL string) (string, error) {
	fmt.Fprintf(p.Out, "Open this URL in a browser and log in:\n\n  %s\n\nPaste the request_token from the redirect URL: ", loginURL)

	lineCh := make(chan string, 1)
	errCh := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(p.In)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				errCh <- err
				return
			}
			errCh <- io.EOF
			return
		}
		lineCh <- strings.TrimSpace(scanner.Text())
	}()

	select {
	case line := <-lineCh:
		if line == "" {
			return "", fmt.Errorf("empty request token")
		}
		return line, nil
	case err := <-errCh:
		return "", fmt.Errorf("reading request token: %w", err)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
