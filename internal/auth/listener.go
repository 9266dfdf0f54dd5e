package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os/exec"
	"runtime"
	"time"
)

const successPage = `<!DOCTYPE html>
<html>
<head><title>Login Successful</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>Login successful</h2>
<p>You can close this tab and return to the application.</p>
</body>
</html>`

const failurePage = `<!DOCTYPE html>
<html>
<head><title>Login Failed</title></head>
<body style="font-family: sans-serif; text-align: center; padding-top: 4em;">
<h2>Login failed</h2>
<p>No request token was present in the redirect. Please retry the login.</p>
</body>
</html>`

// CallbackListener captures the request token from the broker's redirect
// by running a short-lived local HTTP server on the redirect URI's
// host:port. The listener is bound per Obtain call and torn down on every
// exit path, so a later flow can reuse the same port.
type CallbackListener struct {
	redirectURI string
	openBrowser bool
	log         *slog.Logger

	// Ready, when set, is called with the bound listen address once the
	// server is accepting connections.
	Ready func(addr string)
}

// NewCallbackListener creates a listener for the given redirect URI,
// e.g. "http://127.0.0.1:5000/callback". When openBrowser is set the
// login URL is also handed to the platform browser.
func NewCallbackListener(redirectURI string, openBrowser bool, log *slog.Logger) *CallbackListener {
	return &CallbackListener{redirectURI: redirectURI, openBrowser: openBrowser, log: log}
}

// Obtain binds the local server, points the user at the login URL, and
// waits for the redirect carrying request_token. Returns ctx.Err() when
// the wait is cancelled or times out.
func (l *CallbackListener) Obtain(ctx context.Context, loginURL string) (string, error) {
	u, err := url.Parse(l.redirectURI)
	if err != nil {
		return "", fmt.Errorf("parsing redirect URI %q: %w", l.redirectURI, err)
	}
	callbackPath := u.Path
	if callbackPath == "" {
		callbackPath = "/"
	}

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return "", fmt.Errorf("binding callback listener on %s: %w", u.Host, err)
	}

	tokenCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+callbackPath, func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("request_token")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if token == "" {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, failurePage)
			return
		}
		fmt.Fprint(w, successPage)
		select {
		case tokenCh <- token:
		default:
		}
	})

	srv := &http.Server{Handler: mux}
	go srv.Serve(ln)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	addr := ln.Addr().String()
	l.log.Info("waiting for login redirect", "addr", addr, "path", callbackPath)
	if l.Ready != nil {
		l.Ready(addr)
	}
	if l.openBrowser {
		if err := openInBrowser(loginURL); err != nil {
			l.log.Warn("could not open browser, open the login URL manually", "error", err)
		}
	}

	select {
	case token := <-tokenCh:
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func openInBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return exec.Command("xdg-open", target).Start()
	}
}
