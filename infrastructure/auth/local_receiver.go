package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	logger "github.com/sirupsen/logrus"
)

const callbackPort = 8976

// LocalReceiver completes the authorization flow with a one-shot localhost
// callback server: the authorization URL is presented to the user, and the
// first matching redirect resolves the wait.
type LocalReceiver struct {
	// Present shows the authorization URL to the user, e.g. by opening the
	// browser. When nil the URL is only logged.
	Present func(authURL string) error
}

type callbackResult struct {
	code string
	err  error
}

func (r *LocalReceiver) RedirectURL() string {
	return fmt.Sprintf("http://127.0.0.1:%d/callback", callbackPort)
}

// ReceiveCode blocks until the provider redirects back with a code for the
// given state, the context is cancelled, or the user denies consent.
func (r *LocalReceiver) ReceiveCode(ctx context.Context, authURL, state string) (string, error) {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", callbackPort))
	if err != nil {
		return "", fmt.Errorf("failed to start callback listener: %w", err)
	}

	results := make(chan callbackResult, 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, req *http.Request) {
		q := req.URL.Query()

		if q.Get("state") != state {
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		if errCode := q.Get("error"); errCode != "" {
			fmt.Fprintln(w, "Sign-in was cancelled. You can close this window.")
			deliver(results, callbackResult{err: ErrAborted})
			return
		}

		fmt.Fprintln(w, "Signed in. You can close this window.")
		deliver(results, callbackResult{code: q.Get("code")})
	})

	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if serveErr := server.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			deliver(results, callbackResult{err: serveErr})
		}
	}()
	defer server.Close()

	logger.Infof("Open the following URL to sign in:\n  %s", authURL)
	if r.Present != nil {
		if presentErr := r.Present(authURL); presentErr != nil {
			logger.Warnf("Could not open the sign-in URL automatically: %v", presentErr)
		}
	}

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case result := <-results:
		return result.code, result.err
	}
}

// deliver resolves the wait on the first invocation only.
func deliver(ch chan<- callbackResult, r callbackResult) {
	select {
	case ch <- r:
	default:
	}
}
