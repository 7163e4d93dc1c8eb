package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/exec"
	"runtime"
	"time"

	"go.uber.org/zap"

	"github.com/arenvik/mailpilot/internal/api"
	"github.com/arenvik/mailpilot/internal/models"
	"github.com/arenvik/mailpilot/internal/session"
)

// Flow drives the login handshake: fetch the provider authorization URL from
// the backend, catch the redirect on a loopback listener, exchange the code
// through the backend, and hand the identity to the session store.
//
// The provider exchange itself happens server-side; the client only ever
// sees the authorization code.
type Flow struct {
	client      *api.Client
	store       *session.Store
	addr        string
	openBrowser bool
	logger      *zap.Logger
}

func NewFlow(client *api.Client, store *session.Store, addr string, openBrowser bool, logger *zap.Logger) *Flow {
	return &Flow{
		client:      client,
		store:       store,
		addr:        addr,
		openBrowser: openBrowser,
		logger:      logger,
	}
}

// Run executes the whole flow and blocks until the user is authenticated,
// the context is cancelled, or the handshake fails.
func (f *Flow) Run(ctx context.Context) (*models.User, error) {
	authURL, state, err := f.client.LoginURL(ctx)
	if err != nil {
		return nil, err
	}

	codeCh := make(chan string, 1)
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing authorization code", http.StatusBadRequest)
			return
		}
		if got := r.URL.Query().Get("state"); got != "" && got != state {
			f.logger.Warn("Rejecting redirect with mismatched state",
				zap.String("got", got))
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, "Authorization successful! You can close this window.")
		select {
		case codeCh <- code:
		default:
		}
	})

	srv := &http.Server{Addr: f.addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutCtx)
	}()

	fmt.Printf("Open the following link in your browser to sign in:\n%s\n", authURL)
	if f.openBrowser {
		if err := openBrowser(authURL); err != nil {
			f.logger.Debug("Could not open browser", zap.Error(err))
		}
	}

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return nil, &api.AuthError{Detail: "Login listener failed: " + err.Error(), Err: err}
	case <-ctx.Done():
		return nil, &api.AuthError{Detail: "Login cancelled", Err: ctx.Err()}
	}

	user, err := f.client.ExchangeCode(ctx, code)
	if err != nil {
		return nil, err
	}

	f.store.SetUser(user)
	f.logger.Info("Authenticated",
		zap.String("user_id", user.ID),
		zap.String("email", user.Email))
	return user, nil
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
