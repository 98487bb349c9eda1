package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/Sternrassler/whoop-cli/pkg/oauth"
)

// LoginOptions configure Login.
type LoginOptions struct {
	ClientID     string
	ClientSecret string

	// Out receives the progress messages.
	Out io.Writer

	// OpenBrowser opens the authorize URL. Failures are ignored since the
	// URL is printed as well. Optional.
	OpenBrowser func(authorizeURL string) error

	// ReadCallbackURL switches to manual login: instead of listening on the
	// redirect uri, the user pastes the redirected URL.
	ReadCallbackURL func() (string, error)
}

// Login runs the authorization-code flow and saves the resulting credential.
// A redirect uri with port 0 listens on a free port.
func (a *App) Login(ctx context.Context, opts LoginOptions) error {
	clientID := strings.TrimSpace(opts.ClientID)
	clientSecret := strings.TrimSpace(opts.ClientSecret)
	if clientID == "" || clientSecret == "" {
		return errors.New("Missing client credentials.")
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}

	state, err := oauth.GenerateState()
	if err != nil {
		return err
	}

	redirectURI := a.cfg.RedirectURI
	var callback *oauth.CallbackServer
	if opts.ReadCallbackURL == nil {
		callback, err = oauth.Listen(oauth.CallbackOptions{
			RedirectURI:   redirectURI,
			ExpectedState: state,
		})
		if err != nil {
			return err
		}
		redirectURI = boundRedirectURI(redirectURI, callback.Addr())
	}

	authorizeURL, err := oauth.AuthorizeURL(oauth.AuthorizeParams{
		AuthURL:     a.cfg.AuthURL,
		ClientID:    clientID,
		RedirectURI: redirectURI,
		State:       state,
		Scope:       oauth.DefaultScope,
	})
	if err != nil {
		if callback != nil {
			_, _ = callback.Wait(canceled())
		}
		return err
	}

	var code string
	if callback != nil {
		fmt.Fprintln(out, "Opening browser for WHOOP login...")
		if opts.OpenBrowser != nil {
			if err := opts.OpenBrowser(authorizeURL); err != nil {
				a.logger.Debug().Err(err).Msg("Could not open browser")
			}
		}
		fmt.Fprintf(out, "If the browser does not open, use this URL:\n%s\n", authorizeURL)

		if code, err = callback.Wait(ctx); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "Open this URL in a browser and approve access:\n%s\n", authorizeURL)
		fmt.Fprintln(out, "Then paste the full URL you were redirected to.")

		pasted, err := opts.ReadCallbackURL()
		if err != nil {
			return fmt.Errorf("read callback url: %w", err)
		}
		if code, err = oauth.ParseCallbackURL(strings.TrimSpace(pasted), redirectURI, state); err != nil {
			return err
		}
	}

	tok, err := a.exchanger.ExchangeCode(ctx, code, clientID, clientSecret, redirectURI)
	if err != nil {
		return err
	}

	cred, err := a.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	cred.ClientID = clientID
	cred.ClientSecret = clientSecret
	cred.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cred.RefreshToken = tok.RefreshToken
	}

	if err := a.store.Save(ctx, cred); err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	a.logger.Info().Str("store", a.store.Location()).Msg("Credential saved")

	fmt.Fprintln(out, "Login successful.")
	return nil
}

// boundRedirectURI replaces port 0 in redirectURI with the port actually bound.
func boundRedirectURI(redirectURI, addr string) string {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Port() != "0" {
		return redirectURI
	}
	u.Host = addr
	return u.String()
}

func canceled() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	return ctx
}
