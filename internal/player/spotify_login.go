package player

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
)

// SpotifyLogin runs the authorization code flow against a local callback
// server and saves the resulting token. PKCE is used when the config has no
// client secret. openURL is handed the URL the user must visit.
func SpotifyLogin(ctx context.Context, cfg SpotifyConfig, openURL func(string)) (*oauth2.Token, error) {
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("spotify: client id required")
	}
	redirect := cfg.RedirectURL
	if redirect == "" {
		redirect = DefaultSpotifyRedirectURL
	}
	u, err := url.Parse(redirect)
	if err != nil {
		return nil, fmt.Errorf("invalid redirect url: %w", err)
	}

	auth := cfg.Authenticator()
	state, err := randomState()
	if err != nil {
		return nil, err
	}

	var authOpts, exchangeOpts []oauth2.AuthCodeOption
	if cfg.ClientSecret == "" {
		verifier := oauth2.GenerateVerifier()
		authOpts = append(authOpts, oauth2.S256ChallengeOption(verifier))
		exchangeOpts = append(exchangeOpts, oauth2.VerifierOption(verifier))
	}

	type result struct {
		tok *oauth2.Token
		err error
	}
	done := make(chan result, 1)

	mux := http.NewServeMux()
	mux.HandleFunc(u.Path, func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.Token(r.Context(), state, r, exchangeOpts...)
		if err != nil {
			http.Error(w, "Authentication failed", http.StatusForbidden)
			select {
			case done <- result{err: fmt.Errorf("failed to exchange code: %w", err)}:
			default:
			}
			return
		}
		fmt.Fprintln(w, "Authenticated with Spotify. You can close this window.")
		select {
		case done <- result{tok: tok}:
		default:
		}
	})

	ln, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", u.Host, err)
	}
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(ln) }()
	defer func() { _ = srv.Close() }()

	openURL(auth.AuthURL(state, authOpts...))

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		if cfg.TokenPath != "" {
			if err := SaveToken(cfg.TokenPath, res.tok); err != nil {
				return nil, err
			}
		}
		return res.tok, nil
	}
}

func randomState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", errors.New("failed to generate oauth state")
	}
	return hex.EncodeToString(b), nil
}
