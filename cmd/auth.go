package main

import (
	"context"
	"fmt"
	"time"

	"github.com/desertthunder/soundwave/internal/auth"
	"github.com/desertthunder/soundwave/internal/shared"
	"github.com/urfave/cli/v3"
)

const authTimeout = 2 * time.Minute

// AuthLogin runs the authorization code flow with PKCE.
//
// Starts a local HTTP server on the configured redirect URI, opens the
// browser for user consent, and waits for the callback to deliver tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.newFlow()
	if err != nil {
		return fmt.Errorf("%w: set spotify.client_id in %s", err, r.configPath)
	}

	authURL, err := flow.Begin()
	if err != nil {
		return fmt.Errorf("failed to start authorization: %w", err)
	}

	callback, err := auth.NewCallbackServer(flow, r.config.Spotify.RedirectURI)
	if err != nil {
		return fmt.Errorf("failed to start callback server: %w", err)
	}
	callback.Start()

	r.writePlain("→ Opening browser for Spotify authorization...\n")
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warnf("failed to open browser automatically %v", err)
		r.writePlainln("⚠ Could not open browser automatically.")
		r.writePlain("Please open this URL in your browser:\n%s\n\n", authURL)
	}

	r.writePlain("→ Waiting for authorization (2 minute timeout)...\n")

	waitCtx, cancel := context.WithTimeout(ctx, authTimeout)
	defer cancel()

	token, err := callback.Wait(waitCtx)
	if err != nil {
		return fmt.Errorf("authorization failed: %w", err)
	}

	r.logger.Info("authorization complete", "expiry", token.Expiry)

	r.writePlainln("✓ Authorization successful")
	r.writePlain("✓ Tokens saved to %s\n\n", r.stateDir())
	r.writePlain("You can now use: soundwave play\n")

	return nil
}

// AuthStatus shows whether a usable token is stored.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.newFlow()
	if err != nil {
		return fmt.Errorf("%w: set spotify.client_id in %s", err, r.configPath)
	}

	tokens := flow.Tokens()
	token, err := tokens.Token()
	if err != nil {
		return r.writePlain("Authentication: ✗ Not authenticated\nRun 'soundwave auth login' to connect Spotify.\n")
	}

	if tokens.Valid() {
		r.writePlain("Authentication: ✓ Authenticated\n")
	} else {
		r.writePlain("Authentication: ⚠ Token expired (will refresh on next use)\n")
	}
	if !token.Expiry.IsZero() {
		r.writePlain("Expires: %s\n", token.Expiry.Format(time.RFC1123))
	}
	return nil
}

// AuthLogout discards stored tokens.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	flow, err := r.newFlow()
	if err != nil {
		return fmt.Errorf("%w: set spotify.client_id in %s", err, r.configPath)
	}

	flow.Invalidate()
	r.logger.Info("stored tokens discarded")
	return r.writePlain("✓ Logged out\n")
}
