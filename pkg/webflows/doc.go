/*
Package webflows logs users in to Schibsted account with the OAuth 2.0
Authorization Code flow and PKCE, and keeps their sessions alive.

# Logging in

Create a Client for your registered client and ask it for a login URL. Open
the URL in a browser; the identity provider redirects back to the client's
redirect URI, and the query of that redirect completes the login:

	client := webflows.NewClient(config, webflows.ClientOptions{Store: kv})

	loginURL, err := client.LoginURL(ctx, domain.AuthRequest{})
	// ... user logs in, browser hits the redirect URI ...
	user, err := client.HandleAuthenticationResponse(ctx, redirectQuery)

Login failures are always *LoginError. Use errors.Is with the predefined
sentinels to tell them apart:

	if errors.Is(err, webflows.ErrCancelledByUser) { ... }

# Sessions

A successful login is persisted, and the next process start picks it up:

	user, err := client.ResumeLastLoggedInUser(ctx) // nil, nil when logged out

Sessions written by the legacy SDK are migrated on first resume when
ClientOptions.LegacyClientID is set.

# Authenticated requests

User.HTTPClient and User.MakeAuthenticatedRequest attach the access token to
each request. When the server answers 401 the tokens are refreshed, at most
once at a time per user, and the request is retried once. A refresh token
the server no longer accepts logs the user out.

# Observing the login state

AuthResultObserver wraps a Client and exposes the current login state as an
either.Either of NotAuthed and *User, with subscriptions for changes.
*/
package webflows
