// Package client is an authenticated REST client that keeps a bearer
// session alive.
//
// Every request carries the stored access token as
// "Authorization: Bearer <token>". A request that fails authentication,
// either with status 401 or with {"code":401} inside a 2xx body, triggers a
// credential refresh. However many requests fail at the same time, the
// client sends exactly one refresh call; the others queue behind it. When
// the refresh succeeds the new pair is stored and every queued request is
// replayed once. When it fails the store is cleared, every queued request
// gets the same *RefreshError and the session-ended signal fires once.
//
// A replay that fails authentication again is returned as *AuthError and
// never triggers another refresh.
//
//	store := credential.NewFileStore(path)
//	c, err := client.New(client.Config{BaseURL: "https://api.example.com"}, store,
//	    client.WithSessionEndedHandler(func(ctx context.Context, err error) {
//	        // send the user back to login
//	    }))
//	if _, err := c.Login(ctx, map[string]string{"username": u, "password": p}); err != nil {
//	    return err
//	}
//	resp, err := c.Get(ctx, "/profile", nil)
//	if errors.Is(err, client.ErrSessionEnded) {
//	    // log in again
//	}
package client
