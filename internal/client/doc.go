// Package client is the HTTP side of the wizard's account collaborator.
//
// A Client keeps the clm-setup-server session in a cookie jar and
// implements account.Authenticator, so the terminal wizard can run against
// a live server:
//
//	c, err := client.New("http://localhost:5000")
//	user, err := c.Login(ctx, account.LoginCredentials{Username: u, Password: p})
//
// GET requests retry with exponential backoff on transport failures and 5xx
// answers. Mutating requests are sent once. Server answers other than 2xx
// come back as *APIError, which unwraps to the matching *account.Error.
// Transport failures are classified into *Error values with
// troubleshooting hints.
package client
