// Package account holds the user and device model of the CLM PRO setup
// flow together with the authentication collaborator the wizard talks to.
//
// Service and MemStore back clm-setup-server. The wizard consumes the
// Authenticator interface, implemented by:
//
//   - client.Client, which speaks to a running server over HTTP
//   - Local, a single in-process session over a Service
//   - Mock, the offline demo login that accepts any credentials
//
// All of them report failures as *Error values carrying an ErrorType so the
// presentation layer can show form-level messages:
//
//	user, err := auth.Login(ctx, account.LoginCredentials{Username: u, Password: p})
//	if account.IsAuthError(err) {
//	    // "Invalid username or password"
//	}
//
// Passwords are hashed with scrypt and stored as "hex(key).hex(salt)". The
// hash never leaves the package in serialised form.
package account
