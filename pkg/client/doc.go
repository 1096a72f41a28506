// Package client is the Go SDK for the donationcore HTTP API.
//
// It covers the donor login flow (request and verify a one-time code), order
// creation, payment verification and receipt download.
//
// # Logging in
//
//	c := client.MustNew("https://donate.example.org")
//	sent, err := c.SendOTP(ctx, "+919876543210")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	session, err := c.VerifyOTP(ctx, sent.PhoneNumber, code)
//
// VerifyOTP stores the returned session token on the client so later calls
// are authenticated.
//
// # Errors
//
// Non-2xx responses are returned as *APIError. Use errors.As to inspect the
// machine-readable Code and, for throttled requests, RetryAfter:
//
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) && apiErr.Code == "rate_limited" {
//	    time.Sleep(apiErr.RetryAfter)
//	}
//
// # Payments
//
// After checkout completes, pass the gateway callback fields to
// VerifyPayment. Calling it again for the same payment ID is safe; the
// stored receipt comes back with AlreadyProcessed set.
package client
