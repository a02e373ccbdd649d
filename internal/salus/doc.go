// Package salus is a client for Salus iT500 thermostats behind the vendor's
// web portal.
//
// The portal has no API. A session is established by posting the login form,
// opening the device control page and scraping a hidden token from its HTML.
// Device values come from an ajax endpoint as string-encoded JSON; commands
// are URL-encoded forms posted to set.php.
//
// # Session handling
//
// The token has no declared lifetime and the portal gives no explicit signal
// when it expires: the values endpoint simply stops returning the expected
// JSON. FetchState therefore treats any failure as a possible expiry,
// invalidates the token and retries exactly once.
//
// Concurrent callers never log in twice: EnsureToken collapses them onto a
// single in-flight login.
//
// # Usage Example
//
//	client, err := salus.NewClient(salus.Credentials{Email: email, Password: pw}, "STA00012345", salus.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	state, err := client.FetchState(ctx)
//	if err != nil {
//	    log.Fatal(salus.GetShortErrorMessage(err))
//	}
//	fmt.Println(state)
//
//	if err := client.SetTargetTemperature(ctx, 21.5); err != nil {
//	    log.Fatal(err)
//	}
//
// # Vendor quirks
//
// The mode flag is inverted in both directions: CH1heatOnOff "1" means OFF,
// and SetMode posts auto=1 to switch heating off. The relay status flag is not
// inverted. Both are reproduced as-is.
//
// # Error Handling
//
// Operations return *AuthError, *DecodeError or *ClientError. Use KindOf,
// IsAuthError and IsDecodeError to inspect them; errors.As works through
// the wrapped chain.
package salus
