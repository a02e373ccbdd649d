package urls

// DefaultBaseURL is the vendor portal that hosts the iT500 web control pages.
const DefaultBaseURL = "https://salus-it500.com"

// Vendor endpoints, relative to the base URL. None of these are a documented
// API; they are the paths the portal's own web pages use.

// Login accepts the account form (IDemail, password) and sets the session cookie.
const Login = "/public/login.php"

// Control is the per-device HTML control page carrying the hidden session token.
const Control = "/public/control.php"

// DeviceValues returns the device readings as JSON.
const DeviceValues = "/public/ajax_device_values.php"

// Set accepts URL-encoded command forms.
const Set = "/includes/set.php"

// Feed paths served by salus-server.
const (
	FeedWebSocket   = "/ws"
	FeedState       = "/api/state"
	FeedTemperature = "/api/temperature"
	FeedMode        = "/api/mode"
	FeedMetrics     = "/metrics"
)

// mDNS service under which salus-server advertises its feed.
const (
	FeedServiceType   = "_salus-feed._tcp"
	FeedServiceDomain = "local."
)
