package salus

import (
	"testing"
	"time"

	"github.com/muurk/salus/internal/salus/salustest"
)

const (
	testEmail    = salustest.Email
	testPassword = salustest.Password
	testDeviceID = salustest.DeviceID
	mockValues   = salustest.Values
)

func newFakePortal(t *testing.T) *salustest.Portal {
	return salustest.NewPortal(t)
}

func newPortalClient(t *testing.T, portal *salustest.Portal) *Client {
	t.Helper()
	c, err := NewClient(Credentials{Email: testEmail, Password: testPassword}, testDeviceID, Options{
		BaseURL: portal.URL(),
		Timeout: 2 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}
