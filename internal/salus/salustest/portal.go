// Package salustest provides a fake Salus vendor portal for tests.
package salustest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/muurk/salus/internal/urls"
)

// Credentials and device accepted by the fake portal
const (
	Email    = "user@example.com"
	Password = "hunter2"
	DeviceID = "STA00012345"
)

// Values is a device values payload: setpoint 21.0, room 19.5, frost 10.0,
// relay on, heating enabled.
const Values = `{"CH1currentSetPoint":"21.0","CH1currentRoomTemp":"19.5","frost":"10.0","CH1heatOnOffStatus":"1","CH1heatOnOff":"0"}`

// Portal mimics the vendor portal: a login form that sets a cookie, a
// control page carrying the token, the values endpoint and set.php.
//
// Behaviour fields may be changed before the first request.
type Portal struct {
	t      *testing.T
	Server *httptest.Server

	// Tokens handed out by each successive login
	Tokens []string
	// ValueBody answers the n-th values call (1-based)
	ValueBody func(call int) (int, string)
	// SetStatus is the HTTP status returned by set.php
	SetStatus int
	// ControlHTML renders the control page for a token
	ControlHTML func(token string) string
	// ControlStatus, when non-zero, replaces the control page with this status
	ControlStatus int
	LoginDelay    time.Duration
	RejectLogin   bool

	Logins     atomic.Int64
	ValueCalls atomic.Int64

	mu         sync.Mutex
	setForms   []url.Values
	valueQuery []url.Values
	userAgents []string
}

// NewPortal starts a fake portal that is closed when the test ends
func NewPortal(t *testing.T) *Portal {
	t.Helper()
	p := &Portal{
		t:      t,
		Tokens: []string{"tok-1", "tok-2", "tok-3"},
		ValueBody: func(int) (int, string) {
			return http.StatusOK, Values
		},
		SetStatus: http.StatusOK,
		ControlHTML: func(token string) string {
			return fmt.Sprintf(`<form><input id="token" type="hidden" value="%s" /></form>`, token)
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(urls.Login, p.handleLogin)
	mux.HandleFunc(urls.Control, p.handleControl)
	mux.HandleFunc(urls.DeviceValues, p.handleValues)
	mux.HandleFunc(urls.Set, p.handleSet)

	p.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		p.userAgents = append(p.userAgents, r.UserAgent())
		p.mu.Unlock()
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(p.Server.Close)
	return p
}

// URL is the portal base URL
func (p *Portal) URL() string {
	return p.Server.URL
}

// SetRequests returns the forms posted to set.php so far
func (p *Portal) SetRequests() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.setForms...)
}

// Queries returns the query strings of the values calls so far
func (p *Portal) Queries() []url.Values {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]url.Values(nil), p.valueQuery...)
}

// UserAgents returns the User-Agent header of every request so far
func (p *Portal) UserAgents() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.userAgents...)
}

func (p *Portal) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte(`<form action="login.php"></form>`))
		return
	}
	if p.LoginDelay > 0 {
		time.Sleep(p.LoginDelay)
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n := p.Logins.Add(1)
	if p.RejectLogin || r.PostForm.Get("IDemail") != Email || r.PostForm.Get("password") != Password {
		_, _ = w.Write([]byte("<p>bad login</p>"))
		return
	}
	if r.PostForm.Get("login") != "Login" || r.PostForm.Get("keep_logged_in") != "1" {
		p.t.Errorf("login form = %v", r.PostForm)
	}
	http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: fmt.Sprintf("sess-%d", n), Path: "/"})
	w.WriteHeader(http.StatusOK)
}

func (p *Portal) handleControl(w http.ResponseWriter, r *http.Request) {
	if _, err := r.Cookie("PHPSESSID"); err != nil {
		http.Redirect(w, r, urls.Login, http.StatusFound)
		return
	}
	if p.ControlStatus != 0 {
		w.WriteHeader(p.ControlStatus)
		return
	}
	if r.URL.Query().Get("devId") != DeviceID {
		p.t.Errorf("control devId = %q", r.URL.Query().Get("devId"))
	}
	n := int(p.Logins.Load())
	token := p.Tokens[(n-1)%len(p.Tokens)]
	_, _ = w.Write([]byte(p.ControlHTML(token)))
}

func (p *Portal) handleValues(w http.ResponseWriter, r *http.Request) {
	n := int(p.ValueCalls.Add(1))
	p.mu.Lock()
	p.valueQuery = append(p.valueQuery, r.URL.Query())
	p.mu.Unlock()
	status, body := p.ValueBody(n)
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (p *Portal) handleSet(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		p.t.Errorf("set.php method = %s, want POST", r.Method)
	}
	if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
		p.t.Errorf("set.php Content-Type = %q", ct)
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	p.mu.Lock()
	p.setForms = append(p.setForms, r.PostForm)
	p.mu.Unlock()
	w.WriteHeader(p.SetStatus)
}
