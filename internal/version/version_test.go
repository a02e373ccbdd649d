package version

import (
	"strings"
	"testing"
)

func TestVersionPopulated(t *testing.T) {
	if Version == "" {
		t.Error("Version should never be empty after init")
	}
	if Commit == "" {
		t.Error("Commit should never be empty after init")
	}
	if !strings.Contains(Full(), Version) || !strings.Contains(Full(), Commit) {
		t.Errorf("Full() = %q", Full())
	}
}

func TestUserAgent(t *testing.T) {
	if got := UserAgent(); got != "salus-go/"+Version {
		t.Errorf("UserAgent() = %q", got)
	}
}
