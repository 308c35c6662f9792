package version

import (
	"strings"
	"testing"
)

func TestInfo_String(t *testing.T) {
	tests := []struct {
		info Info
		want string
	}{
		{Info{Version: "dev"}, "dev"},
		{Info{Version: "1.2.0", Commit: "abc1234"}, "1.2.0-abc1234"},
		{Info{Version: "1.2.0", Commit: "abc1234", Dirty: true}, "1.2.0-abc1234-dirty"},
	}
	for _, tc := range tests {
		if got := tc.info.String(); got != tc.want {
			t.Errorf("expected %q, got %q", tc.want, got)
		}
	}
}

func TestInfo_IsRelease(t *testing.T) {
	tests := []struct {
		info Info
		want bool
	}{
		{Info{Version: "dev"}, false},
		{Info{Version: "1.2.0"}, true},
		{Info{Version: "1.2.0", Dirty: true}, false},
		{Info{Version: "1.2.0-dirty"}, false},
	}
	for _, tc := range tests {
		if got := tc.info.IsRelease(); got != tc.want {
			t.Errorf("%+v: expected %v, got %v", tc.info, tc.want, got)
		}
	}
}

func TestGet_UsesLinkerValues(t *testing.T) {
	origVersion, origCommit := Version, Commit
	defer func() { Version, Commit = origVersion, origCommit }()

	Version, Commit = "2.0.0", "0123456789abcdef"
	info := Get()
	if info.Version != "2.0.0" {
		t.Errorf("expected version 2.0.0, got %q", info.Version)
	}
	if info.Commit != "0123456" {
		t.Errorf("expected commit shortened to 7, got %q", info.Commit)
	}
	if !strings.HasPrefix(Short(), "2.0.0-0123456") {
		t.Errorf("unexpected short version %q", Short())
	}
}
