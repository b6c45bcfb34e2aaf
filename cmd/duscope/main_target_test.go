package main

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestResolveScanTarget(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want scanTarget
	}{
		{"default", nil, scanTarget{LocalPath: "."}},
		{"missing local path", []string{"does-not-exist"}, scanTarget{LocalPath: "does-not-exist"}},
		{"remote home", []string{"alice@10.0.0.5"}, scanTarget{Remote: true, SSHDestination: "alice@10.0.0.5", RemotePath: "."}},
		{"remote path", []string{"alice@10.0.0.5", "/var/log"}, scanTarget{Remote: true, SSHDestination: "alice@10.0.0.5", RemotePath: "/var/log"}},
		{"blank remote path", []string{"alice@host", "  "}, scanTarget{Remote: true, SSHDestination: "alice@host", RemotePath: "."}},
		{"bracketed ipv6", []string{"alice@[::1]"}, scanTarget{Remote: true, SSHDestination: "alice@[::1]", RemotePath: "."}},
		{"bare ipv6", []string{"alice@fe80::1"}, scanTarget{Remote: true, SSHDestination: "alice@fe80::1", RemotePath: "."}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveScanTarget(tt.args)
			if err != nil {
				t.Fatalf("resolveScanTarget(%q): %v", tt.args, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestResolveScanTarget_ExistingLocalPathWins(t *testing.T) {
	localPath := filepath.Join(t.TempDir(), "alice@server")
	if err := os.Mkdir(localPath, 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := resolveScanTarget([]string{localPath})
	if err != nil {
		t.Fatal(err)
	}
	if got.Remote || got.LocalPath != localPath {
		t.Fatalf("got %+v", got)
	}
	if _, err := resolveScanTarget([]string{localPath, "/tmp"}); err == nil {
		t.Fatal("expected error for extra args in local mode")
	}
}

func TestResolveScanTarget_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"host port", []string{"alice@example.com:2222"}, "--ssh-port"},
		{"bracketed host port", []string{"alice@[::1]:2222"}, "--ssh-port"},
		{"unterminated bracket", []string{"alice@[::1"}, "malformed"},
		{"stray bracket", []string{"alice@host]"}, "malformed"},
		{"empty brackets", []string{"alice@[]"}, "empty host"},
		{"empty user", []string{"@host"}, "invalid remote target"},
		{"option-like host", []string{"alice@-oProxyCommand"}, "invalid remote target"},
		{"spaces", []string{"alice@my host"}, "spaces"},
		{"too many remote args", []string{"alice@host", "/a", "/b"}, "too many"},
		{"too many local args", []string{"nope-a", "nope-b"}, "too many"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := resolveScanTarget(tt.args)
			if err == nil {
				t.Fatalf("resolveScanTarget(%q) succeeded", tt.args)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestSplitComma(t *testing.T) {
	got := splitComma(" node_modules, .git ,,*.tmp ")
	want := []string{"node_modules", ".git", "*.tmp"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitComma = %q, want %q", got, want)
	}
	if got := splitComma(""); got != nil {
		t.Errorf("splitComma(\"\") = %q", got)
	}
}

func TestLocalRoot_ResolvesSymlinkedRoot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "real")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	want, err := filepath.EvalSymlinks(dir)
	if err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(t.TempDir(), "link")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	got, err := localRoot(link)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Errorf("localRoot(%s) = %s, want %s", link, got, want)
	}

	if _, err := localRoot(filepath.Join(t.TempDir(), "missing")); err == nil {
		t.Error("missing root accepted")
	}
}
