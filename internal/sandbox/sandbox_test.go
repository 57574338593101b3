package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveUnderRootRejectsEscape(t *testing.T) {
	root := t.TempDir()
	if _, err := ResolveUnderRoot(root, "../escape.txt"); err == nil {
		t.Fatal("expected escape to be rejected")
	}
}

func TestResolveUnderRootAcceptsNested(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveUnderRoot(root, "a/b.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(root, "a", "b.txt")
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestResolveUnderRootRewritesSandboxAlias(t *testing.T) {
	root := t.TempDir()
	got, err := ResolveUnderRoot(root, "/sandbox/hello.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := filepath.Join(root, "hello.txt")
	if got != want {
		t.Errorf("got %q want %q", got, want)
	}
}

func TestResolveUnderRootRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "link")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}
	if _, err := ResolveUnderRoot(root, "link/evil.txt"); err == nil {
		t.Fatal("expected symlink escape to be rejected")
	}
}

func TestValidateShellCmdAllowsKnownPrefix(t *testing.T) {
	err := ValidateShellCmd("ls -la", DefaultShellAllowedPrefixes, DefaultShellDenySubstrings)
	if err != nil {
		t.Fatalf("expected ls to be allowed: %v", err)
	}
}

func TestValidateShellCmdRejectsDeniedToken(t *testing.T) {
	err := ValidateShellCmd("echo rm -rf /", DefaultShellAllowedPrefixes, DefaultShellDenySubstrings)
	if err == nil {
		t.Fatal("expected rm token to be denied")
	}
}

func TestValidateShellCmdRejectsMetacharacter(t *testing.T) {
	err := ValidateShellCmd("ls && rm -rf /", DefaultShellAllowedPrefixes, DefaultShellDenySubstrings)
	if err == nil {
		t.Fatal("expected metacharacter to be rejected")
	}
}

func TestValidateShellCmdRejectsDisallowedPrefix(t *testing.T) {
	err := ValidateShellCmd("python3 -c 'print(1)'", []string{"python"}, DefaultShellDenySubstrings)
	if err == nil {
		t.Fatal("expected exact-prefix mismatch to be rejected")
	}
}

func TestAllowsNetDomainSpecific(t *testing.T) {
	if !AllowsNet([]string{"net:example.com"}, "example.com", nil) {
		t.Error("expected domain grant to allow")
	}
}
