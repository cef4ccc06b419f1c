package version

import "testing"

func TestString(t *testing.T) {
	oldVersion, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldVersion, oldSHA, oldTime })

	Version, GitSHA, BuildTime = "1.2.0", "abc1234", "2024-06-01T10:00:00Z"
	if got, want := String(), "1.2.0 (git abc1234, built 2024-06-01T10:00:00Z)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
