package pattern_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/strataos/installer/internal/pattern"
)

func TestMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"anything", "*", true},
		{"app-debug.apk", "*.apk", true},
		{"app-debug.apk", "*debug*", true},
		{"test.txt", "*.apk", false},
		{"system-bridge-v2.zip", "system-*", true},
		{"system-bridge-v2.zip", "system-*.zip", true},
		{"system-bridge-v2.tar", "system-*.zip", false},
		{"exact-name.bin", "exact-name.bin", true},
		{"exact-name.bin", "other-name.bin", false},
		{"", "*", true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pattern.Match(tt.name, tt.pattern),
			"Match(%q, %q)", tt.name, tt.pattern)
	}
}

// Asset matching is case-sensitive while APK matching folds case. The split
// is deliberate and must not be unified.
func TestMatch_CaseSensitive(t *testing.T) {
	t.Parallel()

	assert.False(t, pattern.Match("App-Debug.apk", "*debug*"))
	assert.True(t, pattern.MatchFold("App-Debug.apk", "*debug*"))
}

func TestMatchFold(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		want    bool
	}{
		{"anything", "*", true},
		{"app-debug.apk", "*DEBUG*", true},
		{"Test.APK", "*.apk", true},
		{"test.txt", "*.apk", false},
		{"Launcher.apk", "launcher*", true},
		{"launcher.apk", "LAUNCHER.APK", true},
		{"launcher.apk", "settings.apk", false},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, pattern.MatchFold(tt.name, tt.pattern),
			"MatchFold(%q, %q)", tt.name, tt.pattern)
	}
}

// MatchFold treats "prefix*suffix" as a literal rather than a wildcard; only
// Match supports that form.
func TestMatchFold_NoPrefixSuffixForm(t *testing.T) {
	t.Parallel()

	assert.True(t, pattern.Match("system-bridge.apk", "system*.apk"))
	assert.False(t, pattern.MatchFold("system-bridge.apk", "system*.apk"))
}
