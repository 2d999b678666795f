package remote

import (
	"reflect"
	"strings"
	"testing"
)

func TestQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"simple", "simple"},
		{"/var/www/html", "/var/www/html"},
		{"user@host", "user@host"},
		{"a-b_c.d=e:f,g+h", "a-b_c.d=e:f,g+h"},
		{"", "''"},
		{"has space", "'has space'"},
		{"semi;colon", "'semi;colon'"},
		{"$(rm -rf /)", `'$(rm -rf /)'`},
		{"don't", `'don'\''t'`},
		{"`backtick`", "'`backtick`'"},
		{"a\nb", "'a\nb'"},
	}
	for _, tt := range tests {
		if got := Quote(tt.in); got != tt.want {
			t.Errorf("Quote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScriptFailFast(t *testing.T) {
	got := NewScript().
		Step("chown", "chown", "deploy:deploy", "/srv/app").
		Step("chmod", "chmod", "755", "/srv/app").
		String()

	want := "set -e\n" +
		"echo '::step chown'\n" +
		"chown deploy:deploy /srv/app\n" +
		"echo '::step chmod'\n" +
		"chmod 755 /srv/app\n"
	if got != want {
		t.Errorf("script = %q, want %q", got, want)
	}
}

func TestScriptQuotesStepArgs(t *testing.T) {
	got := NewScript().Step("mkdir", "mkdir", "-p", "/srv/my app").String()
	if !strings.Contains(got, "mkdir -p '/srv/my app'") {
		t.Errorf("unsafe argument not quoted:\n%s", got)
	}
}

func TestProbeScriptNeverFails(t *testing.T) {
	got := NewProbeScript().Raw("[ -d /nope ] && echo found").String()
	if strings.Contains(got, "set -e") {
		t.Error("probe script must not be fail-fast")
	}
	if !strings.HasSuffix(got, "true\n") {
		t.Errorf("probe script must end with true, got %q", got)
	}
}

func TestMarkers(t *testing.T) {
	tests := []struct {
		name   string
		stdout string
		want   []string
	}{
		{"none", "plain output\n", nil},
		{"ordered", "::step one\nout\n::step two\n", []string{"one", "two"}},
		{"indented", "  ::step padded\n", []string{"padded"}},
		{"empty", "", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := markers(tt.stdout); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("markers(%q) = %v, want %v", tt.stdout, got, tt.want)
			}
		})
	}
}
