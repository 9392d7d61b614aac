package messages

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banarnia/infected/internal/testutil/testlog"
	"github.com/pelletier/go-toml/v2"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

func TestRenderColorizesAndFills(t *testing.T) {
	testlog.Start(t)
	c := New()
	got := c.Render(PlayerInfected, Vars{"target": "Alex", "player": "Steve"})
	want := "§aAlex §ehas been infected by §6Steve§e!"
	if got != want {
		t.Fatalf("unexpected render: %q want %q", got, want)
	}
	got = c.Render(PlayerProtectionStarts, Vars{"time": "30"})
	if !strings.Contains(got, "§a30 seconds") {
		t.Fatalf("unexpected protection message: %q", got)
	}
	if got := c.Render(Key("NOPE"), nil); got != "NOPE" {
		t.Fatalf("unexpected unknown key render: %q", got)
	}
}

func TestColorizeLeavesNonCodesAlone(t *testing.T) {
	cases := map[string]string{
		"&Aloud":       "§aloud",
		"fish & chips": "fish & chips",
		"trailing&":    "trailing&",
		"&z&r":         "&z§r",
	}
	for in, want := range cases {
		if got := Colorize(in); got != want {
			t.Fatalf("Colorize(%q) = %q want %q", in, got, want)
		}
	}
}

func TestLoadCreatesMissingFileWithDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "messages.toml")
	c, err := Load(path, "")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if c.Locale() != language.AmericanEnglish {
		t.Fatalf("unexpected locale: %s", c.Locale())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected catalog written: %v", err)
	}
	var tables map[string]map[string]string
	if err := toml.Unmarshal(data, &tables); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if len(tables["en-US"]) != len(Keys()) {
		t.Fatalf("unexpected written keys: %v", tables["en-US"])
	}
}

func TestLoadKeepsOverridesAndWritesBackMissingKeys(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "messages.yml")
	seed := "en-US:\n  PLAYER_CURED: \"&bhealed\"\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	c, err := Load(path, "en-US")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if got := c.Render(PlayerCured, nil); got != "§bhealed" {
		t.Fatalf("unexpected override: %q", got)
	}

	data, _ := os.ReadFile(path)
	var tables map[string]map[string]string
	if err := yaml.Unmarshal(data, &tables); err != nil {
		t.Fatalf("unexpected decode error: %v", err)
	}
	if tables["en-US"]["PLAYER_CURED"] != "&bhealed" {
		t.Fatalf("override lost on write back: %v", tables["en-US"])
	}
	if tables["en-US"][string(ErrorPlayerIsNotInfected)] != defaults[ErrorPlayerIsNotInfected] {
		t.Fatalf("missing key not written back: %v", tables["en-US"])
	}
}

func TestLoadMatchesLocaleWithPerKeyFallback(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "messages.toml")
	seed := "[de-DE]\nPLAYER_CURED = \"&eDu bist geheilt!\"\n"
	if err := os.WriteFile(path, []byte(seed), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}

	c, err := Load(path, "de")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if c.Locale().String() != "de-DE" {
		t.Fatalf("unexpected locale: %s", c.Locale())
	}
	if got := c.Render(PlayerCured, nil); got != "§eDu bist geheilt!" {
		t.Fatalf("unexpected localized message: %q", got)
	}
	if got := c.Render(ErrorPlayerIsNotInfected, nil); got != "§cThis player is not infected!" {
		t.Fatalf("expected en-US fallback, got %q", got)
	}

	other, err := Load(path, "ja")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if other.Locale() != language.AmericanEnglish {
		t.Fatalf("expected fallback locale, got %s", other.Locale())
	}
}

func TestLoadRejectsBadInput(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "m.toml"), "not a locale!"); !errors.Is(err, ErrUnknownLocale) {
		t.Fatalf("expected ErrUnknownLocale, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "m.json"), ""); !errors.Is(err, ErrFormat) {
		t.Fatalf("expected ErrFormat, got %v", err)
	}
	bad := filepath.Join(dir, "bad.toml")
	if err := os.WriteFile(bad, []byte("[en-US\n"), 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if _, err := Load(bad, ""); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestReloadPicksUpEdits(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "messages.toml")
	c, err := Load(path, "")
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	tables := map[string]map[string]string{"en-US": {}}
	for _, k := range Keys() {
		tables["en-US"][string(k)] = defaults[k]
	}
	tables["en-US"][string(PlayerProtectionRanOut)] = "&4exposed"
	data, err := toml.Marshal(tables)
	if err != nil {
		t.Fatalf("unexpected encode error: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	if err := c.Reload(); err != nil {
		t.Fatalf("unexpected reload error: %v", err)
	}
	if got := c.Render(PlayerProtectionRanOut, nil); got != "§4exposed" {
		t.Fatalf("unexpected reloaded message: %q", got)
	}
}
