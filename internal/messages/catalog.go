// Package messages holds the player-facing chat templates.
//
// A catalog file maps locale tags to key/template tables. The en-US table is the fallback for
// every other locale and is kept complete: keys missing from it are filled with the built-in
// defaults and written back to the file.
package messages

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/pelletier/go-toml/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

var (
	ErrUnknownLocale = errors.New("messages: unknown locale")
	ErrUnknownKey    = errors.New("messages: unknown key")
	ErrFormat        = errors.New("messages: unsupported catalog format")
)

type Key string

const (
	PlayerInfectedCommand      Key = "PLAYER_INFECTED_COMMAND"
	PlayerInfected             Key = "PLAYER_INFECTED"
	PlayerCured                Key = "PLAYER_CURED"
	PlayerProtectionStarts     Key = "PLAYER_PROTECTION_STARTS"
	PlayerProtectionRanOut     Key = "PLAYER_PROTECTION_RAN_OUT"
	ErrorPlayerAlreadyInfected Key = "ERROR_PLAYER_ALREADY_INFECTED"
	ErrorPlayerCantGetInfected Key = "ERROR_PLAYER_CANT_GET_INFECTED"
	ErrorPlayerIsNotInfected   Key = "ERROR_PLAYER_IS_NOT_INFECTED"
)

var defaults = map[Key]string{
	PlayerInfectedCommand:      "&a%target% &ehas been infected!",
	PlayerInfected:             "&a%target% &ehas been infected by &6%player%&e!",
	PlayerCured:                "&eYou are cured from your §ainfection&e!",
	PlayerProtectionStarts:     "&eYou will be protected from infections for &a%time% seconds&e!",
	PlayerProtectionRanOut:     "&cYou are not protected from infections anymore!",
	ErrorPlayerAlreadyInfected: "§cThis player is already infected!",
	ErrorPlayerCantGetInfected: "§cThis player can't get infected!",
	ErrorPlayerIsNotInfected:   "§cThis player is not infected!",
}

// Keys lists every known message key, sorted.
func Keys() []Key {
	return slices.Sorted(maps.Keys(defaults))
}

// Default returns the built-in template for key.
func Default(key Key) (string, bool) {
	tpl, ok := defaults[key]
	return tpl, ok
}

// DefaultLocale is the fallback locale.
var DefaultLocale = language.AmericanEnglish

// Vars fills %name% placeholders.
type Vars map[string]string

// Catalog is safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	path      string
	requested language.Tag
	locale    language.Tag
	templates map[Key]string
}

// New returns a catalog holding the built-in en-US templates.
func New() *Catalog {
	return &Catalog{
		requested: DefaultLocale,
		locale:    DefaultLocale,
		templates: maps.Clone(defaults),
	}
}

// Load reads the catalog at path for the requested locale. A missing file is created with
// the defaults. An empty path yields the built-in catalog.
func Load(path, locale string) (*Catalog, error) {
	c := New()
	if err := c.Configure(path, locale); err != nil {
		return nil, err
	}
	return c, nil
}

// Configure points the catalog at a new file and locale and reloads it. On error the
// catalog keeps its previous templates.
func (c *Catalog) Configure(path, locale string) error {
	tag, err := ParseLocale(locale)
	if err != nil {
		return err
	}
	c.mu.Lock()
	prevPath, prevRequested := c.path, c.requested
	c.path, c.requested = path, tag
	c.mu.Unlock()
	if err := c.Reload(); err != nil {
		c.mu.Lock()
		c.path, c.requested = prevPath, prevRequested
		c.mu.Unlock()
		return err
	}
	if path == "" {
		c.mu.Lock()
		c.locale = DefaultLocale
		c.templates = maps.Clone(defaults)
		c.mu.Unlock()
	}
	return nil
}

// ParseLocale parses a BCP 47 tag; blank means DefaultLocale.
func ParseLocale(raw string) (language.Tag, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultLocale, nil
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return language.Und, fmt.Errorf("%w: %q: %v", ErrUnknownLocale, raw, err)
	}
	return tag, nil
}

// Reload re-reads the catalog file.
func (c *Catalog) Reload() error {
	c.mu.RLock()
	path, requested := c.path, c.requested
	c.mu.RUnlock()
	if path == "" {
		return nil
	}

	tables, err := readTables(path)
	if err != nil {
		return err
	}
	base := DefaultLocale.String()
	fallback := tables[base]
	if fallback == nil {
		fallback = make(map[string]string)
		tables[base] = fallback
	}
	var missing []string
	for _, key := range Keys() {
		if _, ok := fallback[string(key)]; !ok {
			fallback[string(key)] = defaults[key]
			missing = append(missing, string(key))
		}
	}
	if len(missing) > 0 {
		if err := writeTables(path, tables); err != nil {
			return err
		}
		log.Info().Str("path", path).Strs("keys", missing).Msg("messages.Catalog.Reload wrote defaults")
	}

	locale, table := match(tables, requested)
	templates := make(map[Key]string, len(defaults))
	for _, key := range Keys() {
		if tpl, ok := table[string(key)]; ok {
			templates[key] = tpl
			continue
		}
		templates[key] = fallback[string(key)]
	}

	c.mu.Lock()
	c.locale = locale
	c.templates = templates
	c.mu.Unlock()
	log.Debug().Str("path", path).Str("locale", locale.String()).Msg("messages.Catalog.Reload")
	return nil
}

func match(tables map[string]map[string]string, requested language.Tag) (language.Tag, map[string]string) {
	supported := []language.Tag{DefaultLocale}
	names := []string{DefaultLocale.String()}
	for _, name := range slices.Sorted(maps.Keys(tables)) {
		if name == DefaultLocale.String() {
			continue
		}
		tag, err := language.Parse(name)
		if err != nil {
			log.Warn().Str("locale", name).Err(err).Msg("messages.match skipping table")
			continue
		}
		supported = append(supported, tag)
		names = append(names, name)
	}
	_, idx, conf := language.NewMatcher(supported).Match(requested)
	if conf == language.No {
		idx = 0
	}
	return supported[idx], tables[names[idx]]
}

// Locale returns the locale the catalog resolved to.
func (c *Catalog) Locale() language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.locale
}

// Template returns the raw template for key.
func (c *Catalog) Template(key Key) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tpl, ok := c.templates[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownKey, key)
	}
	return tpl, nil
}

// Render colorizes the template for key and fills vars. Unknown keys render as the key.
func (c *Catalog) Render(key Key, vars Vars) string {
	tpl, err := c.Template(key)
	if err != nil {
		return string(key)
	}
	return Fill(Colorize(tpl), vars)
}

// Fill replaces %name% placeholders present in vars.
func Fill(s string, vars Vars) string {
	if len(vars) == 0 {
		return s
	}
	pairs := make([]string, 0, len(vars)*2)
	for _, name := range slices.Sorted(maps.Keys(vars)) {
		pairs = append(pairs, "%"+name+"%", vars[name])
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

const colorCodes = "0123456789AaBbCcDdEeFfKkLlMmNnOoRrXx"

// Colorize turns &-prefixed color codes into §-codes.
func Colorize(s string) string {
	if !strings.Contains(s, "&") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i := 0; i < len(s); i++ {
		if s[i] == '&' && i+1 < len(s) && strings.IndexByte(colorCodes, s[i+1]) >= 0 {
			b.WriteString("§")
			b.WriteByte(toLower(s[i+1]))
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}

type format int

const (
	formatTOML format = iota
	formatYAML
)

func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return formatTOML, nil
	case ".yml", ".yaml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrFormat, path)
	}
}

func readTables(path string) (map[string]map[string]string, error) {
	f, err := formatOf(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("messages load failed (%s): %w", path, err)
	}
	tables := make(map[string]map[string]string)
	switch f {
	case formatYAML:
		err = yaml.Unmarshal(data, &tables)
	default:
		err = toml.Unmarshal(data, &tables)
	}
	if err != nil {
		return nil, fmt.Errorf("messages parse failed (%s): %w", path, err)
	}
	if tables == nil {
		tables = make(map[string]map[string]string)
	}
	return tables, nil
}

func writeTables(path string, tables map[string]map[string]string) error {
	f, err := formatOf(path)
	if err != nil {
		return err
	}
	var data []byte
	switch f {
	case formatYAML:
		data, err = yaml.Marshal(tables)
	default:
		data, err = toml.Marshal(tables)
	}
	if err != nil {
		return fmt.Errorf("messages encode failed (%s): %w", path, err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("messages write failed (%s): %w", path, err)
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("messages write failed (%s): %w", path, err)
	}
	return nil
}
