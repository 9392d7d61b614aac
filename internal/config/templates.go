package config

import (
	"fmt"
	"os"
	"strings"
)

// Template returns a commented default config in the given format (toml or yaml).
func Template(format string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "toml":
		return tomlTemplate, nil
	case "yaml", "yml":
		return yamlTemplate, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
}

func WriteTemplate(path, format string, overwrite bool) error {
	template, err := Template(format)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const tomlTemplate = `infection_time_seconds = 60
protection_time_seconds = 30
infection_check_time_ticks = 20
infection_radius = 5.0
infection_while_in_air = false
glow_enabled = true
tick_duration = "50ms"
heartbeat_interval = "30s"

admin_listen_addr = "127.0.0.1:7020"
# bearer token for the player and reload routes; empty leaves them open
admin_token = ""
# serve the admin API over TLS when both are set
admin_tls_cert_file = ""
admin_tls_key_file = ""
cors_origins = ["http://localhost:3000"]

locale = "en-US"
messages_path = "messages.toml"

[[effects]]
type = "blindness"
amplifier = 2

[[effects]]
type = "wither"
amplifier = 2
`

const yamlTemplate = `infection-time-seconds: 60
effects:
  0:
    type: BLINDNESS
    amplifier: 2
  1:
    type: WITHER
    amplifier: 2
infection-radius: 5.0
protection-time-seconds: 30
infection-check-time-ticks: 20
infection-while-in-air: false
glow-enabled: true
tick-duration: 50ms
heartbeat-interval: 30s
admin-listen-addr: 127.0.0.1:7020
admin-token: ""
admin-tls-cert-file: ""
admin-tls-key-file: ""
cors-origins:
  - http://localhost:3000
locale: en-US
messages-path: messages.yml
`
