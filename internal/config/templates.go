package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "bridge", "":
		return bridgeTemplate, nil
	case "simulate":
		return simulateTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
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

const bridgeTemplate = `# lightweight HPS-to-FPGA bridge window
device = "/dev/mem"
base = 0xFF200000
span = 0x1000

poll_interval = "10ms"
ack_poll_interval = "1ms"
ack_warn_after = "30s"

# writes CMD_STATUS (0x18) before CMD_DONE; host firmware must expect it
report_status = false

tools_dir = "/opt/creator"
admin_addr = ""
admin_token = ""
cors_origins = []

[tools.sprite]
command = "python3 /opt/creator/creator_cli.py sprite --generate \"Random Sprite\" --output /tmp/sprite.bin --format bin"

[tools.sid]
argv = ["python3", "/opt/creator/creator_cli.py", "sid", "--compose", "Demo Sound", "--output", "/tmp/sound.asm"]
`

const simulateTemplate = `# Runs against an in-process window. Raise commands with
#   curl -X POST http://127.0.0.1:9180/simulate/command -d '{"command":"sprite","addr":"0xC000"}'
simulate = true
span = 0x1000
poll_interval = "10ms"
ack_poll_interval = "1ms"
ack_warn_after = "5s"
report_status = false
tools_dir = ".."
admin_addr = "127.0.0.1:9180"
cors_origins = ["http://localhost:3000"]
`
