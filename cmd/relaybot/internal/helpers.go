package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/tinyland-inc/relaybot/pkg/config"
)

var (
	version   = "dev"
	gitCommit string
)

func GetVersion() string {
	return version
}

func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".relaybot", "config.json")
}

func LoadConfig() (*config.Config, error) {
	return config.LoadConfig(GetConfigPath())
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}
