package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/mwopitz/anylist-daemon/internal/config"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// runProbe runs the root command with a subcommand that captures the
// configuration seen by subcommands.
func runProbe(t *testing.T, args ...string) (config.Config, error) {
	t.Helper()
	conf := config.New()
	var seen config.Config
	cmd := NewAnylistDaemonCommand(conf)
	cmd.Commands = append(cmd.Commands, &cli.Command{
		Name: "probe",
		Action: func(context.Context, *cli.Command) error {
			seen = *conf
			return nil
		},
	})
	err := cmd.Run(context.Background(), append([]string{"anylist-daemon"}, args...))
	return seen, err
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	envFile := writeFile(t, dir, ".env", "ANYLIST_CLI_TEST_PASSWORD=secret\n")
	t.Cleanup(func() { _ = os.Unsetenv("ANYLIST_CLI_TEST_PASSWORD") })
	confFile := writeFile(t, dir, "config.yaml", `
sock_file: /tmp/from-yaml.sock
entry:
  email: me@example.com
  password: ${ANYLIST_CLI_TEST_PASSWORD}
options:
  default_list: Groceries
`)

	conf, err := runProbe(t, "--config", confFile, "--env-file", envFile, "probe")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-yaml.sock", conf.SockFile)
	assert.Equal(t, "me@example.com", conf.Entry.Email)
	assert.Equal(t, "secret", conf.Entry.Password)
	assert.Equal(t, "Groceries", conf.Options.DefaultList)
	assert.Equal(t, config.DefaultRefreshInterval, conf.Options.RefreshInterval)
}

func TestLoadConfigFlagOverridesFile(t *testing.T) {
	dir := t.TempDir()
	confFile := writeFile(t, dir, "config.yaml", "sock_file: /tmp/from-yaml.sock\n")

	_, err := runProbe(t, "--config", confFile, "--sock", "/tmp/from-flag.sock",
		"--env-file", filepath.Join(dir, "none.env"), "probe")
	require.Error(t, err, "an explicitly named env file must exist")

	conf, err := runProbe(t, "--config", confFile, "--sock", "/tmp/from-flag.sock", "probe")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/from-flag.sock", conf.SockFile)
}

func TestLoadConfigMissingExplicitFile(t *testing.T) {
	_, err := runProbe(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "probe")
	assert.Error(t, err)
}
