package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSuspiciousExitCode(t *testing.T) {
	dir := t.TempDir()
	var content bytes.Buffer
	for i := 0; i < 6; i++ {
		content.WriteString(`[2024-03-15 08:00:00] [WARNING] Login failed {"ip_address":"198.51.100.4"}` + "\n")
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2024-03-15.log"), content.Bytes(), 0o600))

	out, err := run(t, "--dir", dir, "suspicious", "--date", "2024-03-15")
	require.Equal(t, exitError{code: 10}, err)
	require.Contains(t, out, "198.51.100.4")

	_, err = run(t, "--dir", dir, "suspicious", "--date", "2024-03-14")
	require.NoError(t, err)
}

func TestRolesCommandText(t *testing.T) {
	out, err := run(t, "roles")
	require.NoError(t, err)
	require.Contains(t, out, "vendedor_sistema")
}

func TestRolesPermissionFlag(t *testing.T) {
	out, err := run(t, "roles", "--permission", "manage_settlements")
	require.NoError(t, err)
	require.Contains(t, out, "liquidador")
	require.NotContains(t, out, "vendedor_sistema")

	_, err = run(t, "roles", "--permission", "nope")
	require.Equal(t, exitError{code: 1}, err)
}
