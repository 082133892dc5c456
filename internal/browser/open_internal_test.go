package browser

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOpen_RejectsNonWebURLs(t *testing.T) {
	for _, raw := range []string{"", "file:///etc/passwd", "javascript:alert(1)", "http://", "::"} {
		require.Error(t, Open(raw), raw)
	}
}

func TestCommand(t *testing.T) {
	cmd, err := command("linux", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, []string{"xdg-open", "https://example.com"}, cmd.Args)

	cmd, err = command("windows", "https://example.com")
	require.NoError(t, err)
	require.Equal(t, "rundll32", cmd.Args[0])

	_, err = command("plan9", "https://example.com")
	require.ErrorContains(t, err, "unsupported OS")
}
