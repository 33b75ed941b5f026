package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := New(&buf, slog.LevelWarn)
	logger.Info("dropped")
	logger.Warn("chargeback clamped at zero balance", "account_id", "u1")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec), "exactly one JSON record expected: %s", buf.String())
	require.Equal(t, "WARN", rec["level"])
	require.Equal(t, serviceName, rec["service"])
	require.Equal(t, "u1", rec["account_id"])
}
