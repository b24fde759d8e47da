package observability

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLoggerWritesEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	require.NoError(t, InitAuditLogger(path))
	t.Cleanup(func() { _ = GetAuditLogger().Close() })

	ctx := context.Background()
	RecordToolAudit(ctx, "calculator", "sess-1", "success", nil)
	RecordGraphAudit(ctx, "assistant", "sess-1", "failure", map[string]interface{}{"error": "boom"})
	RecordSessionAudit(ctx, "session_created", "sess-1", nil)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "execute:calculator")
	assert.Contains(t, content, "invoke:assistant")
	assert.Contains(t, content, `"status":"failure"`)
	assert.Contains(t, content, "session_created")
}
