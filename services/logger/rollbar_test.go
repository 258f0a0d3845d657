package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/tests"
)

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), testutil.Config())
	logger.Enable(false)

	actor := audit.Actor{UserID: "12", Username: "0405"}
	logger.Error("saving draft", errors.New("boom"), actor, map[string]interface{}{"schoolCode": "0405"})

	out := buf.String()
	assert.Contains(t, out, "ERROR: saving draft\n")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "actor: 0405")
	assert.Contains(t, out, "map[schoolCode:0405]")
}

func TestRollbarLogger_prepare(t *testing.T) {
	logger := RollbarLogger{std: log.New(&bytes.Buffer{}, "", 0)}
	err := errors.New("boom")

	rArgs, pArgs := logger.prepare("msg", []interface{}{err, audit.Actor{UserID: "1", Username: "admin"}, audit.Actor{UserID: "2"}})
	assert.Equal(t, []interface{}{"msg", err}, rArgs, "actors are not forwarded as extras")
	assert.Len(t, pArgs, 3)
}
