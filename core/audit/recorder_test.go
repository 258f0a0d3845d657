package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	entries []Entry
	err     error
}

func (r *fakeRepo) CreateEntry(_ context.Context, e Entry) (Entry, error) {
	if r.err != nil {
		return Entry{}, r.err
	}
	e.ID = int64(len(r.entries) + 1)
	r.entries = append(r.entries, e)
	return e, nil
}

func (r *fakeRepo) QueryEntries(_ context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit < len(r.entries) {
		return r.entries[:filter.Limit], nil
	}
	return r.entries, nil
}

type fakeLogger struct{ errors []string }

func (l *fakeLogger) Debug(string, ...interface{}) {}
func (l *fakeLogger) Info(string, ...interface{})  {}
func (l *fakeLogger) Warn(string, ...interface{})  {}
func (l *fakeLogger) Error(msg string, _ ...interface{}) {
	l.errors = append(l.errors, msg)
}
func (l *fakeLogger) Fatal(string, ...interface{}) {}

func TestRecorder_Log(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, &fakeLogger{})
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	rec.nowFunc = func() time.Time { return now }

	ctx := WithActor(context.Background(), Actor{Username: "0405", IPAddress: "10.0.0.1", UserAgent: "test"})
	rec.Log(ctx, SchoolUpdated, ResourceSchool, "0405", map[string]string{"name": "old"}, map[string]string{"name": "new"}, "")

	require.Len(t, repo.entries, 1)
	e := repo.entries[0]
	assert.Equal(t, SchoolUpdated, e.Action)
	assert.True(t, e.Success)
	assert.Equal(t, "0405", e.ResourceID.String)
	assert.Equal(t, "0405", e.Username.String)
	assert.Equal(t, "10.0.0.1", e.IPAddress.String)
	assert.False(t, e.UserID.Valid)
	assert.False(t, e.Details.Valid)
	assert.Equal(t, now, e.CreatedAt)

	var newData map[string]string
	require.NoError(t, json.Unmarshal(e.NewData.JSON, &newData))
	assert.Equal(t, "new", newData["name"])
}

func TestRecorder_NilSnapshots(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, &fakeLogger{})

	rec.Log(context.Background(), DraftDeleted, ResourceDraft, "0405", nil, nil, "draft discarded")

	require.Len(t, repo.entries, 1)
	assert.False(t, repo.entries[0].OldData.Valid)
	assert.False(t, repo.entries[0].NewData.Valid)
	assert.Equal(t, "draft discarded", repo.entries[0].Details.String)
}

func TestRecorder_FailingStoreIsSwallowed(t *testing.T) {
	logger := &fakeLogger{}
	rec := NewRecorder(&fakeRepo{err: errors.New("connection refused")}, logger)

	assert.NotPanics(t, func() {
		rec.Log(context.Background(), StudentImported, ResourceStudent, "0405", nil, nil, "")
		rec.Failure(context.Background(), UserLogin, ResourceSession, "0405", errors.New("bad password"))
	})
	assert.Len(t, logger.errors, 2)
}

func TestRecorder_Nil(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.Log(context.Background(), SchoolViewed, ResourceSchool, "0405", nil, nil, "")
		rec.Failure(context.Background(), UserLogin, ResourceSession, "", errors.New("x"))
	})
}

func TestRecorder_QueryDefaultLimit(t *testing.T) {
	repo := &fakeRepo{}
	rec := NewRecorder(repo, &fakeLogger{})
	for i := 0; i < DefaultLimit+5; i++ {
		rec.Log(context.Background(), APIRequest, "", "", nil, nil, "")
	}

	entries, err := rec.Query(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, DefaultLimit)
}

func TestAction_IsValid(t *testing.T) {
	assert.True(t, RegistrationCompleted.IsValid())
	assert.False(t, Action("SCHOOL_EXPLODED").IsValid())
}
