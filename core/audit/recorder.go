package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, e Entry) (Entry, error)
		// QueryEntries returns the entries matching every non-empty filter field, newest first.
		QueryEntries(ctx context.Context, filter Filter) ([]Entry, error)
	}

	// Recorder writes audit entries on a best-effort basis: a failing write is logged,
	// never returned to the audited operation.
	Recorder struct {
		repo    Repository
		logger  core.Logger
		nowFunc func() time.Time
	}
)

func NewRecorder(repo Repository, logger core.Logger) *Recorder {
	return &Recorder{repo: repo, logger: logger, nowFunc: time.Now}
}

func (r *Recorder) Record(ctx context.Context, e Entry) {
	if r == nil {
		return
	}
	if actor, ok := ActorFrom(ctx); ok {
		e.UserID = optional(actor.UserID)
		e.Username = optional(actor.Username)
		e.IPAddress = optional(actor.IPAddress)
		e.UserAgent = optional(actor.UserAgent)
		e.SessionID = optional(actor.SessionID)
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.nowFunc().UTC()
	}

	if _, err := r.repo.CreateEntry(ctx, e); err != nil {
		r.logger.Error(fmt.Sprintf("audit: recording %s: %v", e.Action, err), err)
	}
}

// Log records a successful action with its before/after snapshots (either may be nil).
func (r *Recorder) Log(ctx context.Context, action Action, resource, resourceID string, oldData, newData interface{}, details string) {
	if r == nil {
		return
	}
	r.Record(ctx, Entry{
		Action:     action,
		Resource:   optional(resource),
		ResourceID: optional(resourceID),
		OldData:    r.snapshot(action, oldData),
		NewData:    r.snapshot(action, newData),
		Details:    optional(details),
		Success:    true,
	})
}

// Failure records an action that did not go through.
func (r *Recorder) Failure(ctx context.Context, action Action, resource, resourceID string, cause error) {
	if r == nil {
		return
	}
	r.Record(ctx, Entry{
		Action:       action,
		Resource:     optional(resource),
		ResourceID:   optional(resourceID),
		Success:      false,
		ErrorMessage: null.StringFrom(cause.Error()),
	})
}

func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultLimit
	}
	entries, err := r.repo.QueryEntries(ctx, filter)
	return entries, errors.Wrap(err, "querying audit entries")
}

func (f *Filter) Validate(validate *validator.Validate) error {
	f.Action = core.CleanString(f.Action)
	f.UserID = core.CleanString(f.UserID)
	f.Resource = core.CleanString(f.Resource)
	var extra []core.FieldError
	if f.Action != "" && !Action(f.Action).IsValid() {
		extra = append(extra, core.FieldError{Path: "action", Message: "unknown action"})
	}
	return core.CheckStruct(validate, f, extra...)
}

func (r *Recorder) snapshot(action Action, v interface{}) null.JSON {
	if v == nil {
		return null.JSON{}
	}
	data, err := json.Marshal(v)
	if err != nil {
		r.logger.Warn(fmt.Sprintf("audit: encoding %s snapshot: %v", action, err), err)
		return null.JSON{}
	}
	return null.JSONFrom(data)
}

func optional(s string) null.String {
	return null.NewString(s, s != "")
}
