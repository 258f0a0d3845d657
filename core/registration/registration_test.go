package registration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/storage/database/inmem"
	"github.com/pblportal/registry/tests"
)

type mailbox struct {
	mu       sync.Mutex
	messages []*core.EmailMessage
}

func (m *mailbox) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range messages {
		_ = msg.Render()
		m.messages = append(m.messages, msg)
	}
}

type env struct {
	svc    *registration.Service
	repo   registration.Repository
	audits audit.Repository
	mail   *mailbox
}

func setup(t *testing.T) env {
	db := inmemdb.Open()
	repo := inmemdb.NewRegistrationRepository(db)
	audits := inmemdb.NewAuditRepository(db)
	logger := &testutil.Logger{}
	mail := &mailbox{}
	svc := registration.NewService(repo, audit.NewRecorder(audits, logger), mail, logger, testutil.Config())
	return env{svc: svc, repo: repo, audits: audits, mail: mail}
}

func sPtr(s string) *string { return &s }
func iPtr(i int) *int       { return &i }
func bPtr(b bool) *bool     { return &b }

func newDraft(code, name string) registration.NewSchool {
	return registration.NewSchool{
		SchoolCode: code,
		SchoolName: name,
		SchoolDetails: registration.SchoolDetails{
			PrincipalName:  sPtr("Ayesha Khan"),
			PrincipalEmail: sPtr("principal@school.test"),
			GradeIV:        iPtr(12),
			GradeVI:        iPtr(7),
		},
	}
}

func saveCompleteDraft(t *testing.T, e env, code string, disclaimer bool) {
	ctx := context.Background()
	_, err := e.svc.SaveDraftSchool(ctx, newDraft(code, "Green Valley School"))
	require.NoError(t, err)
	_, err = e.svc.SaveDraftResources(ctx, registration.NewResources{
		SchoolCode:     code,
		ResourcesInput: registration.ResourcesInput{PrimaryTeachers: iPtr(4), Facilities: []string{"library", "lab"}},
	})
	require.NoError(t, err)
	_, err = e.svc.SaveDraftFees(ctx, registration.NewFees{
		SchoolCode: code,
		FeesInput: registration.FeesInput{
			PaymentInput:       fees.PaymentInput{PaymentMethod: sPtr(fees.MethodCheque), ChequeNumber: sPtr("CHQ-1")},
			DisclaimerAccepted: bPtr(disclaimer),
		},
	})
	require.NoError(t, err)
}

func TestService_SaveDraftSchool_Upsert(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	first, err := e.svc.SaveDraftSchool(ctx, newDraft("0405", "Green Valley"))
	require.NoError(t, err)
	assert.Equal(t, registration.StatusDraft, first.Status)
	assert.Equal(t, 12, first.GradeIV)

	e.svc.SetNowFunc(func() time.Time { return first.CreatedAt.Add(time.Minute) })
	second := newDraft("0405", "Green Valley High")
	second.GradeIV = nil
	_, err = e.svc.SaveDraftSchool(ctx, second)
	require.NoError(t, err)

	got, err := e.svc.GetDraftSchool(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, "Green Valley High", got.SchoolName)
	assert.Equal(t, 0, got.GradeIV, "the second call's fields win")
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))

	drafts, err := e.svc.QueryDraftSchools(ctx)
	require.NoError(t, err)
	assert.Len(t, drafts, 1)

	entries, err := e.audits.QueryEntries(ctx, audit.Filter{Resource: audit.ResourceDraft, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, audit.DraftUpdated, entries[0].Action)
	assert.Equal(t, audit.DraftCreated, entries[1].Action)
}

func TestService_SaveDraftFees_Upsert(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	_, err := e.svc.SaveDraftSchool(ctx, newDraft("0405", "Green Valley"))
	require.NoError(t, err)

	f, err := e.svc.SaveDraftFees(ctx, registration.NewFees{SchoolCode: "0405"})
	require.NoError(t, err)
	assert.Equal(t, "20000.00", f.Amount)
	assert.False(t, f.DisclaimerAccepted)

	_, err = e.svc.SaveDraftFees(ctx, registration.NewFees{
		SchoolCode: "0405",
		FeesInput: registration.FeesInput{
			PaymentInput: fees.PaymentInput{
				PaymentMethod:     sPtr(fees.MethodDeposit),
				ChequeNumber:      sPtr("CHQ-1"),
				DepositSlipNumber: sPtr("SLIP-9"),
			},
			DisclaimerAccepted: bPtr(true),
		},
	})
	require.NoError(t, err)

	got, err := e.svc.GetDraftFees(ctx, "0405")
	require.NoError(t, err)
	assert.True(t, got.DisclaimerAccepted)
	assert.Equal(t, "SLIP-9", got.DepositSlipNumber.String)
	assert.False(t, got.ChequeNumber.Valid, "cheque fields are cleared for deposits")
}

func TestService_SaveDraftResources_RequiresDraft(t *testing.T) {
	e := setup(t)
	_, err := e.svc.SaveDraftResources(context.Background(), registration.NewResources{SchoolCode: "0405"})
	assert.Equal(t, registration.ErrDraftNotFound, errors.Cause(err))
}

func TestService_SaveDraftSchool_AlreadyRegistered(t *testing.T) {
	e := setup(t)
	testutil.CreateSchool(t, e.repo, "0405", "Green Valley", registration.StatusFinal)

	_, err := e.svc.SaveDraftSchool(context.Background(), newDraft("0405", "Green Valley"))
	assert.True(t, core.IsPrecondition(err))
}

func TestService_Complete_Preconditions(t *testing.T) {
	tests := []struct {
		name    string
		prepare func(t *testing.T, e env)
	}{
		{name: "no draft", prepare: func(t *testing.T, e env) {}},
		{
			name: "no fees",
			prepare: func(t *testing.T, e env) {
				_, err := e.svc.SaveDraftSchool(context.Background(), newDraft("0405", "Green Valley"))
				require.NoError(t, err)
			},
		},
		{
			name:    "disclaimer not accepted",
			prepare: func(t *testing.T, e env) { saveCompleteDraft(t, e, "0405", false) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			ctx := context.Background()
			tt.prepare(t, e)
			draftsBefore, err := e.svc.QueryDraftSchools(ctx)
			require.NoError(t, err)

			_, err = e.svc.Complete(ctx, "0405")
			require.Error(t, err)
			assert.True(t, core.IsPrecondition(err), "got %v", err)

			_, err = e.svc.GetSchool(ctx, "0405")
			assert.True(t, core.IsNotFound(err))
			_, err = e.svc.GetResources(ctx, "0405")
			assert.True(t, core.IsNotFound(err))
			_, err = e.svc.GetFees(ctx, "0405")
			assert.True(t, core.IsNotFound(err))
			_, err = e.svc.GetCredentials(ctx, "0405")
			assert.True(t, core.IsNotFound(err))

			draftsAfter, err := e.svc.QueryDraftSchools(ctx)
			require.NoError(t, err)
			assert.Equal(t, draftsBefore, draftsAfter, "drafts are untouched")
		})
	}
}

func TestService_Complete(t *testing.T) {
	defer registration.SetGenerateSecretFunc(func() (string, error) { return "ONE-TIME-SECRET", nil })()

	e := setup(t)
	ctx := context.Background()
	saveCompleteDraft(t, e, "0405", true)

	school, err := e.svc.Complete(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, registration.StatusFinal, school.Status)
	assert.True(t, school.IsActive)
	assert.True(t, school.RegistrationCompletedAt.Valid)

	got, err := e.svc.GetSchool(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, "Green Valley School", got.SchoolName)

	res, err := e.svc.GetResources(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, 4, res.PrimaryTeachers.Int)
	f, err := e.svc.GetFees(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, "CHQ-1", f.ChequeNumber.String)

	creds, err := e.svc.GetCredentials(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, "0405", creds.Username)
	assert.True(t, creds.IsActive)
	assert.NoError(t, creds.CheckPassword("ONE-TIME-SECRET"))
	assert.NotEqual(t, []byte("ONE-TIME-SECRET"), creds.PasswordHash)

	_, err = e.svc.GetDraftSchool(ctx, "0405")
	assert.Equal(t, registration.ErrDraftNotFound, errors.Cause(err))
	_, err = e.svc.GetDraftResources(ctx, "0405")
	assert.True(t, core.IsNotFound(err))
	_, err = e.svc.GetDraftFees(ctx, "0405")
	assert.True(t, core.IsNotFound(err))

	require.Len(t, e.mail.messages, 1)
	assert.Equal(t, "principal@school.test", e.mail.messages[0].To[0].Address)
	assert.Contains(t, e.mail.messages[0].TextContent, "ONE-TIME-SECRET")

	entries, err := e.audits.QueryEntries(ctx, audit.Filter{Action: string(audit.RegistrationCompleted), Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Success)

	// a second completion fails cleanly
	_, err = e.svc.Complete(ctx, "0405")
	assert.Equal(t, registration.ErrAlreadyCompleted, errors.Cause(err))
}

func TestService_Complete_RollsBack(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	saveCompleteDraft(t, e, "0405", true)

	// the username is already taken: the credentials insert fails after the school was finalized
	testutil.CreateSchool(t, e.repo, "0999", "Other School", registration.StatusFinal)
	testutil.CreateCredentials(t, e.repo, "0999", "0405", "password123", true)

	_, err := e.svc.Complete(ctx, "0405")
	assert.Equal(t, registration.ErrUsernameExists, errors.Cause(err))

	_, err = e.svc.GetSchool(ctx, "0405")
	assert.True(t, core.IsNotFound(err), "no final school is left behind")
	draft, err := e.svc.GetDraftSchool(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, registration.StatusDraft, draft.Status)
	_, err = e.svc.GetDraftFees(ctx, "0405")
	assert.NoError(t, err)
}

func TestService_UpdateSchool_Grades(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.CreateSchool(t, e.repo, "0405", "Green Valley", registration.StatusFinal)

	school, err := e.svc.UpdateSchool(ctx, "0405", registration.UpdateSchool{
		SchoolDetails: registration.SchoolDetails{GradeVII: iPtr(9)},
	})
	require.NoError(t, err)
	assert.Equal(t, "Green Valley", school.SchoolName)
	assert.Equal(t, 9, school.GradeVII)
	assert.Equal(t, 10, school.GradeIV)

	primary, middle, err := e.svc.CandidateCounts(ctx, "0405")
	require.NoError(t, err)
	assert.Equal(t, 18, primary)
	assert.Equal(t, 15, middle)
}

func TestService_ToggleAndDeleteSchool(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.CreateSchool(t, e.repo, "0405", "Green Valley", registration.StatusFinal)
	testutil.CreateCredentials(t, e.repo, "0405", "0405", "password123", true)

	school, err := e.svc.ToggleSchool(ctx, "0405")
	require.NoError(t, err)
	assert.False(t, school.IsActive)

	_, err = e.svc.Authenticate(ctx, "0405", "password123")
	assert.Equal(t, registration.ErrInactive, errors.Cause(err))

	school, err = e.svc.ToggleSchool(ctx, "0405")
	require.NoError(t, err)
	assert.True(t, school.IsActive)

	require.NoError(t, e.svc.DeleteSchool(ctx, "0405"))
	require.NoError(t, e.svc.DeleteSchool(ctx, "0405"), "delete is idempotent")
	_, err = e.svc.GetCredentials(ctx, "0405")
	assert.True(t, core.IsNotFound(err))

	ok, err := e.svc.IsRegistered(ctx, "0405")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_Authenticate(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	testutil.CreateSchool(t, e.repo, "0405", "Green Valley", registration.StatusFinal)
	testutil.CreateCredentials(t, e.repo, "0405", "0405", "password123", true)

	tests := []struct {
		name     string
		username string
		password string
		wantErr  error
	}{
		{name: "valid", username: "0405", password: "password123"},
		{name: "wrong password", username: "0405", password: "nope", wantErr: registration.ErrInvalidCredentials},
		{name: "unknown user", username: "0999", password: "password123", wantErr: registration.ErrInvalidCredentials},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			creds, err := e.svc.Authenticate(ctx, tt.username, tt.password)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "0405", creds.SchoolCode)
		})
	}

	entries, err := e.audits.QueryEntries(ctx, audit.Filter{Action: string(audit.UserLogin), Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.False(t, entries[0].Success)
	assert.True(t, entries[2].Success)
}

func TestService_SeedAdmin(t *testing.T) {
	e := setup(t)
	ctx := context.Background()

	_, err := e.svc.SeedAdmin(ctx, "short")
	assert.Error(t, err)

	creds, err := e.svc.SeedAdmin(ctx, "admin-password")
	require.NoError(t, err)
	assert.Equal(t, registration.AdminUsername, creds.Username)
	assert.True(t, e.svc.IsAdmin(creds.SchoolCode))

	// seeding again resets the password
	_, err = e.svc.SeedAdmin(ctx, "new-admin-password")
	require.NoError(t, err)
	_, err = e.svc.Authenticate(ctx, registration.AdminUsername, "new-admin-password")
	assert.NoError(t, err)

	require.NoError(t, e.svc.ResetPassword(ctx, registration.AdminUsername, "third-password"))
	_, err = e.svc.Authenticate(ctx, registration.AdminUsername, "third-password")
	assert.NoError(t, err)
}

func TestService_DeleteDraftSchool(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	saveCompleteDraft(t, e, "0405", false)

	require.NoError(t, e.svc.DeleteDraftSchool(ctx, "0405"))
	require.NoError(t, e.svc.DeleteDraftSchool(ctx, "0405"))

	_, err := e.svc.GetDraftFees(ctx, "0405")
	assert.True(t, core.IsNotFound(err))
}
