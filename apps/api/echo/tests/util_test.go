package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/pblportal/registry/apps/api/echo"
	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/session"
	"github.com/pblportal/registry/core/student"
	emailsvc "github.com/pblportal/registry/services/email"
	"github.com/pblportal/registry/services/export"
	"github.com/pblportal/registry/services/upload"
	"github.com/pblportal/registry/storage/database/inmem"
	"github.com/pblportal/registry/tests"
)

const adminPassword = "admin-password"

var ctxBg = context.Background()

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

type env struct {
	app      *echoapi.Server
	conf     *core.Config
	schools  registration.Repository
	audits   audit.Repository
	mail     *emailsvc.ConsoleServiceMock
	regSvc   *registration.Service
	adminTkn string
}

type options struct {
	audits audit.Repository
}

type option func(*options)

// withAuditRepo replaces the audit store, e.g. with one that always fails.
func withAuditRepo(repo audit.Repository) option {
	return func(o *options) { o.audits = repo }
}

func setup(t *testing.T, opts ...option) env {
	conf := testutil.Config()
	conf.Upload.Dir = t.TempDir()

	db := inmemdb.Open()
	o := options{audits: inmemdb.NewAuditRepository(db)}
	for _, opt := range opts {
		opt(&o)
	}

	logger := &testutil.Logger{}
	validate := testutil.NewValidator()
	recorder := audit.NewRecorder(o.audits, logger)
	mail := emailsvc.NewConsoleServiceMock(conf)

	schools := inmemdb.NewRegistrationRepository(db)
	regSvc := registration.NewService(schools, recorder, mail, logger, conf)
	studentSvc := student.NewService(inmemdb.NewStudentRepository(db), regSvc, recorder, validate)
	feesSvc := fees.NewService(inmemdb.NewStudentFeesRepository(db), regSvc, recorder, conf)

	uploads, err := upload.NewStore(conf.Upload)
	require.NoError(t, err)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:            conf,
		Logger:          logger,
		Validate:        validate,
		RegistrationSvc: regSvc,
		StudentSvc:      studentSvc,
		FeesSvc:         feesSvc,
		Recorder:        recorder,
		Sessions:        session.NewMemoryStore(),
		Uploads:         uploads,
		PDF:             export.NewPDFRenderer(conf),
		DisableReqLogs:  true,
	})

	_, err = regSvc.SeedAdmin(context.Background(), adminPassword)
	require.NoError(t, err)

	e := env{app: app, conf: conf, schools: schools, audits: o.audits, mail: mail, regSvc: regSvc}
	e.adminTkn = e.login(t, registration.AdminUsername, adminPassword)
	return e
}

func (e env) login(t *testing.T, username, password string) string {
	req, rec := newRequest(http.MethodPost, "/api/login", marshalObj(t, jsonObj{"username": username, "password": password}))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp echoapi.LoginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Token
}

// registeredSchool creates a final school with its credentials and logs it in.
func (e env) registeredSchool(t *testing.T, code, name string) string {
	testutil.CreateSchool(t, e.schools, code, name, registration.StatusFinal)
	testutil.CreateCredentials(t, e.schools, code, code, "school-password", true)
	return e.login(t, code, "school-password")
}

func (e env) do(t *testing.T, method, path, token string, body []byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body)
	e.app.ServeHTTP(rec, req)
	return rec
}

type jsonObj = map[string]interface{}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func newMultipartRequest(t *testing.T, path, token, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req, httptest.NewRecorder()
}

func marshalObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshalObj() failed: %v", err)
	}
	return data
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

func runHTTPTests(t *testing.T, app http.Handler, tests []httpTest) {
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			method := tt.method
			if method == "" {
				method = http.MethodGet
			}
			req, rec := newAuthRequest(method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

// failingAuditRepo loses every audit entry.
type failingAuditRepo struct{}

var _ audit.Repository = failingAuditRepo{}

func (failingAuditRepo) CreateEntry(context.Context, audit.Entry) (audit.Entry, error) {
	return audit.Entry{}, errors.New("audit store is down")
}

func (failingAuditRepo) QueryEntries(context.Context, audit.Filter) ([]audit.Entry, error) {
	return nil, errors.New("audit store is down")
}
