package tests

import (
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pblportal/registry/core/audit"
)

func Test_uploadDepositSlip(t *testing.T) {
	e := setup(t)
	tkn := e.registeredSchool(t, "0405", "Green Valley")
	pdf := []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n")

	req, rec := newMultipartRequest(t, "/api/upload/deposit-slip", tkn, "slip.PDF", pdf)
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		URL string `json:"url"`
	}
	decode(t, rec, &resp)
	assert.True(t, strings.HasPrefix(resp.URL, "/uploads/"), resp.URL)
	assert.True(t, strings.HasSuffix(resp.URL, ".pdf"), resp.URL)

	t.Run("served back", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, resp.URL, nil)
		rec := httptest.NewRecorder()
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, pdf, rec.Body.Bytes())
	})

	t.Run("markup behind image bytes", func(t *testing.T) {
		req, rec := newMultipartRequest(t, "/api/upload/deposit-slip", tkn, "slip.html", []byte("GIF89a<html><script>alert(1)</script></html>"))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var gif struct {
			URL string `json:"url"`
		}
		decode(t, rec, &gif)
		assert.True(t, strings.HasSuffix(gif.URL, ".gif"), gif.URL)

		req = httptest.NewRequest(http.MethodGet, gif.URL, nil)
		rec = httptest.NewRecorder()
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	})

	t.Run("unsupported type", func(t *testing.T) {
		req, rec := newMultipartRequest(t, "/api/upload/deposit-slip", tkn, "slip.pdf", []byte("just some text"))
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		big := append(append([]byte{}, pdf...), make([]byte, e.conf.Upload.MaxBytes)...)
		req, rec := newMultipartRequest(t, "/api/upload/deposit-slip", tkn, "slip.pdf", big)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("anonymous", func(t *testing.T) {
		req, rec := newMultipartRequest(t, "/api/upload/deposit-slip", "", "slip.pdf", pdf)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing upload dir stops the server", func(t *testing.T) {
		require.NoError(t, os.RemoveAll(e.conf.Upload.Dir))

		req, rec := newMultipartRequest(t, "/api/upload/deposit-slip", tkn, "slip.pdf", pdf)
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		select {
		case <-e.app.ShutdownSignal():
		default:
			t.Error("expected a shutdown signal")
		}
	})
}

func Test_queryAuditLogs(t *testing.T) {
	e := setup(t)
	tkn := e.registeredSchool(t, "0405", "Green Valley")

	for _, name := range []string{"Ali", "Sara"} {
		rec := e.do(t, http.MethodPost, "/api/schools/0405/students", tkn, marshalObj(t, newStudent(name, "Raza", "IV")))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	t.Run("filtered", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/audit-logs?action=STUDENT_CREATED&resource=Student", e.adminTkn, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var entries []audit.Entry
		decode(t, rec, &entries)
		require.Len(t, entries, 2)
		assert.Equal(t, "0405-04-02", entries[0].ResourceID.String, "most recent first")
		assert.Equal(t, "0405", entries[0].Username.String)
		assert.True(t, entries[0].SessionID.Valid)
		assert.True(t, entries[0].Success)
	})

	t.Run("limit", func(t *testing.T) {
		rec := e.do(t, http.MethodGet, "/api/audit-logs?limit=1", e.adminTkn, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var entries []audit.Entry
		decode(t, rec, &entries)
		assert.Len(t, entries, 1)
	})

	runHTTPTests(t, e.app, []httpTest{
		{
			name: "bad limit", method: http.MethodGet, path: "/api/audit-logs?limit=ten", token: e.adminTkn,
			wantCode: http.StatusBadRequest,
		},
		{
			name: "school user", method: http.MethodGet, path: "/api/audit-logs", token: tkn,
			wantCode: http.StatusForbidden, wantData: marshalObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "anonymous", method: http.MethodGet, path: "/api/audit-logs", wantCode: http.StatusUnauthorized,
			wantData: marshalObj(t, errMissingToken),
		},
	})
}
