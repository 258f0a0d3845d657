package main

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"testing"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/storage/database/inmem"
	"github.com/pblportal/registry/tests"
)

var regRepo registration.Repository

func setup(t *testing.T) *commandLine {
	db := inmemdb.Open()
	regRepo = inmemdb.NewRegistrationRepository(db)
	logger := &testutil.Logger{}
	recorder := audit.NewRecorder(inmemdb.NewAuditRepository(db), logger)

	// start CLI
	return &commandLine{
		regSvc: registration.NewService(regRepo, recorder, nil, logger, testutil.Config()),
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func checkErr(t *testing.T, err error, tt cliTest) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	gooseRunFunc = func(command string, _ *sql.DB, _ fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, cli.run(args), tt)
		})
	}
}

func Test_commandLine_seedAdmin(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	mockPassword("")
	checkErr(t, cli.run([]string{"admin", "seedadmin"}), cliTest{wantErr: errHelp})

	mockPassword("short")
	err := cli.run([]string{"admin", "seedadmin"})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("cli.run() error = %v, want a validation error", err)
	}

	for _, pwd := range []string{"first-password", "second-password"} {
		mockPassword(pwd)
		if err = cli.run([]string{"admin", "seedadmin"}); err != nil {
			t.Fatalf("cli.run() unexpected error = %v", err)
		}

		creds, err := regRepo.GetCredentials(ctx, registration.AdminUsername)
		if err != nil {
			t.Fatalf("GetCredentials() failed: %v", err)
		}
		if err = creds.CheckPassword(pwd); err != nil {
			t.Errorf("admin password was not set to %q", pwd)
		}
	}

	schools, err := regRepo.QuerySchools(ctx, registration.StatusFinal)
	if err != nil {
		t.Fatalf("QuerySchools() failed: %v", err)
	}
	if len(schools) != 1 || schools[0].SchoolCode != "admin_school" {
		t.Errorf("admin school = %+v, want exactly admin_school", schools)
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	testutil.CreateSchool(t, regRepo, "0405", "Green Valley", registration.StatusFinal)
	creds := testutil.CreateCredentials(t, regRepo, "0405", "0405", "old-password", true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "account not found", args: []string{"resetpassword", "-username", "lol"}, extra: extra{pwd: "new-password"}, wantErr: registration.ErrCredentialsNotFound},
		{name: "password too short", args: []string{"resetpassword", "-username", "0405"}, extra: extra{pwd: "lol"}, wantErrStr: "password: password must be at least 8 characters in length"},
		{name: "reset", args: []string{"resetpassword", "-username", "0405"}, extra: extra{pwd: "new-password"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			checkErr(t, err, tt)
			if err != nil || tt.wantErr != nil || tt.wantErrStr != "" {
				return
			}

			refreshed, err := regRepo.GetCredentials(context.Background(), creds.Username)
			if err != nil {
				t.Fatalf("GetCredentials() failed: %v", err)
			}
			if refreshed.CheckPassword(pwd) != nil {
				t.Error("failed to update new password")
			}
		})
	}
}
