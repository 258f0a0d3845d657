package registration

import (
	"context"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

const (
	AdminUsername   = "admin"
	adminSchoolName = "Admin School"
	minPasswordLen  = 8
)

func (svc *Service) GetCredentials(ctx context.Context, code string) (Credentials, error) {
	return svc.repo.GetCredentialsBySchool(ctx, code)
}

// IsAdmin reports whether the credentials of schoolCode grant administration rights.
func (svc *Service) IsAdmin(schoolCode string) bool {
	return schoolCode != "" && schoolCode == svc.conf.AdminSchoolCode
}

// Authenticate checks a username / password pair. Both successful and failed attempts are audited.
func (svc *Service) Authenticate(ctx context.Context, username, password string) (Credentials, error) {
	creds, err := svc.authenticate(ctx, username, password)
	if err != nil {
		svc.recorder.Failure(ctx, audit.UserLogin, audit.ResourceSession, username, err)
		return Credentials{}, err
	}
	svc.recorder.Log(ctx, audit.UserLogin, audit.ResourceSession, username, nil, nil, "")
	return creds, nil
}

// CheckActive returns the credentials of username while both the account and its school are active.
func (svc *Service) CheckActive(ctx context.Context, username string) (Credentials, error) {
	creds, err := svc.repo.GetCredentials(ctx, username)
	if err != nil {
		if errors.Cause(err) == ErrCredentialsNotFound {
			return Credentials{}, ErrInvalidCredentials
		}
		return Credentials{}, errors.Wrap(err, "getting credentials")
	}
	if err = svc.checkActive(ctx, creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (svc *Service) authenticate(ctx context.Context, username, password string) (Credentials, error) {
	creds, err := svc.repo.GetCredentials(ctx, username)
	if err != nil {
		if errors.Cause(err) == ErrCredentialsNotFound {
			return Credentials{}, ErrInvalidCredentials
		}
		return Credentials{}, errors.Wrap(err, "getting credentials")
	}
	if err = creds.CheckPassword(password); err != nil {
		return Credentials{}, ErrInvalidCredentials
	}
	if err = svc.checkActive(ctx, creds); err != nil {
		return Credentials{}, err
	}
	return creds, nil
}

func (svc *Service) checkActive(ctx context.Context, creds Credentials) error {
	if !creds.IsActive {
		return ErrInactive
	}
	school, err := svc.repo.GetSchool(ctx, creds.SchoolCode, StatusFinal)
	switch {
	case err == nil && !school.IsActive:
		return ErrInactive
	case err != nil && errors.Cause(err) != ErrSchoolNotFound:
		return errors.Wrap(err, "getting school")
	}
	return nil
}

// Logout only records the event; the session itself is revoked by the caller.
func (svc *Service) Logout(ctx context.Context, username string) {
	svc.recorder.Log(ctx, audit.UserLogout, audit.ResourceSession, username, nil, nil, "")
}

func (svc *Service) ResetPassword(ctx context.Context, username, password string) error {
	if err := checkPassword(password); err != nil {
		return err
	}
	creds, err := svc.repo.GetCredentials(ctx, core.CleanString(username))
	if err != nil {
		return err
	}
	if err = creds.SetPassword(password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	creds.UpdatedAt = svc.now()
	_, err = svc.repo.UpdateCredentials(ctx, creds)
	return errors.Wrap(err, "updating credentials")
}

// SeedAdmin ensures the admin school and its "admin" credentials exist, and sets the admin password.
func (svc *Service) SeedAdmin(ctx context.Context, password string) (Credentials, error) {
	if err := checkPassword(password); err != nil {
		return Credentials{}, err
	}
	code := svc.conf.AdminSchoolCode

	var creds Credentials
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		now := svc.now()
		if _, err := repo.GetSchool(ctx, code, ""); err != nil {
			if errors.Cause(err) != ErrSchoolNotFound {
				return errors.Wrap(err, "getting admin school")
			}
			admin := School{
				SchoolCode:              code,
				Status:                  StatusFinal,
				SchoolName:              adminSchoolName,
				IsActive:                true,
				RegistrationCompletedAt: null.TimeFrom(now),
				CreatedAt:               now,
				UpdatedAt:               now,
			}
			if _, err = repo.CreateSchool(ctx, admin); err != nil {
				return errors.Wrap(err, "creating admin school")
			}
		}

		existing, err := repo.GetCredentials(ctx, AdminUsername)
		exists := err == nil
		if err != nil && errors.Cause(err) != ErrCredentialsNotFound {
			return errors.Wrap(err, "getting admin credentials")
		}

		creds = Credentials{SchoolCode: code, Username: AdminUsername, IsActive: true, CreatedAt: now, UpdatedAt: now}
		if err = creds.SetPassword(password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		if exists {
			creds.ID, creds.CreatedAt = existing.ID, existing.CreatedAt
			creds, err = repo.UpdateCredentials(ctx, creds)
		} else {
			creds, err = repo.CreateCredentials(ctx, creds)
		}
		return errors.Wrap(err, "saving admin credentials")
	})
	return creds, err
}

func checkPassword(password string) error {
	if len(password) < minPasswordLen {
		return core.NewValidationError(nil, core.FieldError{
			Path:    "password",
			Message: "password must be at least 8 characters in length",
		})
	}
	return nil
}
