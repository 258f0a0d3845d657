package registration

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"net/mail"
	"text/template"

	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
)

const secretSize = 12

var (
	// mockable
	generateSecretFunc = generateSecret

	credentialsTpl = template.Must(template.New("credentials").Parse(
		`Dear {{.Principal}},

The registration of {{.SchoolName}} ({{.SchoolCode}}) is complete.
You can now sign in with the following credentials:

  Username: {{.Username}}
  Password: {{.Password}}

This password is shown only once. Please keep it safe.
`))
)

func generateSecret() (string, error) {
	b := make([]byte, secretSize)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Wrap(err, "reading random bytes")
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

// Complete promotes the draft registration of code to a registered school and issues its credentials.
// It requires a draft school and draft fees with the disclaimer accepted; nothing is written otherwise.
// The one-time password is e-mailed to the principal.
func (svc *Service) Complete(ctx context.Context, code string) (School, error) {
	var (
		school   School
		password string
	)
	err := svc.repo.WithinTx(ctx, func(repo Repository) error {
		if _, err := repo.GetSchool(ctx, code, StatusDraft); err != nil {
			if errors.Cause(err) != ErrSchoolNotFound {
				return errors.Wrap(err, "getting draft school")
			}
			if _, err = repo.GetSchool(ctx, code, StatusFinal); err == nil {
				return ErrAlreadyCompleted
			}
			return core.NewPreconditionError("no draft registration found for school code %s", code)
		}

		f, err := repo.GetFees(ctx, code, StatusDraft)
		if err != nil {
			if errors.Cause(err) != ErrFeesNotFound {
				return errors.Wrap(err, "getting draft fees")
			}
			return core.NewPreconditionError("fees must be submitted before completing the registration of %s", code)
		}
		if !f.DisclaimerAccepted {
			return core.NewPreconditionError("the disclaimer must be accepted before completing the registration of %s", code)
		}

		now := svc.now()
		if school, err = repo.FinalizeSchool(ctx, code, now); err != nil {
			return errors.Wrap(err, "finalizing school")
		}

		if password, err = generateSecretFunc(); err != nil {
			return errors.Wrap(err, "generating password")
		}
		creds := Credentials{
			SchoolCode: code,
			Username:   code,
			IsActive:   true,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err = creds.SetPassword(password); err != nil {
			return errors.Wrap(err, "hashing password")
		}
		_, err = repo.CreateCredentials(ctx, creds)
		return errors.Wrap(err, "creating credentials")
	})
	if err != nil {
		svc.recorder.Failure(ctx, audit.RegistrationCompleted, audit.ResourceSchool, code, err)
		return School{}, err
	}

	svc.recorder.Log(ctx, audit.RegistrationCompleted, audit.ResourceSchool, code, nil, school, "registration completed")
	svc.sendCredentials(school, code, password)
	return school, nil
}

func (svc *Service) sendCredentials(school School, username, password string) {
	if svc.mailer == nil || !school.PrincipalEmail.Valid {
		return
	}
	to, err := mail.ParseAddress(school.PrincipalEmail.String)
	if err != nil {
		svc.logger.Warn("registration: invalid principal e-mail for "+school.SchoolCode, err)
		return
	}
	to.Name = school.PrincipalName.String

	principal := school.PrincipalName.String
	if principal == "" {
		principal = "Principal"
	}
	svc.mailer.SendMessages(&core.EmailMessage{
		To:       []mail.Address{*to},
		Subject:  "Your school registration is complete",
		Template: credentialsTpl,
		TemplateData: map[string]string{
			"Principal":  principal,
			"SchoolName": school.SchoolName,
			"SchoolCode": school.SchoolCode,
			"Username":   username,
			"Password":   password,
		},
	})
}
