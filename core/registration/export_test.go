package registration

import "time"

func SetGenerateSecretFunc(f func() (string, error)) (restore func()) {
	orig := generateSecretFunc
	generateSecretFunc = f
	return func() { generateSecretFunc = orig }
}

func (svc *Service) SetNowFunc(f func() time.Time) {
	svc.nowFunc = f
}
