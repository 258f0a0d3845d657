package echoapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/pblportal/registry/core"
	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/session"
)

const contextTokenKey = "userToken"

// Claims represents the authorization claims transmitted via a JWT.
// The standard "jti" identifies the session, "sub" the credentials.
type Claims struct {
	jwt.StandardClaims
	Username   string `json:"username"`
	SchoolCode string `json:"schoolCode"`
	IsAdmin    bool   `json:"isAdmin,omitempty"`

	// OriginalIssuedAt is the login time, carried over by every refresh.
	OriginalIssuedAt int64 `json:"orig_iat,omitempty"`
}

type authenticator struct {
	signingKey []byte
	issuer     string
	expiration time.Duration
	refreshFor time.Duration
	sessions   session.Store
	nowFunc    func() time.Time
}

func newAuthenticator(conf *core.Config, sessions session.Store) *authenticator {
	expiration := conf.Server.JWTExpirationDelta
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	refreshFor := conf.Server.JWTRefreshExpirationDelta
	if refreshFor <= 0 {
		refreshFor = 7 * 24 * time.Hour
	}
	return &authenticator{
		signingKey: []byte(conf.SecretKey),
		issuer:     conf.AppName,
		expiration: expiration,
		refreshFor: refreshFor,
		sessions:   sessions,
		nowFunc:    time.Now,
	}
}

func (a *authenticator) newClaims(creds registration.Credentials, isAdmin bool, origIat ...int64) *Claims {
	now := a.nowFunc()
	iat := now.Unix()
	if len(origIat) > 0 {
		iat = origIat[0]
	}
	return &Claims{
		StandardClaims: jwt.StandardClaims{
			Id:        uuid.New().String(),
			Issuer:    a.issuer,
			Subject:   strconv.FormatInt(creds.ID, 10),
			ExpiresAt: now.Add(a.expiration).Unix(),
			IssuedAt:  now.Unix(),
		},
		Username:         creds.Username,
		SchoolCode:       creds.SchoolCode,
		IsAdmin:          isAdmin,
		OriginalIssuedAt: iat,
	}
}

// refreshable tells whether a new token may still be issued for the session of claims.
func (a *authenticator) refreshable(claims Claims) bool {
	if claims.OriginalIssuedAt == 0 {
		return false
	}
	return a.nowFunc().Before(time.Unix(claims.OriginalIssuedAt, 0).Add(a.refreshFor))
}

// generateToken signs the claims with HS256.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	ss, err := token.SignedString(a.signingKey)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

func (a *authenticator) jwt() echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    a.signingKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	})
}

// checkRevoked rejects tokens whose session was closed by a logout.
func (a *authenticator) checkRevoked(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return err
		}
		revoked, err := a.sessions.IsRevoked(ctx.Request().Context(), claims.Id)
		if err != nil {
			return errors.Wrap(err, "checking session")
		}
		if revoked {
			return errSessionRevoked
		}
		return next(ctx)
	}
}

func (a *authenticator) revoke(ctx echo.Context, claims Claims) error {
	ttl := time.Unix(claims.ExpiresAt, 0).Sub(a.nowFunc())
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(a.sessions.Revoke(ctx.Request().Context(), claims.Id, ttl), "revoking session")
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return *claims, nil
		}
	}
	return Claims{}, errUnauthorized
}

func requestActor(ctx echo.Context) audit.Actor {
	req := ctx.Request()
	return audit.Actor{
		IPAddress: ctx.RealIP(),
		UserAgent: req.UserAgent(),
	}
}

// actorMiddleware attributes the audited actions of the request to the logged in school.
func actorMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		actor := requestActor(ctx)
		if claims, err := getContextClaims(ctx); err == nil {
			actor.UserID = claims.Subject
			actor.Username = claims.Username
			actor.SessionID = claims.Id
		}
		req := ctx.Request()
		ctx.SetRequest(req.WithContext(audit.WithActor(req.Context(), actor)))
		return next(ctx)
	}
}

func adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !claims.IsAdmin {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// schoolMiddleware restricts /schools/:code routes to admins and the school itself.
func schoolMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if !canAccessSchool(claims, ctx.Param("code")) {
			return errHttpNotFound
		}
		return next(ctx)
	}
}

func canAccessSchool(claims Claims, code string) bool {
	return claims.IsAdmin || (code != "" && core.CleanString(code) == claims.SchoolCode)
}

type (
	LoginResponse struct {
		Token      string    `json:"token"`
		Username   string    `json:"username"`
		SchoolCode string    `json:"schoolCode"`
		IsAdmin    bool      `json:"isAdmin"`
		ExpiresAt  time.Time `json:"expiresAt"`
	}
)

func (s *Server) login(ctx echo.Context) error {
	var data registration.LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	actor := requestActor(ctx)
	actor.Username = data.Username
	reqCtx := audit.WithActor(ctx.Request().Context(), actor)

	creds, err := s.deps.RegistrationSvc.Authenticate(reqCtx, data.Username, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}

	return s.respondWithToken(ctx, s.auth.newClaims(creds, s.deps.RegistrationSvc.IsAdmin(creds.SchoolCode)))
}

// refreshToken swaps a valid token for a fresh one, closing the old session.
// Refreshing stops working refreshFor after the login, or as soon as the account is deactivated.
func (s *Server) refreshToken(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if !s.auth.refreshable(claims) {
		return errRefreshExpired
	}

	creds, err := s.deps.RegistrationSvc.CheckActive(ctx.Request().Context(), claims.Username)
	if err != nil {
		return errors.Wrap(err, "checking account")
	}
	if err = s.auth.revoke(ctx, claims); err != nil {
		return err
	}
	return s.respondWithToken(ctx, s.auth.newClaims(creds, s.deps.RegistrationSvc.IsAdmin(creds.SchoolCode), claims.OriginalIssuedAt))
}

func (s *Server) respondWithToken(ctx echo.Context, claims *Claims) error {
	token, err := s.auth.generateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{
		Token:      token,
		Username:   claims.Username,
		SchoolCode: claims.SchoolCode,
		IsAdmin:    claims.IsAdmin,
		ExpiresAt:  time.Unix(claims.ExpiresAt, 0).UTC(),
	})
}

func (s *Server) logout(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if err = s.auth.revoke(ctx, claims); err != nil {
		return err
	}
	s.deps.RegistrationSvc.Logout(ctx.Request().Context(), claims.Username)
	return ctx.NoContent(http.StatusNoContent)
}
