package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	secret := "test-secret"
	signed, expiresAt, err := GenerateToken("ops", secret, 5*time.Minute)
	require.NoError(t, err)

	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)

	claims, ok := token.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "ops", claims[claimSubject])
	assert.Equal(t, operatorTokenType, claims[claimType])
	iat := int64(claims["iat"].(float64))
	exp := int64(claims["exp"].(float64))
	assert.Equal(t, int64(5*60), exp-iat)
	assert.Equal(t, expiresAt.Unix(), exp)
}

func TestGenerateTokenValidation(t *testing.T) {
	t.Parallel()

	_, _, err := GenerateToken(" ", "secret", time.Minute)
	assert.Error(t, err)
	_, _, err = GenerateToken("ops", "", time.Minute)
	assert.Error(t, err)
	_, _, err = GenerateToken("ops", "secret", 0)
	assert.Error(t, err)
}

func TestSubjectFromContext(t *testing.T) {
	t.Parallel()

	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, err := SubjectFromContext(c)
	require.Error(t, err)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)
	assert.Equal(t, "invalid token", httpErr.Message)

	signed, _, err := GenerateToken("ops", "secret", time.Minute)
	require.NoError(t, err)
	token, err := jwt.Parse(signed, func(token *jwt.Token) (interface{}, error) {
		return []byte("secret"), nil
	})
	require.NoError(t, err)
	c.Set("user", token)
	subject, err := SubjectFromContext(c)
	require.NoError(t, err)
	assert.Equal(t, "ops", subject)

	foreign := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{claimSubject: "ops"})
	foreign.Valid = true
	c.Set("user", foreign)
	_, err = SubjectFromContext(c)
	assert.Error(t, err, "tokens without the operator type are rejected")
}

func TestJWTMiddleware(t *testing.T) {
	t.Parallel()

	e := echo.New()
	e.Use(JWTMiddleware("secret", func(c echo.Context) bool {
		return c.Request().URL.Path == "/ping"
	}))
	e.GET("/ping", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/whoami", func(c echo.Context) error {
		subject, err := SubjectFromContext(c)
		if err != nil {
			return err
		}
		return c.String(http.StatusOK, subject)
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	signed, _, err := GenerateToken("ops", "secret", time.Minute)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops", rec.Body.String())
}
