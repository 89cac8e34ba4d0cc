package auth

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/api"
)

func signed(t *testing.T, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("backend-secret"))
	require.NoError(t, err)
	return token
}

func TestPeekClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	token := signed(t, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(exp)},
		TokenType:        TokenTypeStudent,
		UserID:           42,
		ClassID:          3,
	})

	claims, err := PeekClaims(token)
	require.NoError(t, err)
	assert.Equal(t, 42, claims.UserID)
	assert.Equal(t, 3, claims.ClassID)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, exp.Unix(), claims.ExpiresAt.Unix())
}

func TestPeekClaimsRejectsAdmin(t *testing.T) {
	token := signed(t, Claims{TokenType: TokenTypeAdmin, UserID: 1})
	_, err := PeekClaims(token)
	assert.ErrorIs(t, err, ErrNotStudentToken)
}

func TestPeekClaimsGarbage(t *testing.T) {
	_, err := PeekClaims("not-a-jwt")
	assert.Error(t, err)
}

type fakeAuth struct {
	calls    int
	ident    string
	password string
	token    string
	err      error
}

func (f *fakeAuth) Login(_ context.Context, identifier, password string) (string, error) {
	f.calls++
	f.ident, f.password = identifier, password
	return f.token, f.err
}

func newTestPrompt(auth Authenticator, identifier, input string) (*Prompt, *bytes.Buffer) {
	out := &bytes.Buffer{}
	p := &Prompt{
		auth:       auth,
		identifier: identifier,
		in:         bufio.NewReader(strings.NewReader(input)),
		out:        out,
		readSecret: func() ([]byte, error) { return []byte("hunter2"), nil },
		log:        zerolog.Nop(),
	}
	return p, out
}

func TestPromptLogsInOnceAndCaches(t *testing.T) {
	token := signed(t, Claims{TokenType: TokenTypeStudent, UserID: 9})
	fa := &fakeAuth{token: token}
	p, out := newTestPrompt(fa, "", "00123\n")

	got, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, token, got)
	assert.Equal(t, "00123", fa.ident)
	assert.Equal(t, "hunter2", fa.password)
	assert.Contains(t, out.String(), "NISN: ")

	_, err = p.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fa.calls)

	assert.Equal(t, "9", StudentID(context.Background(), p))
}

func TestPromptPresetIdentifierSkipsQuestion(t *testing.T) {
	fa := &fakeAuth{token: "opaque"}
	p, out := newTestPrompt(fa, "777", "")
	_, err := p.Token(context.Background())
	require.NoError(t, err)
	assert.NotContains(t, out.String(), "NISN")
	assert.Equal(t, "777", fa.ident)
}

func TestPromptLoginFailureIsNotCached(t *testing.T) {
	fa := &fakeAuth{err: errors.New("http 401")}
	p, _ := newTestPrompt(fa, "777", "")
	_, err := p.Token(context.Background())
	assert.ErrorContains(t, err, "login")
	assert.Empty(t, p.token)
}

func TestStudentIDWithoutClaims(t *testing.T) {
	assert.Equal(t, "", StudentID(context.Background(), api.StaticToken("opaque")))
	assert.Equal(t, "", StudentID(context.Background(), api.StaticToken("")))
}
