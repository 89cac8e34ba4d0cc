package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/stemsi/exstem-proctor/internal/api"
)

// Authenticator performs the credential exchange.
type Authenticator interface {
	Login(ctx context.Context, identifier, password string) (string, error)
}

// Prompt is an api.TokenSource that asks the student for credentials on
// first use and caches the resulting token for the life of the process.
type Prompt struct {
	auth       Authenticator
	identifier string
	in         *bufio.Reader
	out        io.Writer
	readSecret func() ([]byte, error)
	log        zerolog.Logger

	mu    sync.Mutex
	token string
}

// NewPrompt builds a terminal prompt reading from stdin. identifier may be
// preset (STUDENT_LOGIN); otherwise it is asked for.
func NewPrompt(auth Authenticator, identifier string, log zerolog.Logger) *Prompt {
	return &Prompt{
		auth:       auth,
		identifier: identifier,
		in:         bufio.NewReader(os.Stdin),
		out:        os.Stdout,
		readSecret: func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) },
		log:        log.With().Str("component", "auth").Logger(),
	}
}

// Token implements api.TokenSource.
func (p *Prompt) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	identifier := p.identifier
	if identifier == "" {
		fmt.Fprint(p.out, "NISN: ")
		line, err := p.in.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read identifier: %w", err)
		}
		identifier = strings.TrimSpace(line)
		if identifier == "" {
			return "", errors.New("identifier is required")
		}
	}

	fmt.Fprint(p.out, "Password: ")
	secret, err := p.readSecret()
	fmt.Fprintln(p.out) // Newline after password input
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	token, err := p.auth.Login(ctx, identifier, string(secret))
	if err != nil {
		return "", fmt.Errorf("login: %w", err)
	}

	if claims, err := PeekClaims(token); err != nil {
		p.log.Warn().Err(err).Msg("Could not read token claims")
	} else {
		p.log.Info().Int("student_id", claims.UserID).Msg("Logged in")
	}

	p.identifier = identifier
	p.token = token
	return token, nil
}

// StudentID returns the student id encoded in the token from src, or ""
// when it cannot be determined.
func StudentID(ctx context.Context, src api.TokenSource) string {
	token, err := src.Token(ctx)
	if err != nil {
		return ""
	}
	claims, err := PeekClaims(token)
	if err != nil || claims.UserID == 0 {
		return ""
	}
	return fmt.Sprintf("%d", claims.UserID)
}
