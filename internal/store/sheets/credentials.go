package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoCredentials means a source had nothing to offer.
var ErrNoCredentials = errors.New("no service account credentials")

// Scopes are the OAuth scopes requested for the service account.
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/drive.file",
}

// CredentialSource yields service account JSON.
type CredentialSource interface {
	// Load returns the credentials JSON, or an error wrapping
	// ErrNoCredentials when the source is simply not configured.
	Load(ctx context.Context) ([]byte, error)
	Name() string
}

// EnvSource reads credentials JSON from an environment variable.
type EnvSource struct {
	Var string
}

// Load implements CredentialSource.
func (s EnvSource) Load(context.Context) ([]byte, error) {
	v := os.Getenv(s.Var)
	if v == "" {
		return nil, fmt.Errorf("%w: %s is not set", ErrNoCredentials, s.Var)
	}
	return []byte(v), nil
}

// Name implements CredentialSource.
func (s EnvSource) Name() string { return "env:" + s.Var }

// FileSource reads credentials JSON from a file.
type FileSource struct {
	Path string
}

// Load implements CredentialSource. A missing file is ErrNoCredentials;
// an unreadable one is a real error.
func (s FileSource) Load(context.Context) ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s does not exist", ErrNoCredentials, s.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return data, nil
}

// Name implements CredentialSource.
func (s FileSource) Name() string { return "file:" + s.Path }

// Chain tries sources in order and returns the first that yields.
type Chain []CredentialSource

// DefaultChain checks envVar before path.
func DefaultChain(envVar, path string) Chain {
	return Chain{EnvSource{Var: envVar}, FileSource{Path: path}}
}

// Resolve returns the credentials and the source that supplied them.
func (c Chain) Resolve(ctx context.Context) ([]byte, CredentialSource, error) {
	for _, src := range c {
		data, err := src.Load(ctx)
		if errors.Is(err, ErrNoCredentials) {
			continue
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", src.Name(), err)
		}
		return data, src, nil
	}
	return nil, nil, ErrNoCredentials
}

// Load implements CredentialSource.
func (c Chain) Load(ctx context.Context) ([]byte, error) {
	data, _, err := c.Resolve(ctx)
	return data, err
}

// Name implements CredentialSource.
func (c Chain) Name() string { return "chain" }

// tokenSource parses service account JSON into a token source for Scopes.
func tokenSource(ctx context.Context, data []byte) (oauth2.TokenSource, string, error) {
	cfg, err := google.JWTConfigFromJSON(data, Scopes...)
	if err != nil {
		return nil, "", fmt.Errorf("parsing service account: %w", err)
	}
	return cfg.TokenSource(ctx), cfg.Email, nil
}
