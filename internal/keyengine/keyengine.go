// Package keyengine implements C7: key identity resolution, asymmetric key
// lifecycle, and symmetric-key wrap/unwrap, against a pluggable backend
// (local keystore or cloud KMS).
package keyengine

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"backy/internal/aead"
	"backy/internal/backyerrors"
)

// Identity is a key identity string of the form "backy_secret_key_<N>".
type Identity string

// Auto resolves to the highest-versioned enabled key.
const Auto = "auto"

var identityPattern = regexp.MustCompile(`^backy_secret_key_(\d+)$`)

// Version extracts the integer version from an identity, or ok=false if it
// doesn't match the expected form.
func (id Identity) Version() (int, bool) {
	m := identityPattern.FindStringSubmatch(string(id))
	if m == nil {
		return 0, false
	}
	v, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return v, true
}

// IdentityForVersion builds the canonical identity string for a version.
func IdentityForVersion(v int) Identity {
	return Identity(fmt.Sprintf("backy_secret_key_%d", v))
}

// Backend is the capability interface every key-management provider (local
// keystore or cloud KMS) implements. Identity resolution and wrap/unwrap are
// backend-specific; the Engine composes a Backend with the AEAD service to
// realize the full §4.6 contract.
type Backend interface {
	// Versions returns every enabled key identity known to the backend, in
	// no particular order; the Engine picks the highest version itself.
	Versions(ctx context.Context) ([]Identity, error)
	// Generate creates a new asymmetric key pair at the next version and
	// returns its identity.
	Generate(ctx context.Context) (Identity, error)
	// PublicKeyDER returns the DER-encoded public key for identity, used to
	// wrap a fresh symmetric key.
	PublicKeyDER(ctx context.Context, identity Identity) ([]byte, error)
	// WrapSymmetricKey encrypts plainKey under identity's public key.
	WrapSymmetricKey(ctx context.Context, identity Identity, plainKey []byte) ([]byte, error)
	// UnwrapSymmetricKey decrypts wrapped with identity's private key.
	UnwrapSymmetricKey(ctx context.Context, identity Identity, wrapped []byte) ([]byte, error)
}

// Engine resolves key identities and wraps/unwraps symmetric keys against a
// single Backend, per §4.6.
type Engine struct {
	backend Backend
}

func New(backend Backend) *Engine {
	return &Engine{backend: backend}
}

// Resolve implements the §4.6 resolve phase: a concrete requested version
// must exist and be enabled; "auto" selects the highest version; if no keys
// exist at all, one is generated.
func (e *Engine) Resolve(ctx context.Context, requestedVersion string) (Identity, error) {
	versions, err := e.backend.Versions(ctx)
	if err != nil {
		return "", fmt.Errorf("list key versions: %w", err)
	}

	if requestedVersion != "" && requestedVersion != Auto {
		n, err := strconv.Atoi(requestedVersion)
		if err != nil {
			return "", backyerrors.NewConfigurationError("requested key version must be an integer or \"auto\"")
		}
		want := IdentityForVersion(n)
		for _, v := range versions {
			if v == want {
				return want, nil
			}
		}
		return "", backyerrors.NewKeyNotFound(string(want))
	}

	if len(versions) == 0 {
		return e.backend.Generate(ctx)
	}

	highest := versions[0]
	highestN, _ := highest.Version()
	for _, v := range versions[1:] {
		n, ok := v.Version()
		if ok && n > highestN {
			highest, highestN = v, n
		}
	}
	return highest, nil
}

// Rotate explicitly generates a new key version. The engine never does this
// implicitly.
func (e *Engine) Rotate(ctx context.Context) (Identity, error) {
	return e.backend.Generate(ctx)
}

// WrapFreshKey generates a new AEAD symmetric key and wraps it under
// identity's public key, returning both the plaintext key (for immediate use
// by the AEAD service) and the wrapped bytes (for persistence alongside the
// backup).
func (e *Engine) WrapFreshKey(ctx context.Context, identity Identity) (plainKey, wrapped []byte, err error) {
	plainKey, err = aead.GenerateKey()
	if err != nil {
		return nil, nil, err
	}
	wrapped, err = e.backend.WrapSymmetricKey(ctx, identity, plainKey)
	if err != nil {
		return nil, nil, backyerrors.NewKeyWrapFailed(err)
	}
	return plainKey, wrapped, nil
}

// UnwrapKey recovers a previously wrapped symmetric key under identity.
func (e *Engine) UnwrapKey(ctx context.Context, identity Identity, wrapped []byte) ([]byte, error) {
	plainKey, err := e.backend.UnwrapSymmetricKey(ctx, identity, wrapped)
	if err != nil {
		return nil, backyerrors.NewKeyUnwrapFailed(err)
	}
	return plainKey, nil
}
