// Local keystore backend: RSA key pairs kept as PEM files on disk, the
// private half encrypted at rest with a passphrase-derived AES key, grounded
// on original_source/security/security_engine.py's versioned-PEM-file model.
package keyengine

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"golang.org/x/crypto/pbkdf2"
)

const DefaultRSAKeyBits = 4096

var privateKeyFilePattern = regexp.MustCompile(`^private_backy_secret_key_(\d+)\.pem$`)

// LocalKeystore stores RSA key pairs under a directory, one PEM file pair
// per version: private_backy_secret_key_<N>.pem and
// public_backy_secret_key_<N>.pem.
type LocalKeystore struct {
	Dir        string
	Password   string
	RSAKeyBits int
}

func NewLocalKeystore(dir, password string) *LocalKeystore {
	return &LocalKeystore{Dir: dir, Password: password, RSAKeyBits: DefaultRSAKeyBits}
}

func (k *LocalKeystore) privatePath(id Identity) string {
	n, _ := id.Version()
	return filepath.Join(k.Dir, fmt.Sprintf("private_backy_secret_key_%d.pem", n))
}

func (k *LocalKeystore) publicPath(id Identity) string {
	n, _ := id.Version()
	return filepath.Join(k.Dir, fmt.Sprintf("public_backy_secret_key_%d.pem", n))
}

func (k *LocalKeystore) Versions(ctx context.Context) ([]Identity, error) {
	entries, err := os.ReadDir(k.Dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list keystore directory: %w", err)
	}
	var ids []Identity
	for _, e := range entries {
		m := privateKeyFilePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, IdentityForVersion(n))
	}
	return ids, nil
}

func (k *LocalKeystore) Generate(ctx context.Context) (Identity, error) {
	existing, err := k.Versions(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	for _, id := range existing {
		if n, ok := id.Version(); ok && n >= next {
			next = n + 1
		}
	}
	identity := IdentityForVersion(next)

	bits := k.RSAKeyBits
	if bits == 0 {
		bits = DefaultRSAKeyBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return "", fmt.Errorf("generate RSA key pair: %w", err)
	}

	if err := os.MkdirAll(k.Dir, 0o700); err != nil {
		return "", fmt.Errorf("create keystore directory: %w", err)
	}

	privDER := x509.MarshalPKCS1PrivateKey(priv)
	encryptedPrivDER, err := encryptWithPassword(privDER, k.Password)
	if err != nil {
		return "", fmt.Errorf("encrypt private key at rest: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "BACKY ENCRYPTED PRIVATE KEY", Bytes: encryptedPrivDER})
	if err := os.WriteFile(k.privatePath(identity), privPEM, 0o600); err != nil {
		return "", fmt.Errorf("write private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", fmt.Errorf("marshal public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(k.publicPath(identity), pubPEM, 0o644); err != nil {
		return "", fmt.Errorf("write public key: %w", err)
	}

	return identity, nil
}

func (k *LocalKeystore) PublicKeyDER(ctx context.Context, identity Identity) ([]byte, error) {
	pubPEM, err := os.ReadFile(k.publicPath(identity))
	if err != nil {
		return nil, fmt.Errorf("read public key %s: %w", identity, err)
	}
	block, _ := pem.Decode(pubPEM)
	if block == nil {
		return nil, fmt.Errorf("malformed public key PEM for %s", identity)
	}
	return block.Bytes, nil
}

func (k *LocalKeystore) loadPublicKey(identity Identity) (*rsa.PublicKey, error) {
	der, err := k.PublicKeyDER(context.Background(), identity)
	if err != nil {
		return nil, err
	}
	pub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse public key %s: %w", identity, err)
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("key %s is not an RSA public key", identity)
	}
	return rsaPub, nil
}

func (k *LocalKeystore) loadPrivateKey(identity Identity) (*rsa.PrivateKey, error) {
	privPEM, err := os.ReadFile(k.privatePath(identity))
	if err != nil {
		return nil, fmt.Errorf("read private key %s: %w", identity, err)
	}
	block, _ := pem.Decode(privPEM)
	if block == nil {
		return nil, fmt.Errorf("malformed private key PEM for %s", identity)
	}
	der, err := decryptWithPassword(block.Bytes, k.Password)
	if err != nil {
		return nil, fmt.Errorf("decrypt private key %s: %w", identity, err)
	}
	priv, err := x509.ParsePKCS1PrivateKey(der)
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", identity, err)
	}
	return priv, nil
}

func (k *LocalKeystore) WrapSymmetricKey(ctx context.Context, identity Identity, plainKey []byte) ([]byte, error) {
	pub, err := k.loadPublicKey(identity)
	if err != nil {
		return nil, err
	}
	return rsaOAEPEncrypt(pub, plainKey)
}

func (k *LocalKeystore) UnwrapSymmetricKey(ctx context.Context, identity Identity, wrapped []byte) ([]byte, error) {
	priv, err := k.loadPrivateKey(identity)
	if err != nil {
		return nil, err
	}
	return rsaOAEPDecrypt(priv, wrapped)
}

// encryptWithPassword/decryptWithPassword protect the private key at rest
// with a PBKDF2-derived AES-256-GCM key, mirroring the passphrase-derived
// key idiom the teacher repo uses for its own symmetric keys.
func encryptWithPassword(plain []byte, password string) ([]byte, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	key := pbkdf2.Key([]byte(password), salt, 100_000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)
	return append(append(salt, nonce...), ciphertext...), nil
}

func decryptWithPassword(blob []byte, password string) ([]byte, error) {
	if len(blob) < 16+12 {
		return nil, fmt.Errorf("encrypted private key blob too short")
	}
	salt, rest := blob[:16], blob[16:]
	key := pbkdf2.Key([]byte(password), salt, 100_000, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, fmt.Errorf("encrypted private key blob too short")
	}
	nonce, ciphertext := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
