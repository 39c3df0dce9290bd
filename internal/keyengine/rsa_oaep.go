package keyengine

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
)

func rsaOAEPEncrypt(pub *rsa.PublicKey, plain []byte) ([]byte, error) {
	return rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, plain, nil)
}

func rsaOAEPDecrypt(priv *rsa.PrivateKey, wrapped []byte) ([]byte, error) {
	return rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, wrapped, nil)
}
