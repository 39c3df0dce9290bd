// AWS KMS backend: asymmetric key generation/wrap/unwrap delegated to KMS,
// with the alias convention backy_secret_key_<N>, grounded on the teacher's
// aws-sdk-go session construction idiom (internal/backup/storage_s3.go) and
// original_source/security/kms test expectations.
package keyengine

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kms"
)

// AWSKMSBackend implements Backend against AWS KMS asymmetric CMKs, one per
// key version, addressed by alias "alias/backy_secret_key_<N>".
type AWSKMSBackend struct {
	client *kms.KMS
}

// NewAWSKMSBackend builds a backend from an AWS region; credentials are
// resolved through the default provider chain, matching the teacher's
// S3StorageProvider session construction.
func NewAWSKMSBackend(region string) (*AWSKMSBackend, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, fmt.Errorf("create AWS session: %w", err)
	}
	return &AWSKMSBackend{client: kms.New(sess)}, nil
}

func aliasFor(identity Identity) string {
	return "alias/" + string(identity)
}

func (b *AWSKMSBackend) Versions(ctx context.Context) ([]Identity, error) {
	out, err := b.client.ListAliasesWithContext(ctx, &kms.ListAliasesInput{})
	if err != nil {
		return nil, fmt.Errorf("list KMS aliases: %w", err)
	}
	var ids []Identity
	for _, a := range out.Aliases {
		name := aws.StringValue(a.AliasName)
		if !strings.HasPrefix(name, "alias/backy_secret_key_") {
			continue
		}
		id := Identity(strings.TrimPrefix(name, "alias/"))
		if _, ok := id.Version(); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (b *AWSKMSBackend) Generate(ctx context.Context) (Identity, error) {
	versions, err := b.Versions(ctx)
	if err != nil {
		return "", err
	}
	next := 1
	for _, id := range versions {
		if n, ok := id.Version(); ok && n >= next {
			next = n + 1
		}
	}
	identity := IdentityForVersion(next)

	keyOut, err := b.client.CreateKeyWithContext(ctx, &kms.CreateKeyInput{
		KeyUsage: aws.String(kms.KeyUsageTypeEncryptDecrypt),
		KeySpec:  aws.String(kms.KeySpecRsa4096),
	})
	if err != nil {
		return "", fmt.Errorf("create KMS asymmetric key: %w", err)
	}

	_, err = b.client.CreateAliasWithContext(ctx, &kms.CreateAliasInput{
		AliasName:   aws.String(aliasFor(identity)),
		TargetKeyId: keyOut.KeyMetadata.KeyId,
	})
	if err != nil {
		return "", fmt.Errorf("alias KMS key %s: %w", identity, err)
	}

	return identity, nil
}

func (b *AWSKMSBackend) PublicKeyDER(ctx context.Context, identity Identity) ([]byte, error) {
	out, err := b.client.GetPublicKeyWithContext(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(aliasFor(identity)),
	})
	if err != nil {
		return nil, fmt.Errorf("get KMS public key %s: %w", identity, err)
	}
	return out.PublicKey, nil
}

func (b *AWSKMSBackend) WrapSymmetricKey(ctx context.Context, identity Identity, plainKey []byte) ([]byte, error) {
	out, err := b.client.EncryptWithContext(ctx, &kms.EncryptInput{
		KeyId:               aws.String(aliasFor(identity)),
		Plaintext:           plainKey,
		EncryptionAlgorithm: aws.String(kms.EncryptionAlgorithmSpecRsaesOaepSha256),
	})
	if err != nil {
		return nil, fmt.Errorf("KMS encrypt with %s: %w", identity, err)
	}
	return out.CiphertextBlob, nil
}

func (b *AWSKMSBackend) UnwrapSymmetricKey(ctx context.Context, identity Identity, wrapped []byte) ([]byte, error) {
	out, err := b.client.DecryptWithContext(ctx, &kms.DecryptInput{
		KeyId:               aws.String(aliasFor(identity)),
		CiphertextBlob:      wrapped,
		EncryptionAlgorithm: aws.String(kms.EncryptionAlgorithmSpecRsaesOaepSha256),
	})
	if err != nil {
		return nil, fmt.Errorf("KMS decrypt with %s: %w", identity, err)
	}
	return out.Plaintext, nil
}
