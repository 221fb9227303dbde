// Package e2ee manages per-identity message key pairs and end-to-end message
// encryption: X25519 key agreement for wrapping, AES-256-GCM for content and
// Ed25519 signatures for sender authenticity.
package e2ee

import (
	"context"
	"crypto/ecdh"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/family-messenger/securecore/internal/secerr"
	"github.com/family-messenger/securecore/internal/vault"
)

const (
	privateTokenPrefix = "e2ee_private_"
	integrityToken     = "integrity_test"
)

// Service owns the key-pair lifecycle and message encryption. Private key
// material is sealed under a key derived from identity and key ID, then
// persisted through the vault's encrypted token store.
type Service struct {
	vault   *vault.Vault
	keyring Keyring
	logger  *slog.Logger
	now     func() time.Time
}

// NewService builds a key-exchange service.
func NewService(v *vault.Vault, keyring Keyring, logger *slog.Logger) *Service {
	return &Service{vault: v, keyring: keyring, logger: logger, now: time.Now}
}

type privateMaterial struct {
	encryption *ecdh.PrivateKey
	signing    ed25519.PrivateKey
}

// GenerateKeyPair creates a fresh X25519+Ed25519 pair for identity, seals the
// private halves into the vault and records the public halves in the keyring.
func (s *Service) GenerateKeyPair(ctx context.Context, identity string) (KeyPair, error) {
	if identity == "" {
		return KeyPair{}, fmt.Errorf("identity is required: %w", secerr.ErrValidation)
	}

	encPriv, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate encryption key: %w", err)
	}
	sigPub, sigPriv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate signing key: %w", err)
	}

	keyID := uuid.NewString()
	material := append(append([]byte{}, encPriv.Bytes()...), sigPriv.Seed()...)
	if err := s.storePrivateMaterial(ctx, identity, keyID, material); err != nil {
		return KeyPair{}, err
	}

	pair := KeyPair{
		KeyID:               keyID,
		Identity:            identity,
		EncryptionPublicKey: base64.StdEncoding.EncodeToString(encPriv.PublicKey().Bytes()),
		SigningPublicKey:    base64.StdEncoding.EncodeToString(sigPub),
		CreatedAt:           s.now().UTC(),
	}
	if err := s.keyring.Save(ctx, pair); err != nil {
		return KeyPair{}, err
	}

	s.logger.Info("key pair generated", "identity", identity, "key_id", keyID)
	return pair, nil
}

// storePrivateMaterial seals material under a key derived from identity and
// keyID before handing it to the vault, which encrypts once more under the
// master key.
func (s *Service) storePrivateMaterial(ctx context.Context, identity, keyID string, material []byte) error {
	sealKey := vault.DeriveKey(identity+"/"+keyID, []byte(keyID))
	sealed, err := vault.Seal(sealKey, material)
	if err != nil {
		return fmt.Errorf("seal private material: %w", err)
	}
	return s.vault.StoreToken(ctx, privateTokenPrefix+identity+"_"+keyID, sealed)
}

func (s *Service) loadPrivateMaterial(ctx context.Context, identity, keyID string) (privateMaterial, error) {
	sealed, err := s.vault.GetToken(ctx, privateTokenPrefix+identity+"_"+keyID)
	if err != nil {
		return privateMaterial{}, err
	}
	sealKey := vault.DeriveKey(identity+"/"+keyID, []byte(keyID))
	material, err := vault.Open(sealKey, sealed)
	if err != nil {
		return privateMaterial{}, err
	}
	if len(material) != 64 {
		return privateMaterial{}, fmt.Errorf("private material corrupt: %w", secerr.ErrIntegrity)
	}

	encPriv, err := ecdh.X25519().NewPrivateKey(material[:32])
	if err != nil {
		return privateMaterial{}, fmt.Errorf("private material corrupt: %w", secerr.ErrIntegrity)
	}
	sigPriv := ed25519.NewKeyFromSeed(material[32:])
	return privateMaterial{encryption: encPriv, signing: sigPriv}, nil
}

// EncryptMessage seals content for the receiver: a fresh 32-byte message key
// encrypts the content, an ephemeral X25519 exchange with the receiver's
// public key wraps the message key, and the sender's Ed25519 key signs both
// ciphertext fields.
func (s *Service) EncryptMessage(ctx context.Context, content, senderID, senderKeyID, receiverPublicKey, receiverKeyID string) (EncryptedMessage, error) {
	receiverPub, err := decodeX25519Public(receiverPublicKey)
	if err != nil {
		return EncryptedMessage{}, err
	}

	messageKey := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, messageKey); err != nil {
		return EncryptedMessage{}, fmt.Errorf("generate message key: %w", err)
	}
	sealedContent, err := sealBytes(messageKey, []byte(content))
	if err != nil {
		return EncryptedMessage{}, err
	}

	ephemeral, err := ecdh.X25519().GenerateKey(rand.Reader)
	if err != nil {
		return EncryptedMessage{}, fmt.Errorf("generate ephemeral key: %w", err)
	}
	shared, err := ephemeral.ECDH(receiverPub)
	if err != nil {
		return EncryptedMessage{}, fmt.Errorf("key agreement: %w", err)
	}
	kek, err := wrapKey(shared)
	if err != nil {
		return EncryptedMessage{}, err
	}
	wrapped, err := sealBytes(kek, messageKey)
	if err != nil {
		return EncryptedMessage{}, err
	}

	sender, err := s.loadPrivateMaterial(ctx, senderID, senderKeyID)
	if err != nil {
		return EncryptedMessage{}, err
	}

	msg := EncryptedMessage{
		EncryptedContent: base64.StdEncoding.EncodeToString(sealedContent),
		EncryptedKey:     base64.StdEncoding.EncodeToString(append(ephemeral.PublicKey().Bytes(), wrapped...)),
		SenderKeyID:      senderKeyID,
		ReceiverKeyID:    receiverKeyID,
		Timestamp:        s.now().UTC(),
	}
	signature := ed25519.Sign(sender.signing, []byte(msg.EncryptedContent+msg.EncryptedKey))
	msg.Signature = base64.StdEncoding.EncodeToString(signature)
	return msg, nil
}

// DecryptMessage verifies the sender signature before touching any key
// material; a mismatch fails with an integrity error and no decryption is
// attempted. On success the receiver's private key unwraps the message key
// and the content is opened.
func (s *Service) DecryptMessage(ctx context.Context, msg EncryptedMessage, receiverID, senderSigningPublicKey string) (string, error) {
	signingPub, err := base64.StdEncoding.DecodeString(senderSigningPublicKey)
	if err != nil || len(signingPub) != ed25519.PublicKeySize {
		return "", fmt.Errorf("sender signing key malformed: %w", secerr.ErrValidation)
	}
	signature, err := base64.StdEncoding.DecodeString(msg.Signature)
	if err != nil {
		return "", fmt.Errorf("signature malformed: %w", secerr.ErrIntegrity)
	}
	if !ed25519.Verify(ed25519.PublicKey(signingPub), []byte(msg.EncryptedContent+msg.EncryptedKey), signature) {
		return "", fmt.Errorf("message signature mismatch: %w", secerr.ErrIntegrity)
	}

	receiver, err := s.loadPrivateMaterial(ctx, receiverID, msg.ReceiverKeyID)
	if err != nil {
		return "", err
	}

	keyBlob, err := base64.StdEncoding.DecodeString(msg.EncryptedKey)
	if err != nil || len(keyBlob) <= 32 {
		return "", fmt.Errorf("encrypted key malformed: %w", secerr.ErrIntegrity)
	}
	ephemeralPub, err := ecdh.X25519().NewPublicKey(keyBlob[:32])
	if err != nil {
		return "", fmt.Errorf("ephemeral key malformed: %w", secerr.ErrIntegrity)
	}
	shared, err := receiver.encryption.ECDH(ephemeralPub)
	if err != nil {
		return "", fmt.Errorf("key agreement: %w", err)
	}
	kek, err := wrapKey(shared)
	if err != nil {
		return "", err
	}
	messageKey, err := openBytes(kek, keyBlob[32:])
	if err != nil {
		return "", err
	}

	sealedContent, err := base64.StdEncoding.DecodeString(msg.EncryptedContent)
	if err != nil {
		return "", fmt.Errorf("encrypted content malformed: %w", secerr.ErrIntegrity)
	}
	content, err := openBytes(messageKey, sealedContent)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// RotateKeys issues a fresh pair for identity and marks every prior pair
// deprecated. Deprecated pairs are retained so historical messages stay
// decryptable until explicit cleanup.
func (s *Service) RotateKeys(ctx context.Context, identity string) (KeyPair, error) {
	existing, err := s.keyring.ListByIdentity(ctx, identity)
	if err != nil {
		return KeyPair{}, err
	}

	pair, err := s.GenerateKeyPair(ctx, identity)
	if err != nil {
		return KeyPair{}, err
	}

	for _, old := range existing {
		if old.Deprecated {
			continue
		}
		if err := s.keyring.MarkDeprecated(ctx, identity, old.KeyID); err != nil {
			return KeyPair{}, err
		}
	}

	s.logger.Info("keys rotated", "identity", identity, "key_id", pair.KeyID, "deprecated", len(existing))
	return pair, nil
}

// VerifyKeyIntegrity runs a seal/open self-test with the stored private
// material and checks the public halves still match the keyring record.
// Returns false rather than an error on any failure.
func (s *Service) VerifyKeyIntegrity(ctx context.Context, identity, keyID string) bool {
	material, err := s.loadPrivateMaterial(ctx, identity, keyID)
	if err != nil {
		return false
	}

	sealed, err := sealBytes(material.encryption.Bytes(), []byte(integrityToken))
	if err != nil {
		return false
	}
	opened, err := openBytes(material.encryption.Bytes(), sealed)
	if err != nil || string(opened) != integrityToken {
		return false
	}

	pair, err := s.keyring.Get(ctx, identity, keyID)
	if err != nil {
		return false
	}
	encPub := base64.StdEncoding.EncodeToString(material.encryption.PublicKey().Bytes())
	sigPub := base64.StdEncoding.EncodeToString(material.signing.Public().(ed25519.PublicKey))
	return pair.EncryptionPublicKey == encPub && pair.SigningPublicKey == sigPub
}

// CleanupDeprecatedKeys removes deprecated pairs older than the given age,
// along with their sealed private material. Reports how many were removed.
func (s *Service) CleanupDeprecatedKeys(ctx context.Context, identity string, olderThan time.Duration) (int, error) {
	pairs, err := s.keyring.ListByIdentity(ctx, identity)
	if err != nil {
		return 0, err
	}

	cutoff := s.now().Add(-olderThan)
	removed := 0
	for _, pair := range pairs {
		if !pair.Deprecated || pair.CreatedAt.After(cutoff) {
			continue
		}
		if err := s.keyring.Delete(ctx, identity, pair.KeyID); err != nil {
			return removed, err
		}
		if err := s.vault.RemoveToken(ctx, privateTokenPrefix+identity+"_"+pair.KeyID); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		s.logger.Info("deprecated keys removed", "identity", identity, "count", removed)
	}
	return removed, nil
}

func decodeX25519Public(encoded string) (*ecdh.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("public key malformed: %w", secerr.ErrValidation)
	}
	pub, err := ecdh.X25519().NewPublicKey(raw)
	if err != nil {
		return nil, fmt.Errorf("public key malformed: %w", secerr.ErrValidation)
	}
	return pub, nil
}
