package e2ee

import "time"

// KeyPair is the public half of an identity's message-key material plus its
// lifecycle metadata. Private material never leaves the vault.
type KeyPair struct {
	KeyID string `json:"key_id"`
	// Identity that owns the pair.
	Identity string `json:"identity"`
	// EncryptionPublicKey is the base64 X25519 public key used for key wrapping.
	EncryptionPublicKey string `json:"encryption_public_key"`
	// SigningPublicKey is the base64 Ed25519 public key used to verify signatures.
	SigningPublicKey string    `json:"signing_public_key"`
	CreatedAt        time.Time `json:"created_at"`
	Deprecated       bool      `json:"deprecated"`
}

// EncryptedMessage is an immutable end-to-end encrypted payload. The content
// is sealed under a fresh symmetric key, which is wrapped for the receiver;
// the signature covers both ciphertext fields.
type EncryptedMessage struct {
	EncryptedContent string    `json:"encrypted_content"`
	EncryptedKey     string    `json:"encrypted_key"`
	SenderKeyID      string    `json:"sender_key_id"`
	ReceiverKeyID    string    `json:"receiver_key_id"`
	Signature        string    `json:"signature"`
	Timestamp        time.Time `json:"timestamp"`
}
