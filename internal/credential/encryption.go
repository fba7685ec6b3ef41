package credential

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"

	"golang.org/x/crypto/argon2"

	"github.com/flowforge/runtime/internal/value"
	"github.com/flowforge/runtime/pkg/errors"
)

// argon2id parameters chosen for interactive-but-still-costly derivation,
// matching the time/memory/thread knobs golang.org/x/crypto/argon2's IDKey
// exposes directly.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
	argonKeyLen  = 32 // AES-256
)

// Encryptor derives a per-credential key via Argon2id from a master secret
// and a per-key salt, and performs AES-256-GCM seal/open over the
// canonical state encoding.
type Encryptor struct {
	master *value.Secret
}

func NewEncryptor(master *value.Secret) *Encryptor {
	return &Encryptor{master: master}
}

// deriveKey returns a zeroizing Secret holding the Argon2id-derived
// AES-256 key for the given salt.
func (e *Encryptor) deriveKey(salt []byte) *value.Secret {
	var derived []byte
	e.master.Expose(func(b []byte) any {
		derived = argon2.IDKey(b, salt, argonTime, argonMemory, argonThreads, argonKeyLen)
		return nil
	})
	key := value.NewSecret(derived)
	for i := range derived {
		derived[i] = 0
	}
	return key
}

// Seal encrypts plaintext under a key derived from salt, returning a fresh
// random nonce alongside the ciphertext (which includes the GCM tag).
func (e *Encryptor) Seal(salt, plaintext []byte) (ciphertext, nonce []byte, err error) {
	key := e.deriveKey(salt)
	defer key.Close()

	var block cipher.Block
	keyErr := key.ExposeErr(func(b []byte) error {
		var innerErr error
		block, innerErr = aes.NewCipher(b)
		return innerErr
	})
	if keyErr != nil {
		return nil, nil, errors.Internal("construct AES cipher", keyErr)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, errors.Internal("construct AES-GCM", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, errors.Internal("read nonce", err)
	}

	ciphertext = gcm.Seal(nil, nonce, plaintext, nil)
	return ciphertext, nonce, nil
}

const gcmTagSize = 16

// SplitTag separates a GCM Seal() output into its ciphertext and trailing
// tag, since cipher.AEAD appends the tag to the ciphertext rather than
// returning it separately, while Record stores them as distinct fields.
func SplitTag(sealed []byte) (ciphertext, tag []byte) {
	if len(sealed) < gcmTagSize {
		return sealed, nil
	}
	split := len(sealed) - gcmTagSize
	return sealed[:split], sealed[split:]
}

// JoinTag reassembles a SplitTag pair into the form cipher.AEAD.Open
// expects.
func JoinTag(ciphertext, tag []byte) []byte {
	joined := make([]byte, 0, len(ciphertext)+len(tag))
	joined = append(joined, ciphertext...)
	joined = append(joined, tag...)
	return joined
}

// Open decrypts ciphertext (GCM tag included) using a key derived from
// salt and the given nonce. Any failure, wrong key or tampered
// ciphertext, collapses to DecryptionFailed without distinguishing cause.
func (e *Encryptor) Open(salt, nonce, ciphertext []byte) ([]byte, error) {
	key := e.deriveKey(salt)
	defer key.Close()

	var block cipher.Block
	keyErr := key.ExposeErr(func(b []byte) error {
		var innerErr error
		block, innerErr = aes.NewCipher(b)
		return innerErr
	})
	if keyErr != nil {
		return nil, errors.DecryptionFailed()
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.DecryptionFailed()
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.DecryptionFailed()
	}
	return plaintext, nil
}
