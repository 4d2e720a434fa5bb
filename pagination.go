package dynamodel

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Paginator converts the last key seen by a query into an opaque cursor for
// clients, and a client cursor back into an exclusive start key.
type Paginator interface {
	// PageCursor generates a token from lastKey. Implementers return an
	// empty token for a nil or empty key.
	PageCursor(ctx context.Context, lastKey Item) (string, error)
	// StartKey decodes a cursor. Implementers return a nil item for an empty
	// or unusable cursor.
	StartKey(ctx context.Context, cursor string) (Item, error)
}

// TokenCodec is a Paginator that encrypts the ($id, $kt, $sk) triple of the
// last key under AES-256-GCM. The cipher key is the SHA-256 digest of the
// configured secret.
type TokenCodec struct {
	aead cipher.AEAD
}

var _ Paginator = (*TokenCodec)(nil)

// NewTokenCodec creates a codec keyed by secret. An empty secret is valid.
func NewTokenCodec(secret string) *TokenCodec {
	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		panic(err) // a 32 byte key always yields a cipher
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		panic(err)
	}
	return &TokenCodec{aead: aead}
}

// Encode returns the token for lastKey, or "" when lastKey is empty.
func (c *TokenCodec) Encode(lastKey Item) (string, error) {
	if len(lastKey) == 0 {
		return "", nil
	}
	triple := [3]string{
		stringAttr(lastKey, AttributeNameID),
		stringAttr(lastKey, AttributeNameKey),
		stringAttr(lastKey, AttributeNameSort),
	}
	plain, err := json.Marshal(triple)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := c.aead.Seal(nonce, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decode returns the key encoded in token. Any failure yields nil.
func (c *TokenCodec) Decode(token string) Item {
	if token == "" {
		return nil
	}
	data, err := base64.StdEncoding.DecodeString(token)
	if err != nil || len(data) < c.aead.NonceSize() {
		return nil
	}
	nonce, sealed := data[:c.aead.NonceSize()], data[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil
	}
	var triple []string
	if err := json.Unmarshal(plain, &triple); err != nil || len(triple) != 3 {
		return nil
	}
	key := Item{
		AttributeNameID:  &types.AttributeValueMemberS{Value: triple[0]},
		AttributeNameKey: &types.AttributeValueMemberS{Value: triple[1]},
	}
	if triple[2] != "" {
		key[AttributeNameSort] = &types.AttributeValueMemberS{Value: triple[2]}
	}
	return key
}

// PageCursor implements Paginator.
func (c *TokenCodec) PageCursor(_ context.Context, lastKey Item) (string, error) {
	return c.Encode(lastKey)
}

// StartKey implements Paginator. Unusable cursors restart from the beginning.
func (c *TokenCodec) StartKey(_ context.Context, cursor string) (Item, error) {
	return c.Decode(cursor), nil
}

func stringAttr(item Item, name string) string {
	if s, ok := item[name].(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}
