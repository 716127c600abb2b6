package xauth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// Decrypter 解密配置中心下发的加密密码。
type Decrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// DecrypterFunc 将函数适配为 Decrypter。
type DecrypterFunc func(ciphertext string) (string, error)

// Decrypt 调用 f。
func (f DecrypterFunc) Decrypt(ciphertext string) (string, error) {
	return f(ciphertext)
}

// PlaintextDecrypter 原样返回输入，用于未配置密钥的环境。
type PlaintextDecrypter struct{}

// Decrypt 原样返回 ciphertext。
func (PlaintextDecrypter) Decrypt(ciphertext string) (string, error) {
	return ciphertext, nil
}

// AESGCMCipher 使用共享密钥的 AES-GCM。
// 密文格式为 base64(nonce || sealed)，nonce 长度 12 字节。
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCMCipher 创建 AES-GCM 加解密器，key 长度必须为 16、24 或 32 字节。
func NewAESGCMCipher(key []byte) (*AESGCMCipher, error) {
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, ErrInvalidKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("xauth: create aes cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("xauth: create gcm: %w", err)
	}
	return &AESGCMCipher{aead: aead}, nil
}

// Decrypt 解密 base64 编码的密文。
func (c *AESGCMCipher) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	nonceSize := c.aead.NonceSize()
	if len(raw) < nonceSize+c.aead.Overhead() {
		return "", fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	plain, err := c.aead.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecrypt, err)
	}
	return string(plain), nil
}

// Encrypt 生成随机 nonce 加密 plaintext，供配置下发工具使用。
func (c *AESGCMCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("xauth: generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}
