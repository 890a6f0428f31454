package jwtx

import (
	"crypto/rsa"
	"errors"
	"sync"
)

var ErrNoKey = errors.New("jwtx: key not found")

// KeySet holds public verification keys in memory, indexed by kid. Safe for
// concurrent use; the remote JWKS cache swaps its contents while validators
// read from it.
type KeySet struct {
	mu   sync.RWMutex
	jks  JWKS
	pub  map[string]*rsa.PublicKey
	keys []*rsa.PublicKey // insertion order, for tokens without a kid
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{
		pub: make(map[string]*rsa.PublicKey),
	}
}

// KeySetFromJWKS builds a KeySet from a fetched JWKS. Keys we can't use
// (non-RSA, encryption keys) are skipped; ErrNoKey is returned when none
// are left.
func KeySetFromJWKS(jwks JWKS) (*KeySet, error) {
	k := NewKeySet()
	if err := k.ResetFromJWKS(jwks); err != nil {
		return nil, err
	}
	return k, nil
}

// AddSigner registers a Signer's public JWK into the KeySet.
func (k *KeySet) AddSigner(s Signer) error {
	return k.AddJWK(s.PublicJWK())
}

// AddJWK adds a JWK to the KeySet.
func (k *KeySet) AddJWK(j JWK) error {
	key, err := j.RSAPublicKey()
	if err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	if j.Kid != "" {
		k.pub[j.Kid] = key
	}
	k.keys = append(k.keys, key)
	k.jks.Keys = append(k.jks.Keys, j)
	return nil
}

// Get returns the public key for the given kid.
func (k *KeySet) Get(kid string) (*rsa.PublicKey, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if pk, ok := k.pub[kid]; ok {
		return pk, nil
	}
	return nil, ErrNoKey
}

// All returns every key in the set.
func (k *KeySet) All() []*rsa.PublicKey {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := make([]*rsa.PublicKey, len(k.keys))
	copy(out, k.keys)
	return out
}

// PublicJWKS returns a snapshot of the KeySet's JWKS for HTTP serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return JWKS{Keys: append([]JWK(nil), k.jks.Keys...)}
}

// Len returns the number of usable keys.
func (k *KeySet) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys)
}

// ResetFromJWKS replaces all keys from a JWKS. Returns ErrNoKey if none of
// the keys were usable for signature verification.
func (k *KeySet) ResetFromJWKS(jwks JWKS) error {
	pub := make(map[string]*rsa.PublicKey, len(jwks.Keys))
	keys := make([]*rsa.PublicKey, 0, len(jwks.Keys))
	kept := make([]JWK, 0, len(jwks.Keys))

	for _, j := range jwks.Keys {
		if j.Use != "" && j.Use != "sig" {
			continue
		}
		key, err := j.RSAPublicKey()
		if err != nil {
			continue
		}
		if j.Kid != "" {
			pub[j.Kid] = key
		}
		keys = append(keys, key)
		kept = append(kept, j)
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.pub = pub
	k.keys = keys
	k.jks = JWKS{Keys: kept}

	if len(keys) == 0 {
		return ErrNoKey
	}
	return nil
}
