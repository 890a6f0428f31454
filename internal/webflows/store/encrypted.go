package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/idx"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/slogx"
)

// ErrUndecryptable is returned (wrapped in a StorageError) when a stored
// record can no longer be opened. The record has already been deleted.
var ErrUndecryptable = errors.New("store: record could not be decrypted")

var envelopeVersion = []byte("v1:")

// EncryptedOptions tunes an Encrypted store. The zero value is usable.
type EncryptedOptions struct {
	Policy KeyPolicy
	Logger *slog.Logger
	Now    func() time.Time
}

// Encrypted seals every value with AES-256-GCM before handing it to the
// backend. Data keys are generated here, wrapped with a key derived from the
// master key provider, and stored in KeysNamespace of the same backend.
//
// Record layout: "v1:" + data key ULID + ":" + nonce||ciphertext||tag, with
// namespace/key as additional data so records can't be swapped around.
type Encrypted struct {
	backend Store
	logger  *slog.Logger

	mu   sync.Mutex
	keys *dataKeys
}

var _ Store = (*Encrypted)(nil)

func NewEncrypted(backend Store, master cryptox.MasterKeyProvider, opts EncryptedOptions) *Encrypted {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Encrypted{
		backend: backend,
		logger:  slogx.OrDefault(opts.Logger),
		keys: &dataKeys{
			backend: backend,
			master:  master,
			policy:  opts.Policy.withDefaults(),
			now:     now,
		},
	}
}

func (e *Encrypted) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	raw, err := e.backend.Get(ctx, namespace, key)
	if err != nil {
		return nil, err
	}

	id, sealed, err := parseEnvelope(raw)
	if err != nil {
		return nil, e.discard(ctx, namespace, key, err)
	}

	e.mu.Lock()
	dek, err := e.keys.get(ctx, id)
	e.mu.Unlock()
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrKeyUnusable):
		return nil, e.discard(ctx, namespace, key, err)
	case err != nil:
		return nil, NewStorageError("read "+namespace, err)
	}

	plaintext, err := cryptox.Open(dek, sealed, recordAAD(namespace, key))
	if err != nil {
		return nil, e.discard(ctx, namespace, key, err)
	}
	return plaintext, nil
}

func (e *Encrypted) Put(ctx context.Context, namespace, key string, value []byte) error {
	e.mu.Lock()
	id, dek, err := e.keys.writeKey(ctx)
	if errors.Is(err, ErrKeyUnusable) {
		// Master key changed under us. Old data is lost either way, start over
		// with a clean set so writes work again.
		e.logger.Error("data key unusable, resetting encryption keys", "error", err)
		if err = e.keys.wipe(ctx); err == nil {
			id, dek, err = e.keys.rotate(ctx)
		}
	}
	e.mu.Unlock()
	if err != nil {
		return NewStorageError("write "+namespace, err)
	}

	sealed, err := cryptox.Seal(dek, value, recordAAD(namespace, key))
	if err != nil {
		return NewStorageError("write "+namespace, err)
	}

	if err := e.backend.Put(ctx, namespace, key, buildEnvelope(id, sealed)); err != nil {
		return NewStorageError("write "+namespace, err)
	}
	return nil
}

func (e *Encrypted) Delete(ctx context.Context, namespace, key string) error {
	return e.backend.Delete(ctx, namespace, key)
}

func (e *Encrypted) Keys(ctx context.Context, namespace string) ([]string, error) {
	return e.backend.Keys(ctx, namespace)
}

func (e *Encrypted) Close() error { return e.backend.Close() }

// PurgeExpiredKeys removes data keys past their retention. Records still
// sealed with them will be discarded on their next read.
func (e *Encrypted) PurgeExpiredKeys(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.keys.purgeExpired(ctx)
}

// KeyStates reports the state of every data key, oldest first.
func (e *Encrypted) KeyStates(ctx context.Context) (map[idx.ID]KeyState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.keys.load(ctx); err != nil {
		return nil, err
	}
	now := e.keys.now()
	out := make(map[idx.ID]KeyState, len(e.keys.ids))
	for _, id := range e.keys.ids {
		out[id] = e.keys.policy.State(id, now)
	}
	return out, nil
}

// discard deletes a record we can't read so the next read starts clean.
func (e *Encrypted) discard(ctx context.Context, namespace, key string, cause error) error {
	e.logger.Error("discarding unreadable record", "namespace", namespace, "key", key, "error", cause)
	if err := e.backend.Delete(ctx, namespace, key); err != nil {
		e.logger.Error("failed to discard unreadable record", "namespace", namespace, "key", key, "error", err)
	}
	return NewStorageError("read "+namespace, fmt.Errorf("%w: %w", ErrUndecryptable, cause))
}

func recordAAD(namespace, key string) []byte {
	return []byte(namespace + "/" + key)
}

func buildEnvelope(id idx.ID, sealed []byte) []byte {
	out := make([]byte, 0, len(envelopeVersion)+len(id)+1+len(sealed))
	out = append(out, envelopeVersion...)
	out = append(out, id...)
	out = append(out, ':')
	return append(out, sealed...)
}

func parseEnvelope(raw []byte) (idx.ID, []byte, error) {
	rest, ok := bytes.CutPrefix(raw, envelopeVersion)
	if !ok {
		return idx.Zero, nil, errors.New("unknown record format")
	}
	rawID, sealed, ok := bytes.Cut(rest, []byte(":"))
	if !ok {
		return idx.Zero, nil, errors.New("truncated record")
	}
	id, err := idx.Parse(string(rawID))
	if err != nil {
		return idx.Zero, nil, fmt.Errorf("bad key id: %w", err)
	}
	return id, sealed, nil
}
