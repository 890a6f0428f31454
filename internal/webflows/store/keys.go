package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/schibsted/account-sdk-android-web-sub000/pkg/cryptox"
	"github.com/schibsted/account-sdk-android-web-sub000/pkg/idx"
)

// KeysNamespace is where wrapped data keys live in the underlying store.
const KeysNamespace = "webflows.keys"

// Default data key lifecycle.
const (
	DefaultKeyLifetime  = 90 * 24 * time.Hour
	DefaultRotateBefore = 7 * 24 * time.Hour
	DefaultKeyRetention = 365 * 24 * time.Hour
)

var kekInfo = []byte("webflows data key wrapping v1")

// ErrKeyUnusable means a data key exists but can't be unwrapped, typically
// because the master key changed.
var ErrKeyUnusable = errors.New("store: data key unusable")

// KeyState is where a data key is in its life.
type KeyState int

const (
	KeyActive     KeyState = iota // used for writes
	KeyNearExpiry                 // still readable; the next write rotates
	KeyRetired                    // decrypt only
	KeyExpired                    // purged by housekeeping
)

func (s KeyState) String() string {
	switch s {
	case KeyActive:
		return "active"
	case KeyNearExpiry:
		return "near_expiry"
	case KeyRetired:
		return "retired"
	default:
		return "expired"
	}
}

// KeyPolicy sets the age thresholds. The key id is a ULID so its age comes
// from the id itself.
type KeyPolicy struct {
	Lifetime     time.Duration // age at which a key stops being readable for new writes
	RotateBefore time.Duration // how long before Lifetime writes start using a fresh key
	Retention    time.Duration // how long after Lifetime a retired key is kept for reads
}

func (p KeyPolicy) withDefaults() KeyPolicy {
	if p.Lifetime <= 0 {
		p.Lifetime = DefaultKeyLifetime
	}
	if p.RotateBefore <= 0 || p.RotateBefore >= p.Lifetime {
		p.RotateBefore = min(DefaultRotateBefore, p.Lifetime/2)
	}
	if p.Retention <= 0 {
		p.Retention = DefaultKeyRetention
	}
	return p
}

// State classifies key id at now.
func (p KeyPolicy) State(id idx.ID, now time.Time) KeyState {
	age := now.Sub(id.Time())
	switch {
	case age >= p.Lifetime+p.Retention:
		return KeyExpired
	case age >= p.Lifetime:
		return KeyRetired
	case age >= p.Lifetime-p.RotateBefore:
		return KeyNearExpiry
	default:
		return KeyActive
	}
}

// dataKeys caches unwrapped data keys. Callers hold Encrypted.mu.
type dataKeys struct {
	backend Store
	master  cryptox.MasterKeyProvider
	policy  KeyPolicy
	now     func() time.Time

	kek    []byte
	loaded bool
	ids    []idx.ID // sorted oldest first
	keys   map[idx.ID][]byte
}

func (k *dataKeys) loadKEK(ctx context.Context) ([]byte, error) {
	if k.kek != nil {
		return k.kek, nil
	}
	material, err := k.master.MasterKey(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load master key: %w", err)
	}
	kek, err := cryptox.DeriveKey(material, kekInfo)
	if err != nil {
		return nil, err
	}
	k.kek = kek
	return kek, nil
}

func (k *dataKeys) load(ctx context.Context) error {
	if k.loaded {
		return nil
	}

	names, err := k.backend.Keys(ctx, KeysNamespace)
	if err != nil {
		return fmt.Errorf("failed to list data keys: %w", err)
	}

	ids := make([]idx.ID, 0, len(names))
	for _, n := range names {
		id, err := idx.Parse(n)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	slices.SortFunc(ids, idx.Compare)

	k.ids = ids
	k.keys = make(map[idx.ID][]byte, len(ids))
	k.loaded = true
	return nil
}

// get unwraps data key id.
func (k *dataKeys) get(ctx context.Context, id idx.ID) ([]byte, error) {
	if err := k.load(ctx); err != nil {
		return nil, err
	}
	if dek, ok := k.keys[id]; ok {
		return dek, nil
	}

	wrapped, err := k.backend.Get(ctx, KeysNamespace, id.String())
	if err != nil {
		return nil, err
	}

	kek, err := k.loadKEK(ctx)
	if err != nil {
		return nil, err
	}

	dek, err := cryptox.Open(kek, wrapped, keyAAD(id))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrKeyUnusable, id, err)
	}
	k.keys[id] = dek
	return dek, nil
}

// writeKey returns the key to seal new records with, rotating when the
// newest key is past Active.
func (k *dataKeys) writeKey(ctx context.Context) (idx.ID, []byte, error) {
	if err := k.load(ctx); err != nil {
		return idx.Zero, nil, err
	}

	if n := len(k.ids); n > 0 {
		newest := k.ids[n-1]
		if k.policy.State(newest, k.now()) == KeyActive {
			dek, err := k.get(ctx, newest)
			return newest, dek, err
		}
	}
	return k.rotate(ctx)
}

func (k *dataKeys) rotate(ctx context.Context) (idx.ID, []byte, error) {
	kek, err := k.loadKEK(ctx)
	if err != nil {
		return idx.Zero, nil, err
	}

	dek, err := cryptox.NewKey()
	if err != nil {
		return idx.Zero, nil, err
	}

	id := idx.NewAt(k.now())
	wrapped, err := cryptox.Seal(kek, dek, keyAAD(id))
	if err != nil {
		return idx.Zero, nil, err
	}
	if err := k.backend.Put(ctx, KeysNamespace, id.String(), wrapped); err != nil {
		return idx.Zero, nil, fmt.Errorf("failed to store data key: %w", err)
	}

	k.ids = append(k.ids, id)
	k.keys[id] = dek
	return id, dek, nil
}

// wipe drops every data key. Records sealed with them become unreadable.
func (k *dataKeys) wipe(ctx context.Context) error {
	if err := k.load(ctx); err != nil {
		return err
	}
	for _, id := range k.ids {
		if err := k.backend.Delete(ctx, KeysNamespace, id.String()); err != nil {
			return err
		}
	}
	k.ids = nil
	k.keys = make(map[idx.ID][]byte)
	k.kek = nil
	return nil
}

// purgeExpired deletes keys in KeyExpired and returns how many went.
func (k *dataKeys) purgeExpired(ctx context.Context) (int, error) {
	if err := k.load(ctx); err != nil {
		return 0, err
	}

	now := k.now()
	kept := k.ids[:0]
	purged := 0
	for _, id := range k.ids {
		if k.policy.State(id, now) != KeyExpired {
			kept = append(kept, id)
			continue
		}
		if err := k.backend.Delete(ctx, KeysNamespace, id.String()); err != nil {
			k.loaded = false // ids was partially rewritten, reload next time
			return purged, err
		}
		delete(k.keys, id)
		purged++
	}
	k.ids = kept
	return purged, nil
}

func keyAAD(id idx.ID) []byte {
	return []byte(KeysNamespace + "/" + id.String())
}
