package repository

import (
	"context"
	"errors"

	v1 "turnero/pkg/api/v1"

	"github.com/zalando/go-keyring"
)

const DefaultKeyringService = "turnero"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// KeyringStore keeps the session as one secret in the OS credential store.
type KeyringStore struct {
	Service string
	Profile string
}

func NewKeyringStore(service, profile string) *KeyringStore {
	if service == "" {
		service = DefaultKeyringService
	}
	return &KeyringStore{Service: service, Profile: profile}
}

func (k *KeyringStore) Load(_ context.Context) (*v1.Session, error) {
	secret, err := keyringGet(k.Service, k.Profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return decodeSession([]byte(secret))
}

func (k *KeyringStore) Save(_ context.Context, s *v1.Session) error {
	b, err := encodeSession(s)
	if err != nil {
		return err
	}
	return keyringSet(k.Service, k.Profile, string(b))
}

func (k *KeyringStore) Clear(_ context.Context) error {
	if err := keyringDelete(k.Service, k.Profile); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return err
	}
	return nil
}
