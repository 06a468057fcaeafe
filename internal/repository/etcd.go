package repository

import (
	"context"
	"errors"
	"strings"

	v1 "turnero/pkg/api/v1"
	"turnero/pkg/constraints"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const DefaultEtcdPrefix = "/turnero/sessions"

var ErrTxnNotApplied = errors.New("etcd transaction not applied")

// EtcdStore keeps each storage key under <prefix>/<profile>/<key>. Writes and deletes
// of the whole set go through one transaction.
type EtcdStore struct {
	client clientv3.KV
	dir    string
}

func NewEtcdStore(client clientv3.KV, prefix, profile string) *EtcdStore {
	if prefix == "" {
		prefix = DefaultEtcdPrefix
	}
	return &EtcdStore{
		client: client,
		dir:    strings.TrimRight(prefix, "/") + "/" + profile + "/",
	}
}

func (e *EtcdStore) key(name string) string {
	return e.dir + name
}

func (e *EtcdStore) Load(ctx context.Context) (*v1.Session, error) {
	resp, err := e.client.Get(ctx, e.dir, clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		fields[strings.TrimPrefix(string(kv.Key), e.dir)] = string(kv.Value)
	}
	return decodeFields(fields)
}

func (e *EtcdStore) Save(ctx context.Context, s *v1.Session) error {
	fields, err := encodeFields(s)
	if err != nil {
		return err
	}
	ops := make([]clientv3.Op, 0, len(constraints.SessionKeys))
	for _, name := range constraints.SessionKeys {
		if val, ok := fields[name]; ok {
			ops = append(ops, clientv3.OpPut(e.key(name), val))
		} else {
			ops = append(ops, clientv3.OpDelete(e.key(name)))
		}
	}
	resp, err := e.client.Txn(ctx).Then(ops...).Commit()
	if err != nil {
		return err
	}
	if !resp.Succeeded {
		return ErrTxnNotApplied
	}
	return nil
}

func (e *EtcdStore) Clear(ctx context.Context) error {
	_, err := e.client.Delete(ctx, e.dir, clientv3.WithPrefix())
	return err
}
