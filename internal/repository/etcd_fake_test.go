package repository

import (
	"bytes"
	"context"
	"errors"
	"sync"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// fakeKV is an in-memory clientv3.KV covering the calls EtcdStore makes.
type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	txns int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func inRange(key string, op clientv3.Op) bool {
	start, end := op.KeyBytes(), op.RangeBytes()
	k := []byte(key)
	if len(end) == 0 {
		return bytes.Equal(k, start)
	}
	return bytes.Compare(k, start) >= 0 && bytes.Compare(k, end) < 0
}

func (f *fakeKV) apply(op clientv3.Op) int64 {
	switch {
	case op.IsPut():
		f.data[string(op.KeyBytes())] = string(op.ValueBytes())
		return 1
	case op.IsDelete():
		var n int64
		for k := range f.data {
			if inRange(k, op) {
				delete(f.data, k)
				n++
			}
		}
		return n
	}
	return 0
}

func (f *fakeKV) Put(_ context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apply(clientv3.OpPut(key, val, opts...))
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	op := clientv3.OpGet(key, opts...)
	var kvs []*mvccpb.KeyValue
	for k, v := range f.data {
		if inRange(k, op) {
			kvs = append(kvs, &mvccpb.KeyValue{Key: []byte(k), Value: []byte(v)})
		}
	}
	return &clientv3.GetResponse{Kvs: kvs, Count: int64(len(kvs))}, nil
}

func (f *fakeKV) Delete(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := f.apply(clientv3.OpDelete(key, opts...))
	return &clientv3.DeleteResponse{Deleted: n}, nil
}

func (f *fakeKV) Compact(context.Context, int64, ...clientv3.CompactOption) (*clientv3.CompactResponse, error) {
	return nil, errors.New("fakeKV: compact not supported")
}

func (f *fakeKV) Do(context.Context, clientv3.Op) (clientv3.OpResponse, error) {
	return clientv3.OpResponse{}, errors.New("fakeKV: do not supported")
}

func (f *fakeKV) Txn(context.Context) clientv3.Txn {
	return &fakeTxn{kv: f}
}

// fakeTxn ignores comparisons; EtcdStore only issues unconditional transactions.
type fakeTxn struct {
	kv  *fakeKV
	ops []clientv3.Op
}

func (t *fakeTxn) If(...clientv3.Cmp) clientv3.Txn { return t }

func (t *fakeTxn) Then(ops ...clientv3.Op) clientv3.Txn {
	t.ops = append(t.ops, ops...)
	return t
}

func (t *fakeTxn) Else(...clientv3.Op) clientv3.Txn { return t }

func (t *fakeTxn) Commit() (*clientv3.TxnResponse, error) {
	t.kv.mu.Lock()
	defer t.kv.mu.Unlock()
	for _, op := range t.ops {
		t.kv.apply(op)
	}
	t.kv.txns++
	return &clientv3.TxnResponse{Succeeded: true}, nil
}
