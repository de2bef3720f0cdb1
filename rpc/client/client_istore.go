package client

import (
	"sync"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/ValentinKolb/dbKV/rpc/serializer"
	"github.com/ValentinKolb/dbKV/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a client config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter: rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
	closeOnce sync.Once
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (s *rpcStore) Put(table db.Table, key, value string) (existed bool, err error) {
	resp, err := s.invoke(common.NewPutRequest(table, key, value))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *rpcStore) Get(table db.Table, key string) (value string, loaded bool, err error) {
	resp, err := s.invoke(common.NewGetRequest(table, key))
	if err != nil {
		return "", false, err
	}
	return resp.Value, resp.Ok, nil
}

func (s *rpcStore) Contains(table db.Table, key string) (loaded bool, err error) {
	resp, err := s.invoke(common.NewContainsRequest(table, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *rpcStore) Remove(table db.Table, key string) (removed bool, err error) {
	resp, err := s.invoke(common.NewRemoveRequest(table, key))
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (s *rpcStore) Size(table db.Table) (count int, err error) {
	resp, err := s.invoke(common.NewSizeRequest(table))
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// Iterator fetches all keys of table at once, the returned iterator works on that snapshot
func (s *rpcStore) Iterator(table db.Table) (it store.KeyIterator, err error) {
	resp, err := s.invoke(common.NewKeysRequest(table))
	if err != nil {
		return nil, err
	}
	return newSliceIterator(resp.Keys), nil
}

func (s *rpcStore) HealthCheck() []health.Record {
	resp, err := s.invoke(common.NewHealthRequest())
	if err != nil {
		return []health.Record{
			health.NewRecord(health.StatusWarn, health.TopicDatabase, "RPC server is not available: "+err.Error()),
		}
	}
	return resp.Health
}

func (s *rpcStore) ServiceInfo() store.ServiceInfo {
	resp, err := s.invoke(common.NewServiceRequest())
	if err != nil {
		Logger.Warningf("service info request failed: %v", err)
		return store.ServiceInfo{}
	}
	return store.ServiceInfo{StorageMethods: resp.StorageMethods}
}

func (s *rpcStore) GetDBInfo() (info db.DatabaseInfo, err error) {
	resp, err := s.invoke(common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}
	if resp.Info == nil {
		return db.DatabaseInfo{}, nil
	}
	return *resp.Info, nil
}

// Close closes the transport. The remote store stays open.
func (s *rpcStore) Close() {
	s.closeOnce.Do(func() {
		if err := s.transport.Close(); err != nil {
			Logger.Errorf("failed to close transport: %v", err)
		}
	})
}
