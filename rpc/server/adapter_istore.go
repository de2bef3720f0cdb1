package server

import (
	"fmt"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTHealth:
		return common.NewHealthResponse(s.HealthCheck())
	case common.MsgTService:
		return common.NewServiceResponse(s.ServiceInfo())
	case common.MsgTInfo:
		info, err := s.GetDBInfo()
		return common.NewInfoResponse(info, err)
	}

	// Every other message addresses a table
	table, err := db.ParseTable(req.Table)
	if err != nil {
		return common.NewErrorResponse(store.RetCInvalidArgument, err.Error())
	}

	switch req.MsgType {
	case common.MsgTKVPut:
		existed, err := s.Put(table, req.Key, req.Value)
		return common.NewPutResponse(existed, err)
	case common.MsgTKVGet:
		val, ok, err := s.Get(table, req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVContains:
		ok, err := s.Contains(table, req.Key)
		return common.NewContainsResponse(ok, err)
	case common.MsgTKVRemove:
		removed, err := s.Remove(table, req.Key)
		return common.NewRemoveResponse(removed, err)
	case common.MsgTKVSize:
		count, err := s.Size(table)
		return common.NewSizeResponse(count, err)
	case common.MsgTKVKeys:
		keys, err := drain(s, table)
		return common.NewKeysResponse(keys, err)
	default:
		return common.NewErrorResponse(
			store.RetCUnsupportedOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// drain reads every key of table into a slice
func drain(s store.IStore, table db.Table) ([]string, error) {
	it, err := s.Iterator(table)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	keys := make([]string, 0)
	for it.HasNext() {
		key, err := it.Next()
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
