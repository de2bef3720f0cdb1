package client

import (
	"fmt"

	"github.com/ValentinKolb/dbKV/lib/logging"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/rpc/common"
	"github.com/ValentinKolb/dbKV/rpc/serializer"
	"github.com/ValentinKolb/dbKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger(logging.Client)
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req and returns the response message.
// Transport failures are reported as RetCUnavailable, errors carried by the
// response keep their code.
func (a *rpcClientAdapter) invoke(req *common.Message) (*common.Message, error) {
	reqBytes, err := a.serializer.Serialize(*req)
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "failed to serialize request", err)
	}

	respBytes, err := a.transport.Send(reqBytes)
	if err != nil {
		Logger.Debugf("%s request failed: %v", req.MsgType, err)
		return nil, store.WrapError(store.RetCUnavailable, "rpc server is not available", err)
	}

	resp := &common.Message{}
	if err := a.serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.WrapError(store.RetCInternalError, "failed to deserialize response", err)
	}

	// Check if the response is an error response
	if err := resp.ToError(); err != nil {
		return nil, err
	}
	if resp.MsgType == common.MsgTError {
		return nil, store.NewError(store.RetCInternalError, "rpc server returned an error without message")
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCInternalError,
			fmt.Sprintf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}
