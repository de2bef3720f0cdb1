package serializer

import (
	"encoding/binary"
	"fmt"

	"github.com/ValentinKolb/dbKV/lib/db"
	"github.com/ValentinKolb/dbKV/lib/health"
	"github.com/ValentinKolb/dbKV/lib/store"
	"github.com/ValentinKolb/dbKV/rpc/common"
)

// NewBinarySerializer creates a new serializer using a custom binary format
// optimized for speed and efficiency
func NewBinarySerializer() IRPCSerializer {
	return &binarySerializerImpl{}
}

// binarySerializerImpl implements IRPCSerializer using a custom binary format.
//
// Layout: 1 byte MsgType, 2 bytes flags (big endian), followed by the present
// fields in flag order. Strings are prefixed with a uint32 length, lists with
// a uint32 element count.
type binarySerializerImpl struct {
}

// Bit flags to indicate which optional fields are present
const (
	hasTable          uint16 = 1 << 0
	hasKey            uint16 = 1 << 1
	hasValue          uint16 = 1 << 2
	hasOk             uint16 = 1 << 3
	hasCount          uint16 = 1 << 4
	hasKeys           uint16 = 1 << 5
	hasHealth         uint16 = 1 << 6
	hasStorageMethods uint16 = 1 << 7
	hasInfo           uint16 = 1 << 8
	hasErr            uint16 = 1 << 9
)

const headerSize = 3

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (b binarySerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	w := binWriter{buf: make([]byte, headerSize, b.sizeBytes(msg))}
	w.buf[0] = byte(msg.MsgType)

	var flags uint16

	if msg.Table != "" {
		flags |= hasTable
		w.putString(msg.Table)
	}
	if msg.Key != "" {
		flags |= hasKey
		w.putString(msg.Key)
	}
	if msg.Value != "" {
		flags |= hasValue
		w.putString(msg.Value)
	}
	if msg.Ok {
		flags |= hasOk
	}
	if msg.Count != 0 {
		flags |= hasCount
		w.putUint64(uint64(int64(msg.Count)))
	}
	if len(msg.Keys) > 0 {
		flags |= hasKeys
		w.putUint32(uint32(len(msg.Keys)))
		for _, k := range msg.Keys {
			w.putString(k)
		}
	}
	if len(msg.Health) > 0 {
		flags |= hasHealth
		w.putUint32(uint32(len(msg.Health)))
		for _, r := range msg.Health {
			w.buf = append(w.buf, byte(r.Status))
			w.putString(string(r.Topic))
			w.putString(r.Message)
		}
	}
	if len(msg.StorageMethods) > 0 {
		flags |= hasStorageMethods
		w.putUint32(uint32(len(msg.StorageMethods)))
		for _, m := range msg.StorageMethods {
			w.putString(string(m))
		}
	}
	if msg.Info != nil {
		flags |= hasInfo
		w.putString(msg.Info.Dialect)
		w.putString(msg.Info.DriverName)
		w.putString(msg.Info.DriverVersion)
		w.putString(msg.Info.ProductName)
		w.putString(msg.Info.ProductVersion)
		w.putString(msg.Info.Liveness)
	}
	if msg.Err != "" || msg.ErrCode != store.RetCSuccess {
		flags |= hasErr
		w.putString(msg.Err)
		w.putUint64(uint64(msg.ErrCode))
	}

	// Set flags after knowing which fields are present
	binary.BigEndian.PutUint16(w.buf[1:3], flags)

	return w.buf, nil
}

func (b binarySerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	if len(data) < headerSize {
		return fmt.Errorf("data too short for message header")
	}

	*msg = common.Message{MsgType: common.MessageType(data[0])}
	flags := binary.BigEndian.Uint16(data[1:3])
	r := binReader{data: data, pos: headerSize}

	if flags&hasTable != 0 {
		msg.Table = r.readString("table")
	}
	if flags&hasKey != 0 {
		msg.Key = r.readString("key")
	}
	if flags&hasValue != 0 {
		msg.Value = r.readString("value")
	}
	msg.Ok = flags&hasOk != 0
	if flags&hasCount != 0 {
		msg.Count = int(int64(r.readUint64("count")))
	}
	if flags&hasKeys != 0 {
		n := r.readCount("keys")
		msg.Keys = make([]string, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.Keys = append(msg.Keys, r.readString("keys"))
		}
	}
	if flags&hasHealth != 0 {
		n := r.readCount("health")
		msg.Health = make([]health.Record, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			status := health.Status(r.readByte("health status"))
			topic := health.Topic(r.readString("health topic"))
			msg.Health = append(msg.Health, health.NewRecord(status, topic, r.readString("health message")))
		}
	}
	if flags&hasStorageMethods != 0 {
		n := r.readCount("storage methods")
		msg.StorageMethods = make([]db.DataStorageMethod, 0, n)
		for i := 0; i < n && r.err == nil; i++ {
			msg.StorageMethods = append(msg.StorageMethods, db.DataStorageMethod(r.readString("storage methods")))
		}
	}
	if flags&hasInfo != 0 {
		msg.Info = &db.DatabaseInfo{
			Dialect:        r.readString("info"),
			DriverName:     r.readString("info"),
			DriverVersion:  r.readString("info"),
			ProductName:    r.readString("info"),
			ProductVersion: r.readString("info"),
			Liveness:       r.readString("info"),
		}
	}
	if flags&hasErr != 0 {
		msg.Err = r.readString("error")
		msg.ErrCode = store.RetCode(r.readUint64("error code"))
	}

	return r.err
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// sizeBytes calculates the total size needed for serialization
func (b binarySerializerImpl) sizeBytes(msg common.Message) int {
	size := headerSize
	str := func(s string) int { return 4 + len(s) }

	if msg.Table != "" {
		size += str(msg.Table)
	}
	if msg.Key != "" {
		size += str(msg.Key)
	}
	if msg.Value != "" {
		size += str(msg.Value)
	}
	if msg.Count != 0 {
		size += 8
	}
	if len(msg.Keys) > 0 {
		size += 4
		for _, k := range msg.Keys {
			size += str(k)
		}
	}
	if len(msg.Health) > 0 {
		size += 4
		for _, r := range msg.Health {
			size += 1 + str(string(r.Topic)) + str(r.Message)
		}
	}
	if len(msg.StorageMethods) > 0 {
		size += 4
		for _, m := range msg.StorageMethods {
			size += str(string(m))
		}
	}
	if msg.Info != nil {
		size += str(msg.Info.Dialect) + str(msg.Info.DriverName) + str(msg.Info.DriverVersion) + str(msg.Info.ProductName) +
			str(msg.Info.ProductVersion) + str(msg.Info.Liveness)
	}
	if msg.Err != "" || msg.ErrCode != store.RetCSuccess {
		size += str(msg.Err) + 8
	}

	return size
}

type binWriter struct {
	buf []byte
}

func (w *binWriter) putUint32(v uint32) {
	w.buf = binary.BigEndian.AppendUint32(w.buf, v)
}

func (w *binWriter) putUint64(v uint64) {
	w.buf = binary.BigEndian.AppendUint64(w.buf, v)
}

func (w *binWriter) putString(s string) {
	w.putUint32(uint32(len(s)))
	w.buf = append(w.buf, s...)
}

// binReader decodes the fields of a message in write order. It keeps the
// first decoding error in err, and every read after that error returns the
// zero value of its type without touching data.
type binReader struct {
	data []byte
	pos  int
	err  error
}

func (r *binReader) need(n int, field string) bool {
	if r.err != nil {
		return false
	}
	if n < 0 || r.pos+n > len(r.data) {
		r.err = fmt.Errorf("data too short for %s", field)
		return false
	}
	return true
}

func (r *binReader) readByte(field string) byte {
	if !r.need(1, field) {
		return 0
	}
	v := r.data[r.pos]
	r.pos++
	return v
}

func (r *binReader) readUint32(field string) uint32 {
	if !r.need(4, field) {
		return 0
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v
}

func (r *binReader) readUint64(field string) uint64 {
	if !r.need(8, field) {
		return 0
	}
	v := binary.BigEndian.Uint64(r.data[r.pos : r.pos+8])
	r.pos += 8
	return v
}

// readCount reads a list length and checks it against the remaining data,
// every element takes at least one byte.
func (r *binReader) readCount(field string) int {
	n := int(r.readUint32(field))
	if r.err == nil && n > len(r.data)-r.pos {
		r.err = fmt.Errorf("data too short for %s", field)
		return 0
	}
	return n
}

func (r *binReader) readString(field string) string {
	n := int(r.readUint32(field))
	if !r.need(n, field) {
		return ""
	}
	s := string(r.data[r.pos : r.pos+n])
	r.pos += n
	return s
}
