package snapshot

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	ownerFieldSession   protowire.Number = 1
	ownerFieldPID       protowire.Number = 2
	ownerFieldCreatedAt protowire.Number = 3
)

var errOwnerRecord = errors.New("malformed spool owner record")

// ownerRecord identifies the process that owns a spool session directory.
// It is stored in protobuf wire format so other tools can inspect it.
type ownerRecord struct {
	Session   string
	PID       int
	CreatedAt time.Time
}

func (r ownerRecord) marshal() []byte {
	var b []byte
	b = protowire.AppendTag(b, ownerFieldSession, protowire.BytesType)
	b = protowire.AppendString(b, r.Session)
	b = protowire.AppendTag(b, ownerFieldPID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.PID))
	b = protowire.AppendTag(b, ownerFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(r.CreatedAt.UnixNano()))
	return b
}

func parseOwnerRecord(b []byte) (ownerRecord, error) {
	var rec ownerRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, fmt.Errorf("%w: %v", errOwnerRecord, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == ownerFieldSession && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return rec, fmt.Errorf("%w: %v", errOwnerRecord, protowire.ParseError(n))
			}
			rec.Session = v
			b = b[n:]
		case num == ownerFieldPID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, fmt.Errorf("%w: %v", errOwnerRecord, protowire.ParseError(n))
			}
			rec.PID = int(v)
			b = b[n:]
		case num == ownerFieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, fmt.Errorf("%w: %v", errOwnerRecord, protowire.ParseError(n))
			}
			rec.CreatedAt = time.Unix(0, int64(v))
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, fmt.Errorf("%w: %v", errOwnerRecord, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	if rec.Session == "" {
		return rec, fmt.Errorf("%w: missing session id", errOwnerRecord)
	}
	return rec, nil
}
