package rawdata

import (
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Payload is one upstream response kept verbatim for later replay.
type Payload struct {
	Source      string
	EntityType  string
	EntityKey   string
	PayloadJSON string
	PayloadHash string
}

func NewPayload(source, entityType, entityKey string, raw []byte) Payload {
	return Payload{
		Source:      source,
		EntityType:  entityType,
		EntityKey:   entityKey,
		PayloadJSON: string(raw),
		PayloadHash: Hash(raw),
	}
}

// Hash is the hex xxhash64 digest used to skip rewriting unchanged payloads.
func Hash(raw []byte) string {
	return strconv.FormatUint(xxhash.Sum64(raw), 16)
}
