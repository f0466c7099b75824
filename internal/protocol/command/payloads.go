package command

import "github.com/danmuck/iggywire/internal/protocol/wire"

// LoginUser is the LoginUser request body. Empty Version or Context encode as a
// zero u32 length.
type LoginUser struct {
	Username string
	Password string
	Version  string
	Context  string
}

func (l LoginUser) Payload() []byte {
	return wire.NewWriter().
		PutString8(l.Username).
		PutString8(l.Password).
		PutString32(l.Version).
		PutString32(l.Context).
		Bytes()
}

// LoginUserResult is the LoginUser response body.
type LoginUserResult struct {
	UserID uint32
}

func (r LoginUserResult) Payload() []byte {
	return wire.NewWriter().PutUint32(r.UserID).Bytes()
}

// CreateTopic is the CreateTopic request body.
type CreateTopic struct {
	StreamID             wire.Identifier
	Name                 string
	PartitionsCount      uint32
	CompressionAlgorithm uint8
	MessageExpiry        uint64
	MaxTopicSize         uint64
	ReplicationFactor    uint8
	TopicID              uint32
}

func (c CreateTopic) Payload() []byte {
	return wire.NewWriter().
		PutIdentifier(c.StreamID).
		PutString8(c.Name).
		PutUint32(c.PartitionsCount).
		PutUint8(c.CompressionAlgorithm).
		PutUint64(c.MessageExpiry).
		PutUint64(c.MaxTopicSize).
		PutUint8(c.ReplicationFactor).
		PutUint32(c.TopicID).
		Bytes()
}

// CreateTopicResult is the CreateTopic response body.
type CreateTopicResult struct {
	TopicID         uint32
	CreatedAt       uint64
	Name            string
	PartitionsCount uint32
	Size            uint64
	MessagesCount   uint64
}

func (r CreateTopicResult) Payload() []byte {
	return wire.NewWriter().
		PutUint32(r.TopicID).
		PutUint64(r.CreatedAt).
		PutString8(r.Name).
		PutUint32(r.PartitionsCount).
		PutUint64(r.Size).
		PutUint64(r.MessagesCount).
		Bytes()
}

// CreateStream is the CreateStream request body.
type CreateStream struct {
	StreamID uint32
	Name     string
}

func (c CreateStream) Payload() []byte {
	return wire.NewWriter().PutUint32(c.StreamID).PutString8(c.Name).Bytes()
}

// ConsumerOffset addresses one consumer's position in a partition.
type ConsumerOffset struct {
	ConsumerKind uint8
	ConsumerID   wire.Identifier
	StreamID     wire.Identifier
	TopicID      wire.Identifier
	PartitionID  uint32
}

func (c ConsumerOffset) put(w *wire.Writer) *wire.Writer {
	return w.PutUint8(c.ConsumerKind).
		PutIdentifier(c.ConsumerID).
		PutIdentifier(c.StreamID).
		PutIdentifier(c.TopicID).
		PutUint32(c.PartitionID)
}

// GetConsumerOffsetPayload encodes a GetConsumerOffset request.
func GetConsumerOffsetPayload(c ConsumerOffset) []byte {
	return c.put(wire.NewWriter()).Bytes()
}

// StoreConsumerOffsetPayload encodes a StoreConsumerOffset request.
func StoreConsumerOffsetPayload(c ConsumerOffset, offset uint64) []byte {
	return c.put(wire.NewWriter()).PutUint64(offset).Bytes()
}

// PollMessages is the PollMessages request body.
type PollMessages struct {
	ConsumerOffset
	StrategyKind  uint8
	StrategyValue uint64
	Count         uint32
	AutoCommit    bool
}

func (p PollMessages) Payload() []byte {
	auto := uint8(0)
	if p.AutoCommit {
		auto = 1
	}
	return p.put(wire.NewWriter()).
		PutUint8(p.StrategyKind).
		PutUint64(p.StrategyValue).
		PutUint32(p.Count).
		PutUint8(auto).
		Bytes()
}

// SendMessages is a SendMessages request with one index entry per message.
type SendMessages struct {
	StreamID    wire.Identifier
	TopicID     wire.Identifier
	PartitionID uint32 // 0 means balanced partitioning
	Messages    [][]byte
}

func (s SendMessages) Payload() []byte {
	meta := wire.NewWriter().PutIdentifier(s.StreamID).PutIdentifier(s.TopicID)
	if s.PartitionID == 0 {
		meta.PutUint8(PartitioningBalanced).PutUint8(0)
	} else {
		meta.PutUint8(PartitioningPartitionID).PutUint8(4).PutUint32(s.PartitionID)
	}
	meta.PutUint32(uint32(len(s.Messages)))

	w := wire.NewWriter().PutUint32(uint32(meta.Len())).PutBytes(meta.Bytes())
	var cumulative uint32
	for _, m := range s.Messages {
		cumulative += uint32(len(m))
		w.PutUint64(0).PutUint32(cumulative).PutUint32(0)
	}
	for _, m := range s.Messages {
		w.PutBytes(m)
	}
	return w.Bytes()
}
