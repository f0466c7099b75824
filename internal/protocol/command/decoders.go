package command

import (
	"github.com/danmuck/iggywire/internal/protocol/wire"
)

// Command codes.
const (
	CodePing                uint32 = 1
	CodeGetStats            uint32 = 10
	CodeLoginUser           uint32 = 38
	CodeLogoutUser          uint32 = 39
	CodePollMessages        uint32 = 100
	CodeSendMessages        uint32 = 101
	CodeGetConsumerOffset   uint32 = 120
	CodeStoreConsumerOffset uint32 = 121
	CodeGetStream           uint32 = 200
	CodeGetStreams          uint32 = 201
	CodeCreateStream        uint32 = 202
	CodeDeleteStream        uint32 = 203
	CodeGetTopic            uint32 = 300
	CodeCreateTopic         uint32 = 302
	CodeGetConsumerGroup    uint32 = 600
	CodeCreateConsumerGroup uint32 = 602
)

// indexEntryLen is the size of one SendMessages index entry.
const indexEntryLen = 16

// Partitioning kinds used by SendMessages.
const (
	PartitioningBalanced    uint8 = 1
	PartitioningPartitionID uint8 = 2
	PartitioningMessagesKey uint8 = 3
)

func builtin() []Descriptor {
	return []Descriptor{
		{Code: CodePing, Name: "Ping", Request: decodeEmpty},
		{Code: CodeGetStats, Name: "GetStats", Request: decodeEmpty},
		{Code: CodeLoginUser, Name: "LoginUser", Request: decodeLoginUserRequest, Response: decodeLoginUserResponse},
		{Code: CodeLogoutUser, Name: "LogoutUser", Request: decodeEmpty},
		{Code: CodePollMessages, Name: "PollMessages", Request: decodePollMessagesRequest},
		{Code: CodeSendMessages, Name: "SendMessages", Request: decodeSendMessagesRequest},
		{Code: CodeGetConsumerOffset, Name: "GetConsumerOffset", Request: decodeGetConsumerOffsetRequest},
		{Code: CodeStoreConsumerOffset, Name: "StoreConsumerOffset", Request: decodeStoreConsumerOffsetRequest},
		{Code: CodeGetStream, Name: "GetStream", Request: decodeStreamIDRequest},
		{Code: CodeGetStreams, Name: "GetStreams", Request: decodeEmpty},
		{Code: CodeCreateStream, Name: "CreateStream", Request: decodeCreateStreamRequest},
		{Code: CodeDeleteStream, Name: "DeleteStream", Request: decodeStreamIDRequest},
		{Code: CodeGetTopic, Name: "GetTopic", Request: decodeGetTopicRequest},
		{Code: CodeCreateTopic, Name: "CreateTopic", Request: decodeCreateTopicRequest, Response: decodeCreateTopicResponse},
		{Code: CodeGetConsumerGroup, Name: "GetConsumerGroup", Request: decodeGetConsumerGroupRequest},
		{Code: CodeCreateConsumerGroup, Name: "CreateConsumerGroup", Request: decodeCreateConsumerGroupRequest},
	}
}

func decodeEmpty(payload []byte) (wire.Fields, error) {
	return wire.NewDecoder(payload).Finish()
}

func decodeLoginUserRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.String8("username")
	d.String8("password")
	if d.Len() > 0 {
		d.String32("version")
	}
	if d.Len() > 0 {
		d.String32("context")
	}
	return d.Finish()
}

func decodeLoginUserResponse(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Uint32("user_id")
	return d.Finish()
}

func decodeCreateTopicRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Identifier("stream_id")
	d.String8("name")
	d.Uint32("partitions_count")
	d.Uint8("compression_algorithm")
	d.Uint64("message_expiry")
	d.Uint64("max_topic_size")
	if d.Len() > 0 {
		d.Uint8("replication_factor")
	}
	if d.Len() > 0 {
		d.Uint32("topic_id")
	}
	return d.Finish()
}

func decodeCreateTopicResponse(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Uint32("topic_id")
	d.Uint64("created_at")
	d.String8("name")
	d.Uint32("partitions_count")
	d.Uint64("size")
	d.Uint64("messages_count")
	return d.Finish()
}

func decodeCreateStreamRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Uint32("stream_id")
	d.String8("name")
	return d.Finish()
}

func decodeStreamIDRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Identifier("stream_id")
	return d.Finish()
}

func decodeGetTopicRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Identifier("stream_id")
	d.Identifier("topic_id")
	return d.Finish()
}

func decodeConsumerPrefix(d *wire.Decoder) {
	d.Uint8("consumer_kind")
	d.Identifier("consumer_id")
	d.Identifier("stream_id")
	d.Identifier("topic_id")
	d.Uint32("partition_id")
}

func decodePollMessagesRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	decodeConsumerPrefix(d)
	d.Uint8("strategy_kind")
	d.Uint64("strategy_value")
	d.Uint32("count")
	d.Uint8("auto_commit")
	return d.Finish()
}

func decodeGetConsumerOffsetRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	decodeConsumerPrefix(d)
	return d.Finish()
}

func decodeStoreConsumerOffsetRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	decodeConsumerPrefix(d)
	d.Uint64("offset")
	return d.Finish()
}

func decodeSendMessagesRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Uint32("metadata_length")
	d.Identifier("stream_id")
	d.Identifier("topic_id")
	kind := d.Uint8("partitioning_kind")
	n := d.Uint8("partitioning_len")
	if kind == PartitioningPartitionID && n == 4 {
		d.Uint32("partition_id")
	} else if n > 0 {
		d.Bytes("partitioning_value", int(n))
	}
	count := d.Uint32("messages_count")
	d.Bytes("indexes", int(count)*indexEntryLen)
	d.Rest("messages")
	return d.Fields(), d.Err()
}

func decodeCreateConsumerGroupRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Identifier("stream_id")
	d.Identifier("topic_id")
	d.Uint32("group_id")
	d.String8("name")
	return d.Finish()
}

func decodeGetConsumerGroupRequest(payload []byte) (wire.Fields, error) {
	d := wire.NewDecoder(payload)
	d.Identifier("stream_id")
	d.Identifier("topic_id")
	d.Identifier("group_id")
	return d.Finish()
}
