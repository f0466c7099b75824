package main

import (
	"fmt"
	"os"

	"github.com/danmuck/iggywire/internal/protocol/command"
	"github.com/danmuck/iggywire/internal/protocol/frame"
	"github.com/danmuck/iggywire/internal/protocol/wire"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var sampleCmd = &cobra.Command{
	Use:   "sample",
	Short: "Write a deterministic sample of request and response frames",
	Long: `Write one request frame per built-in command to --output and, with
--responses, the matching response frames. The pair decodes with:

  iggywire decode --responses <responses> <output>`,
	Args: cobra.NoArgs,
	RunE: runSample,
}

func init() {
	key := "output"
	sampleCmd.Flags().String(key, "requests.bin", wrapString("file the request frames are written to"))
	key = "responses"
	sampleCmd.Flags().String(key, "", wrapString("file the response frames are written to"))
}

type sampleExchange struct {
	code     uint32
	request  []byte
	status   uint32
	response []byte
}

func sampleExchanges() []sampleExchange {
	stream := wire.NumericID(1)
	topic := wire.NumericID(1)
	consumer := command.ConsumerOffset{
		ConsumerKind: 1,
		ConsumerID:   wire.StringID("test_consumer"),
		StreamID:     stream,
		TopicID:      topic,
		PartitionID:  1,
	}
	ids := func(list ...wire.Identifier) []byte {
		w := wire.NewWriter()
		for _, id := range list {
			w.PutIdentifier(id)
		}
		return w.Bytes()
	}

	return []sampleExchange{
		{code: command.CodePing},
		{
			code: command.CodeLoginUser,
			request: command.LoginUser{
				Username: "testuser",
				Password: "testpass123",
				Version:  "iggywire-sample-v1.0",
				Context:  "iggywire-testing",
			}.Payload(),
			response: command.LoginUserResult{UserID: 1}.Payload(),
		},
		{code: command.CodeLogoutUser},
		{code: command.CodeCreateStream, request: command.CreateStream{StreamID: 0, Name: "test_stream"}.Payload()},
		{code: command.CodeGetStream, request: ids(stream)},
		{code: command.CodeGetStreams},
		{code: command.CodeDeleteStream, request: ids(wire.StringID("test_stream")), status: command.StatusError},
		{
			code: command.CodeCreateTopic,
			request: command.CreateTopic{
				StreamID:        stream,
				Name:            "test_topic",
				PartitionsCount: 3,
			}.Payload(),
			response: command.CreateTopicResult{
				TopicID:         1,
				CreatedAt:       1_700_000_000_000_000,
				Name:            "test_topic",
				PartitionsCount: 3,
			}.Payload(),
		},
		{code: command.CodeGetTopic, request: ids(stream, topic)},
		{
			code:    command.CodePollMessages,
			request: command.PollMessages{ConsumerOffset: consumer, StrategyKind: 3, Count: 10, AutoCommit: true}.Payload(),
		},
		{
			code: command.CodeSendMessages,
			request: command.SendMessages{
				StreamID: stream,
				TopicID:  topic,
				Messages: [][]byte{[]byte("hello iggy"), []byte("second message")},
			}.Payload(),
		},
		{code: command.CodeStoreConsumerOffset, request: command.StoreConsumerOffsetPayload(consumer, 12345)},
		{code: command.CodeGetConsumerOffset, request: command.GetConsumerOffsetPayload(consumer)},
		{
			code:    command.CodeCreateConsumerGroup,
			request: append(ids(stream, topic), wire.NewWriter().PutUint32(1).PutString8("test_group").Bytes()...),
		},
		{code: command.CodeGetConsumerGroup, request: ids(stream, topic, wire.NumericID(1))},
	}
}

// sampleStreams encodes the sample exchanges as request and response byte streams.
func sampleStreams() ([]byte, []byte) {
	var requests, responses []byte
	for _, ex := range sampleExchanges() {
		requests = frame.AppendRequest(requests, ex.code, ex.request)
		responses = frame.AppendResponse(responses, ex.status, ex.response)
	}
	return requests, responses
}

func runSample(cmd *cobra.Command, _ []string) error {
	requests, responses := sampleStreams()
	out := viper.GetString("output")
	if err := os.WriteFile(out, requests, 0o644); err != nil {
		return fmt.Errorf("write requests: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d request bytes to %s\n", len(requests), out)

	if path := viper.GetString("responses"); path != "" {
		if err := os.WriteFile(path, responses, 0o644); err != nil {
			return fmt.Errorf("write responses: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %d response bytes to %s\n", len(responses), path)
	}
	return nil
}
