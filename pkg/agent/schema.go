package agent

import (
	"github.com/weavegraph/weave/pkg/knowledge"
	"github.com/weavegraph/weave/pkg/llm"
	"github.com/weavegraph/weave/pkg/state"
)

// Channel names shared by the agent graphs.
const (
	ChannelMessages       = "messages"
	ChannelSummary        = "messages_summary"
	ChannelResponse       = "response"
	ChannelError          = "error"
	ChannelIterationCount = "iteration_count"
	ChannelShouldContinue = "should_continue"
	ChannelQuery          = "query"
	ChannelContext        = "context"
	ChannelDocuments      = "documents"
)

// baseSchema declares the channels every agent graph runs over.
func baseSchema() *state.Schema {
	s := state.NewSchema()
	s.AddChannel(ChannelMessages, state.Channel{
		Reducer: state.ReducerAppend,
		Default: func() any { return []llm.Message{} },
	})
	s.AddChannel(ChannelSummary, state.Channel{Reducer: state.ReducerReplace})
	s.AddChannel(ChannelResponse, state.Channel{Reducer: state.ReducerReplace})
	s.AddChannel(ChannelError, state.Channel{Reducer: state.ReducerReplace})
	s.AddChannel(ChannelIterationCount, state.Channel{
		Reducer: state.ReducerReplace,
		Default: func() any { return 0 },
	})
	s.AddChannel(ChannelShouldContinue, state.Channel{
		Reducer: state.ReducerReplace,
		Default: func() any { return true },
	})
	return s
}

// ragSchema extends the base schema with the retrieval pipeline channels.
func ragSchema() *state.Schema {
	s := baseSchema()
	s.AddChannel(ChannelQuery, state.Channel{Reducer: state.ReducerReplace})
	s.AddChannel(ChannelContext, state.Channel{Reducer: state.ReducerReplace})
	s.AddChannel(ChannelDocuments, state.Channel{
		Reducer: state.ReducerReplace,
		Default: func() any { return []knowledge.Document{} },
	})
	return s
}

// messagesFrom reads the messages channel, tolerating an absent channel.
func messagesFrom(st state.State) []llm.Message {
	msgs, _ := st[ChannelMessages].([]llm.Message)
	return msgs
}
