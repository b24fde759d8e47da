// Package llm defines the language-model contract consumed by the graph
// engine, plus thin adapters over provider SDKs.
//
// Invariants:
// - Generate is safe to call repeatedly; failures are returned as errors,
//   never as partial responses.
// - Tool calls surface on the assistant Message in the order the model
//   emitted them.
//
// Usage:
//
//	client, _ := llm.NewClient(llm.ProviderConfig{Provider: "anthropic", APIKey: key})
//	msg, err := client.Generate(ctx, llm.Request{
//		SystemPrompt: "You are a helpful assistant.",
//		Messages:     []llm.Message{llm.UserMessage("hi")},
//	})
package llm
