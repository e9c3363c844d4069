// Package model defines the provider-agnostic client abstraction used for
// model-backed task dispatch and the chat-completion endpoint.
//
// Core goals:
//   - Keep the request/response shape minimal and transport independent:
//     a prompt goes in, text content plus token usage comes out
//   - Facilitate lightweight mocking for tests (MockClient)
//
// Providers (e.g. OpenAI, Anthropic) implement the Client interface from this
// package so higher layers (engine, gateway) remain decoupled from vendor SDKs.
package model
