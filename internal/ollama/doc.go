// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ollama provides the HTTP client for communicating with Ollama API.
//
// This package implements a client for the Ollama local LLM server:
// health probes, model management (list, show, pull, delete) and both
// streaming and non-streaming chat.
//
// # Key Types
//
//   - Client: HTTP client for Ollama API communication
//   - Generator: Runs background chat streams and publishes events
//   - StreamReader: NDJSON reader tolerant of \r line endings and bad lines
//   - Options: Sampling parameters (temperature, top_k, top_p, num_predict)
//
// # Usage
//
// One-shot chat:
//
//	client := ollama.NewClient()
//	resp, err := client.Chat(ctx, "llama3.2", []ollama.Message{
//	    ollama.NewUserMessage("Hello"),
//	}, nil)
//
// Background streaming with events:
//
//	gen := ollama.NewGenerator(client, bus, log)
//	streamID, err := gen.StartGeneration(ctx, ollama.GenerationRequest{
//	    RequestID: targetMessageID,
//	    Model:     "llama3.2",
//	    Messages:  history,
//	})
package ollama
