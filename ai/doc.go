// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package ai provides abstractions for the hosted AI services the advisor
// depends on: text embeddings and chat completion.
//
// # Interfaces
//
//   - Embedder: generates vector embeddings from text
//   - Completer: generates a chat completion from a system prompt and a message
//   - AIProvider: aggregates both for convenient initialization
//
// # Implementation Packages
//
//   - ai/openai: OpenAI-compatible APIs through langchaingo
//   - ai/mock: deterministic test doubles
//
// # Constructor Return Type Pattern
//
// Public constructors in ai/openai return interface types:
//
//	provider, err := openai.NewProvider(config)  // returns ai.AIProvider
//
// Mock constructors return concrete types so tests can inject behavior and
// assert on calls:
//
//	embedder := mock.NewMockEmbedder()      // returns *mock.MockEmbedder
//	embedder.EmbedTextsFunc = ...
//	count := embedder.CallCount()
//
// # Usage Example
//
//	cfg := ai.NewConfig(ai.WithAPIKey(key))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, texts)
//	text, err := provider.Completer().Complete(ctx, systemPrompt, message)
package ai
