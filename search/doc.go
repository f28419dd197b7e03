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

// Package search answers patron queries against a built index.
//
// The Engine embeds a query with the same model that built the index,
// retrieves the nearest records by inner product over unit vectors (cosine
// similarity), and joins them with the lookup table. Recommend adds a second
// phase: the best candidates are prefiltered, rendered as JSON and handed to
// a chat-completion model together with a fixed librarian prompt.
//
// Session drives the interactive loop on top of an Engine:
//
//	idle -> awaiting-query -> embedding-query -> searching
//	     -> (summarizing) -> presenting-result -> idle
//
// A Monitor observes every transition.
package search
