// Copyright 2025 Kadir Pekel
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

// Package router orchestrates multi-step agentic conversations between an
// LLM provider and two kinds of dynamically invokable services: remote A2A
// agents and local MCP tool servers.
//
// On each turn the provider returns structured tool/agent calls; the
// orchestrator fans them out concurrently through the Manager, feeds the
// responses back, and repeats until the provider stops requesting calls or
// the iteration budget is exhausted. See the orchestrator subpackage for the
// public entry point.
package router
