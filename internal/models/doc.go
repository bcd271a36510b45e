// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package models holds the canonical event types shared by every pipeline
// stage. Events are created by the normalizer and immutable afterwards.
package models
