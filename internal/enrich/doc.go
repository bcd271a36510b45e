// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package enrich implements the optional secondary write path: each event of
// a sealed batch is posted to an external normalizer service that annotates
// or re-routes events the recorder itself does not understand. The path is
// best-effort; a failing normalizer never affects the primary store.
package enrich
