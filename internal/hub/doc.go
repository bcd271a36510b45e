// Hearthlog - Home Automation Event Recorder
// Copyright 2026 Hearthlog Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/hearthlog/hearthlog

// Package hub speaks the home-automation hub's websocket protocol: it keeps
// one authenticated session alive across failures, subscribes to the
// configured event types, decodes inbound frames into a typed message
// union, and normalizes event messages into canonical state changes for
// the pipeline.
//
// The session never terminates on transient transport errors; it backs off
// exponentially (1s doubling to 60s) and reconnects unattended. Only an
// auth_invalid reply stops it, because retrying a rejected token is an
// operator problem, not a transport one.
package hub
