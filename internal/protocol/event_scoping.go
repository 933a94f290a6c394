// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

// GetRunID methods let the WebSocket filter match events without a type switch.

func (e ProgressEvent) GetRunID() string     { return e.RunID }
func (e RunLifecycleEvent) GetRunID() string { return e.RunID }
func (e ErrorEvent) GetRunID() string        { return e.RunID }
