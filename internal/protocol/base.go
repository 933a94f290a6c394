// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package protocol

import "github.com/noldarim/launchpad/internal/common"

// Metadata is re-exported so callers only import protocol.
type Metadata = common.Metadata

// Event is re-exported from common.
type Event = common.Event

// CurrentProtocolVersion is re-exported from common.
const CurrentProtocolVersion = common.CurrentProtocolVersion

// NewMetadata returns metadata for runID at the current protocol version.
func NewMetadata(runID string) Metadata {
	return Metadata{RunID: runID, Version: CurrentProtocolVersion}
}
