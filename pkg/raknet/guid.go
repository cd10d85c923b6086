// SPDX-FileCopyrightText: 2022 Alvar Penning
//
// SPDX-License-Identifier: GPL-3.0-or-later

package raknet

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// RandomGuid creates a new globally unique identifier from a random UUID.
func RandomGuid() int64 {
	id := uuid.New()
	return int64(binary.BigEndian.Uint64(id[:8]))
}
