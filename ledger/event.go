// Copyright 2025 Blink Labs Software
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

package ledger

import (
	"github.com/slimy-crypto/slimy/event"
	"github.com/slimy-crypto/slimy/ledger/common"
)

const (
	SlimeMintedEventType       event.EventType = "slime.minted"
	SlimeTransferredEventType  event.EventType = "slime.transferred"
	SlimeApprovedEventType     event.EventType = "slime.approved"
	BreedingRequestedEventType event.EventType = "breeding.requested"
	BreedingResolvedEventType  event.EventType = "breeding.resolved"
	FeesClaimedEventType       event.EventType = "fees.claimed"
)

// SlimeMintedEvent is emitted for gen-zero creation and for every birth
type SlimeMintedEvent struct {
	Slime Slime
}

type SlimeTransferredEvent struct {
	From    common.Address
	To      common.Address
	SlimeId uint64
}

// SlimeApprovedEvent carries a zero Delegate when an approval was cleared
type SlimeApprovedEvent struct {
	Owner    common.Address
	Delegate common.Address
	SlimeId  uint64
}

type BreedingRequestedEvent struct {
	Request BreedingRequest
}

type BreedingResolvedEvent struct {
	Request BreedingRequest
}

type FeesClaimedEvent struct {
	Recipient common.Address
	Amount    uint64
}
