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

package database

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/blinklabs-io/gouroboros/cbor"
	"github.com/slimy-crypto/slimy/database/models"
	"github.com/slimy-crypto/slimy/database/types"
)

const slimeBlobKeyPrefix = "slime_"

// SlimeGenes is the immutable part of a slime record, stored CBOR encoded in
// the blob store
type SlimeGenes struct {
	cbor.StructAsArray
	Genome     []byte
	Generation uint32
	MatronId   uint64
	SireId     uint64
	BirthTime  int64 // unix milliseconds
}

// Slime is a complete slime record assembled from both stores
type Slime struct {
	models.Slime
	Genes SlimeGenes
}

// SlimeBlobKey returns the blob key for a slime id. Ids are big endian so
// keys sort in id order.
func SlimeBlobKey(id uint64) []byte {
	key := make([]byte, len(slimeBlobKeyPrefix)+8)
	copy(key, slimeBlobKeyPrefix)
	binary.BigEndian.PutUint64(key[len(slimeBlobKeyPrefix):], id)
	return key
}

// AddSlime stores a newly minted slime in both stores
func (d *Database) AddSlime(
	record *models.Slime,
	genes SlimeGenes,
	txn *Txn,
) error {
	if txn == nil || !txn.ReadWrite() {
		return errors.New("minting requires a read-write transaction")
	}
	genesCbor, err := cbor.Encode(&genes)
	if err != nil {
		return fmt.Errorf("encode slime genes: %w", err)
	}
	if err := d.blob.Set(txn.Blob(), SlimeBlobKey(record.ID), genesCbor); err != nil {
		return err
	}
	return d.metadata.SetSlime(record, txn.Metadata())
}

// GetSlimeGenes returns the immutable record for a slime id
func (d *Database) GetSlimeGenes(id uint64, txn *Txn) (SlimeGenes, error) {
	if genes, ok := d.genesCache.Get(id); ok {
		return genes, nil
	}
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	genesCbor, err := d.blob.Get(txn.Blob(), SlimeBlobKey(id))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return SlimeGenes{}, models.ErrSlimeNotFound
		}
		return SlimeGenes{}, err
	}
	var genes SlimeGenes
	if _, err := cbor.Decode(genesCbor, &genes); err != nil {
		return SlimeGenes{}, fmt.Errorf("decode slime genes: %w", err)
	}
	// Records written by an uncommitted transaction may still roll back
	if !txn.ReadWrite() {
		d.genesCache.Add(id, genes)
	}
	return genes, nil
}

// GetSlime returns the complete record for a slime id
func (d *Database) GetSlime(id uint64, txn *Txn) (*Slime, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	record, err := d.metadata.GetSlime(id, txn.Metadata())
	if err != nil {
		return nil, err
	}
	genes, err := d.GetSlimeGenes(id, txn)
	if err != nil {
		return nil, err
	}
	return &Slime{Slime: *record, Genes: genes}, nil
}

// SetSlime updates the mutable part of a slime record
func (d *Database) SetSlime(record *models.Slime, txn *Txn) error {
	if txn == nil || !txn.ReadWrite() {
		return errors.New("updating a slime requires a read-write transaction")
	}
	return d.metadata.SetSlime(record, txn.Metadata())
}

// CountSlimesByOwner returns the number of slimes held by owner
func (d *Database) CountSlimesByOwner(owner []byte, txn *Txn) (uint64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.CountSlimesByOwner(owner, txn.Metadata())
}

// GetSlimeIdsByOwner returns one page of the ids held by owner
func (d *Database) GetSlimeIdsByOwner(
	owner []byte,
	afterId uint64,
	limit int,
	txn *Txn,
) ([]uint64, error) {
	if txn == nil {
		txn = d.Transaction(false)
		defer txn.Release()
	}
	return d.metadata.GetSlimeIdsByOwner(owner, afterId, limit, txn.Metadata())
}
