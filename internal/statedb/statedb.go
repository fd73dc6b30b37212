// Copyright (c) 2021-2022 The Decred developers
// Copyright (c) 2024 The Alterdot developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package statedb

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/alterdot/adotd/chaincfg"
	"github.com/alterdot/adotd/internal/blockchain"
	"github.com/alterdot/adotd/internal/llmq"
	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// currentDatabaseVersion indicates the current state database version.
	currentDatabaseVersion = 1

	// dbName is the name of the state database.
	dbName = "statedb"
)

// byteOrder is the preferred byte order used through the database.  Big
// endian keeps heights within keys ordered.
var byteOrder = binary.BigEndian

// -----------------------------------------------------------------------------
// keySet represents a top level key set in the state database.  All keys
// start with a serialized prefix consisting of the key set and version of that
// key set as follows:
//
//	<key set><version>
//
//	Key        Value    Size      Description
//	key set    uint8    1 byte    The key set identifier, as defined below
//	version    uint8    1 byte    The version of the key set
//
// -----------------------------------------------------------------------------
type keySet uint8

// These constants define the available key sets.
const (
	keySetDbInfo          keySet = iota + 1 // 1
	keySetThresholdStates                   // 2
	keySetQuorums                           // 3
)

// keySetVersions defines the current version for each key set.
var keySetVersions = map[keySet]uint8{
	keySetDbInfo:          0,
	keySetThresholdStates: 1,
	keySetQuorums:         1,
}

// These variables define the serialized prefix for each key set.
var (
	prefixDbInfo = []byte{byte(keySetDbInfo), keySetVersions[keySetDbInfo]}

	prefixThresholdStates = []byte{byte(keySetThresholdStates),
		keySetVersions[keySetThresholdStates]}

	prefixQuorums = []byte{byte(keySetQuorums), keySetVersions[keySetQuorums]}
)

// These variables define keys that are part of the database info key set.
var (
	dbInfoVersionKey = prefixedKey(prefixDbInfo, []byte("version"))
	dbInfoCreatedKey = prefixedKey(prefixDbInfo, []byte("created"))
)

// prefixedKey returns a new byte slice that consists of the provided prefix
// appended with the provided key.
func prefixedKey(prefix []byte, key []byte) []byte {
	lenPrefix := len(prefix)
	prefixedKey := make([]byte, lenPrefix+len(key))
	_ = copy(prefixedKey, prefix)
	_ = copy(prefixedKey[lenPrefix:], key)
	return prefixedKey
}

// DB persists the version bits threshold states and the finalized quorums so
// that both can be restored without replaying the chain.  It implements
// blockchain.ThresholdStateStore and llmq.QuorumStore.
type DB struct {
	// ldb is set when the instance is created and is not changed afterward.
	ldb *leveldb.DB
}

// Ensure DB implements the store interfaces.
var (
	_ blockchain.ThresholdStateStore = (*DB)(nil)
	_ llmq.QuorumStore               = (*DB)(nil)
)

// convertLdbErr converts the passed leveldb error into a context error with an
// equivalent error kind and the passed description.
func convertLdbErr(ldbErr error, desc string) ContextError {
	var kind = ErrDatabase
	switch {
	case ldberrors.IsCorrupted(ldbErr):
		kind = ErrCorruption
	case errors.Is(ldbErr, leveldb.ErrClosed):
		kind = ErrNotOpen
	}

	desc = fmt.Sprintf("%s: %v", desc, ldbErr)
	err := contextError(kind, desc)
	err.RawErr = ldbErr
	return err
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// Open opens (or creates when needed) the state database in the provided data
// directory.
func Open(dataDir string) (*DB, error) {
	dbPath := filepath.Join(dataDir, dbName)
	dbExists := fileExists(dbPath)
	if !dbExists {
		// The error can be ignored here since the call to leveldb.OpenFile
		// will fail if the directory couldn't be created.
		_ = os.MkdirAll(dataDir, 0700)
	}

	log.Infof("Loading state database from '%s'", dbPath)
	opts := opt.Options{
		ErrorIfExist: !dbExists,
		Strict:       opt.DefaultStrict,
		Compression:  opt.NoCompression,
		Filter:       filter.NewBloomFilter(10),
	}
	ldb, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open state database")
	}
	db := &DB{ldb: ldb}
	if err := db.initInfo(); err != nil {
		ldb.Close()
		return nil, err
	}
	return db, nil
}

// OpenMemory returns a state database that is only kept in memory.
func OpenMemory() (*DB, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), &opt.Options{
		Strict:      opt.DefaultStrict,
		Compression: opt.NoCompression,
	})
	if err != nil {
		return nil, convertLdbErr(err, "failed to open memory state database")
	}
	db := &DB{ldb: ldb}
	if err := db.initInfo(); err != nil {
		ldb.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if err := db.ldb.Close(); err != nil {
		return convertLdbErr(err, "failed to close state database")
	}
	return nil
}

// get returns the value of the key or nil when the database does not contain
// it.
func (db *DB) get(key []byte) ([]byte, error) {
	v, err := db.ldb.Get(key, nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		str := fmt.Sprintf("failed to get key %x", key)
		return nil, convertLdbErr(err, str)
	}
	return v, nil
}

// write atomically applies the batch.
func (db *DB) write(batch *leveldb.Batch) error {
	if err := db.ldb.Write(batch, nil); err != nil {
		return convertLdbErr(err, "failed to write batch")
	}
	return nil
}

// initInfo creates the database info of a new database and refuses to load
// databases created by newer software.
func (db *DB) initInfo() error {
	versionBytes, err := db.get(dbInfoVersionKey)
	if err != nil {
		return err
	}
	if versionBytes != nil {
		if len(versionBytes) != 4 {
			str := fmt.Sprintf("malformed database version %x", versionBytes)
			return contextError(ErrMalformedEntry, str)
		}
		version := byteOrder.Uint32(versionBytes)
		if version > currentDatabaseVersion {
			str := fmt.Sprintf("the current state database is no longer "+
				"compatible with this version of the software (%d > %d)",
				version, currentDatabaseVersion)
			return contextError(ErrIncompatibleVersion, str)
		}
		return nil
	}

	var batch leveldb.Batch
	batch.Put(dbInfoVersionKey, byteOrder.AppendUint32(nil, currentDatabaseVersion))
	batch.Put(dbInfoCreatedKey, byteOrder.AppendUint64(nil,
		uint64(time.Now().Unix())))
	return db.write(&batch)
}

// Created returns the time the database was created.
func (db *DB) Created() (time.Time, error) {
	v, err := db.get(dbInfoCreatedKey)
	if err != nil {
		return time.Time{}, err
	}
	if len(v) != 8 {
		str := fmt.Sprintf("malformed database creation time %x", v)
		return time.Time{}, contextError(ErrMalformedEntry, str)
	}
	return time.Unix(int64(byteOrder.Uint64(v)), 0), nil
}

// -----------------------------------------------------------------------------
// The threshold state key set contains one entry per deployment and window
// boundary block:
//
//	Key:   <prefix><deployment id uint8><height uint32><block hash>
//	Value: <state uint8><since height uint32>
//
// -----------------------------------------------------------------------------

const (
	thresholdKeyLen   = 2 + 1 + 4 + chainhash.HashSize
	thresholdValueLen = 1 + 4
)

func thresholdStateKey(s *blockchain.StoredThresholdState) []byte {
	key := make([]byte, 0, thresholdKeyLen)
	key = append(key, prefixThresholdStates...)
	key = append(key, byte(s.ID))
	key = byteOrder.AppendUint32(key, uint32(s.Height))
	return append(key, s.Hash[:]...)
}

// PutThresholdStates stores the provided states.
func (db *DB) PutThresholdStates(states []blockchain.StoredThresholdState) error {
	if len(states) == 0 {
		return nil
	}
	var batch leveldb.Batch
	for i := range states {
		s := &states[i]
		v := make([]byte, 0, thresholdValueLen)
		v = append(v, byte(s.State.State))
		v = byteOrder.AppendUint32(v, uint32(s.State.SinceHeight))
		batch.Put(thresholdStateKey(s), v)
	}
	return db.write(&batch)
}

// ThresholdStates returns every stored state.
func (db *DB) ThresholdStates() ([]blockchain.StoredThresholdState, error) {
	iter := db.ldb.NewIterator(util.BytesPrefix(prefixThresholdStates), nil)
	defer iter.Release()

	var states []blockchain.StoredThresholdState
	for iter.Next() {
		k, v := iter.Key(), iter.Value()
		if len(k) != thresholdKeyLen || len(v) != thresholdValueLen {
			str := fmt.Sprintf("malformed threshold state entry %x", k)
			return nil, contextError(ErrMalformedEntry, str)
		}
		k = k[len(prefixThresholdStates):]
		s := blockchain.StoredThresholdState{
			ID:     chaincfg.DeploymentID(k[0]),
			Height: int64(byteOrder.Uint32(k[1:])),
			State: blockchain.ThresholdStateTuple{
				State:       blockchain.ThresholdState(v[0]),
				SinceHeight: int64(byteOrder.Uint32(v[1:])),
			},
		}
		copy(s.Hash[:], k[5:])
		states = append(states, s)
	}
	if err := iter.Error(); err != nil {
		return nil, convertLdbErr(err, "failed to iterate threshold states")
	}
	return states, nil
}

// DeleteThresholdStatesAbove removes every stored state for a window that ends
// above the provided height.
func (db *DB) DeleteThresholdStatesAbove(height int64) error {
	return db.deleteAbove(prefixThresholdStates, 1, height)
}

// deleteAbove removes the entries of the key set whose key holds a height
// above the provided one at the given offset after the prefix.
func (db *DB) deleteAbove(prefix []byte, offset int, height int64) error {
	iter := db.ldb.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var batch leveldb.Batch
	for iter.Next() {
		k := iter.Key()
		if len(k) < len(prefix)+offset+4 {
			str := fmt.Sprintf("malformed key %x", k)
			return contextError(ErrMalformedEntry, str)
		}
		h := int64(byteOrder.Uint32(k[len(prefix)+offset:]))
		if h > height {
			batch.Delete(append([]byte(nil), k...))
		}
	}
	if err := iter.Error(); err != nil {
		return convertLdbErr(err, "failed to iterate entries")
	}
	if batch.Len() == 0 {
		return nil
	}
	log.Debugf("Removing %d entries of key set %d above height %d",
		batch.Len(), prefix[0], height)
	return db.write(&batch)
}

// -----------------------------------------------------------------------------
// The quorum key set contains one entry per finalized quorum:
//
//	Key:   <prefix><quorum type uint8><creation height uint32><quorum hash>
//	Value: the serialized quorum
//
// -----------------------------------------------------------------------------

func quorumKey(q *llmq.Quorum) []byte {
	key := make([]byte, 0, 2+1+4+chainhash.HashSize)
	key = append(key, prefixQuorums...)
	key = append(key, byte(q.Type))
	key = byteOrder.AppendUint32(key, uint32(q.CreationHeight))
	return append(key, q.QuorumHash[:]...)
}

// PutQuorum stores a finalized quorum.
func (db *DB) PutQuorum(q *llmq.Quorum) error {
	if err := db.ldb.Put(quorumKey(q), q.Serialize(), nil); err != nil {
		str := fmt.Sprintf("failed to store quorum %v", q.QuorumHash)
		return convertLdbErr(err, str)
	}
	return nil
}

// Quorums returns the stored quorums of the given type ordered by creation
// height.
func (db *DB) Quorums(t chaincfg.LLMQType) ([]*llmq.Quorum, error) {
	prefix := append(append([]byte(nil), prefixQuorums...), byte(t))
	iter := db.ldb.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var quorums []*llmq.Quorum
	for iter.Next() {
		q, err := llmq.DeserializeQuorum(iter.Value())
		if err != nil {
			str := fmt.Sprintf("malformed quorum entry %x: %v", iter.Key(), err)
			return nil, contextError(ErrMalformedEntry, str)
		}
		quorums = append(quorums, q)
	}
	if err := iter.Error(); err != nil {
		return nil, convertLdbErr(err, "failed to iterate quorums")
	}
	return quorums, nil
}

// DeleteQuorumsAbove removes the quorums created above the provided height.
func (db *DB) DeleteQuorumsAbove(height int64) error {
	return db.deleteAbove(prefixQuorums, 1, height)
}
