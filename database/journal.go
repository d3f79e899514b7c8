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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/z-vasconcelos/flightsurety/database/types"
	"github.com/z-vasconcelos/flightsurety/event"
)

const journalKeyPrefix = "j"

// JournalEntry is one published event as recorded in the blob store
type JournalEntry struct {
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Seq       uint64          `json:"seq"`
}

func journalKey(seq uint64) []byte {
	key := make([]byte, len(journalKeyPrefix)+8)
	copy(key, journalKeyPrefix)
	binary.BigEndian.PutUint64(key[len(journalKeyPrefix):], seq)
	return key
}

func journalSeq(key []byte) (uint64, error) {
	if len(key) != len(journalKeyPrefix)+8 {
		return 0, fmt.Errorf("malformed journal key %x", key)
	}
	return binary.BigEndian.Uint64(key[len(journalKeyPrefix):]), nil
}

func (d *Database) loadLastSeq() (uint64, error) {
	key, _, err := d.blob.Last([]byte(journalKeyPrefix))
	if err != nil {
		if errors.Is(err, types.ErrBlobKeyNotFound) {
			return 0, nil
		}
		return 0, err
	}
	return journalSeq(key)
}

// JournalSeq returns the sequence number of the newest journal entry, or 0
// when the journal is empty
func (d *Database) JournalSeq() uint64 {
	d.journalMu.Lock()
	defer d.journalMu.Unlock()
	return d.lastSeq
}

// AppendJournal records an event at the next sequence number. Sequence
// numbers start at 1.
func (d *Database) AppendJournal(evt event.Event) (JournalEntry, error) {
	data, err := json.Marshal(evt.Data)
	if err != nil {
		return JournalEntry{}, fmt.Errorf("encode %s event: %w", evt.Type, err)
	}
	d.journalMu.Lock()
	defer d.journalMu.Unlock()
	entry := JournalEntry{
		Seq:       d.lastSeq + 1,
		Type:      string(evt.Type),
		Timestamp: evt.Timestamp.UTC(),
		Data:      data,
	}
	val, err := json.Marshal(entry)
	if err != nil {
		return JournalEntry{}, err
	}
	if err := d.blob.Set(journalKey(entry.Seq), val); err != nil {
		return JournalEntry{}, fmt.Errorf("write journal entry: %w", err)
	}
	d.lastSeq = entry.Seq
	return entry, nil
}

// Journal returns up to limit entries starting at sequence number from. A
// limit of zero or less returns every remaining entry.
func (d *Database) Journal(from uint64, limit int) ([]JournalEntry, error) {
	var ret []JournalEntry
	err := d.blob.Iterate(
		[]byte(journalKeyPrefix),
		journalKey(from),
		func(key, val []byte) error {
			var entry JournalEntry
			if err := json.Unmarshal(val, &entry); err != nil {
				return fmt.Errorf("decode journal entry %x: %w", key, err)
			}
			ret = append(ret, entry)
			if limit > 0 && len(ret) >= limit {
				return types.ErrStopIteration
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return ret, nil
}
