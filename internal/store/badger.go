package store

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/url"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/vmihailenco/msgpack/v5"

	"parley/agent/internal/logging"
	"parley/agent/internal/types"
)

// Badger is the embedded default backend. Keys:
//
//	chat/<room>/<seq big-endian>  -> msgpack turn
//	chatseq/<room>                -> last seq
//	voice/<user>/<provider>       -> msgpack profile
//	index/<user>                  -> msgpack index record
type Badger struct {
	db  *badger.DB
	now func() time.Time
}

type BadgerOptions struct {
	Dir      string
	InMemory bool
}

func OpenBadger(o BadgerOptions) (*Badger, error) {
	if !o.InMemory && o.Dir == "" {
		return nil, errors.New("store: badger dir is required")
	}
	opts := badger.DefaultOptions(o.Dir).WithLogger(badgerLogger{})
	if o.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(badgerLogger{})
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("store: open badger: %w", err)
	}
	return &Badger{db: db, now: time.Now}, nil
}

// Path segments are escaped so "a/b" can never share a prefix with "a".
func seg(s string) string { return url.PathEscape(s) }

func chatPrefix(room string) []byte { return []byte("chat/" + seg(room) + "/") }

func chatKey(room string, seq uint64) []byte {
	k := chatPrefix(room)
	return binary.BigEndian.AppendUint64(k, seq)
}

func (b *Badger) Append(ctx context.Context, room string, role types.Role, content string) error {
	if err := validate(room, role); err != nil {
		return err
	}
	val, err := msgpack.Marshal(types.ConversationTurn{Role: role, Content: content, At: b.now().UTC()})
	if err != nil {
		return err
	}
	seqKey := []byte("chatseq/" + seg(room))
	for attempt := 0; attempt < 5; attempt++ {
		err = b.db.Update(func(txn *badger.Txn) error {
			var seq uint64
			item, err := txn.Get(seqKey)
			switch {
			case err == nil:
				raw, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				seq = binary.BigEndian.Uint64(raw)
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
			seq++
			if err := txn.Set(seqKey, binary.BigEndian.AppendUint64(nil, seq)); err != nil {
				return err
			}
			return txn.Set(chatKey(room, seq), val)
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return err
}

func (b *Badger) LoadHistory(_ context.Context, room string, limit int) ([]types.ConversationTurn, error) {
	prefix := chatPrefix(room)
	var rev []types.ConversationTurn
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(rev) >= limit {
				break
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var t types.ConversationTurn
			if err := msgpack.Unmarshal(raw, &t); err != nil {
				return err
			}
			rev = append(rev, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]types.ConversationTurn, len(rev))
	for i, t := range rev {
		out[len(rev)-1-i] = t
	}
	return out, nil
}

func (b *Badger) SetVoice(_ context.Context, p types.VoiceProfile) error {
	return b.put([]byte("voice/"+seg(p.UserID)+"/"+seg(p.Provider)), p)
}

func (b *Badger) GetVoice(_ context.Context, userID, provider string) (types.VoiceProfile, error) {
	var p types.VoiceProfile
	err := b.get([]byte("voice/"+seg(userID)+"/"+seg(provider)), &p)
	return p, err
}

func (b *Badger) RecordIndex(_ context.Context, rec types.IndexRecord) error {
	if rec.At.IsZero() {
		rec.At = b.now().UTC()
	}
	return b.put([]byte("index/"+seg(rec.UserID)), rec)
}

func (b *Badger) LastIndex(_ context.Context, userID string) (types.IndexRecord, error) {
	var rec types.IndexRecord
	err := b.get([]byte("index/"+seg(userID)), &rec)
	return rec, err
}

func (b *Badger) put(key []byte, v any) error {
	val, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	return b.db.Update(func(txn *badger.Txn) error { return txn.Set(key, val) })
}

func (b *Badger) get(key []byte, v any) error {
	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return msgpack.Unmarshal(raw, v)
}

func (b *Badger) Ping(context.Context) error {
	if b.db.IsClosed() {
		return errors.New("store: badger closed")
	}
	return nil
}

func (b *Badger) Close() error { return b.db.Close() }

var logger = logging.New("parley/agent/store")

// badgerLogger keeps warnings and errors, drops the chatter.
type badgerLogger struct{}

func (badgerLogger) Errorf(f string, v ...interface{})   { logger.Error(fmt.Sprintf(f, v...), "component", "badger") }
func (badgerLogger) Warningf(f string, v ...interface{}) { logger.Warn(fmt.Sprintf(f, v...), "component", "badger") }
func (badgerLogger) Infof(string, ...interface{})        {}
func (badgerLogger) Debugf(string, ...interface{})       {}
