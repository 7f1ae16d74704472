package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/paperdex/internal/db"
)

// HSetMulti pipelines one HSET per item in a single DoMulti round-trip.
// A Replace item is sent as DEL then HSET so no field of the old hash survives.
// Failures are reported per item so that callers can count partial success.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) []error {
	if len(items) == 0 {
		return nil
	}

	errs := make([]error, len(items))
	cmds := make([]rueidis.Completed, 0, len(items))
	pos := make([]int, 0, len(items))
	for i, item := range items {
		if len(item.Fields) == 0 {
			errs[i] = &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: no fields", item.Key)}
			continue
		}
		if item.Replace {
			cmds = append(cmds, s.b().Del().Key(item.Key).Build())
			pos = append(pos, i)
		}
		cmds = append(cmds, hsetCmd(s.b(), item.Key, item.Fields))
		pos = append(pos, i)
	}
	if len(cmds) == 0 {
		return errs
	}

	for j, res := range s.client.DoMulti(ctx, cmds...) {
		i := pos[j]
		if err := res.Error(); err != nil && errs[i] == nil {
			errs[i] = &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return errs
}

func hsetCmd(b rueidis.Builder, key string, fields map[string]string) rueidis.Completed {
	cmd := b.Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	return cmd.Build()
}

// DelMulti deletes keys in one pipeline and returns how many of them existed.
// Keys are deleted one command each so that the call is safe on a cluster.
func (s *Store) DelMulti(ctx context.Context, keys []string) (int, error) {
	if len(keys) == 0 {
		return 0, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		cmds[i] = s.b().Del().Key(key).Build()
	}

	deleted := 0
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		n, err := res.AsInt64()
		if err != nil {
			return deleted, &db.Error{Op: db.OpDel, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		deleted += int(n)
	}
	return deleted, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(500).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
