// Package numerator allocates human-readable sequential codes such as
// ITM-00001 from the sys_sequences table.
package numerator

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
)

type Strategy int

const (
	// StrategyStrict reads every number from the database; codes are gapless
	// unless a create rolls back.
	StrategyStrict Strategy = iota
	// StrategyCached takes blocks of RangeSize numbers; a restart loses the
	// rest of the block.
	StrategyCached
)

const (
	defaultPad       = 5
	defaultRangeSize = 50
)

// Querier is satisfied by *pgxpool.Pool.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Config is one code series. Prefix doubles as the sys_sequences key.
type Config struct {
	Prefix    string
	PadWidth  int
	Strategy  Strategy
	RangeSize int64
}

// ItemCodes numbers stock items created without an explicit code.
var ItemCodes = Config{Prefix: "ITM", PadWidth: defaultPad, Strategy: StrategyStrict}

var errNoPrefix = errors.New("numerator: prefix is required")

// block is a reserved run (next-1, last] of a cached series.
type block struct {
	next, last int64
}

// Service runs on the pool, outside business transactions, so it never
// holds the sequence row for the length of a ledger write.
type Service struct {
	q Querier

	mu     sync.Mutex
	blocks map[string]*block
}

func New(q Querier) *Service {
	return &Service{q: q, blocks: map[string]*block{}}
}

// NextItemCode is Next(ItemCodes).
func (s *Service) NextItemCode(ctx context.Context) (string, error) {
	return s.Next(ctx, ItemCodes)
}

// Next allocates and formats the next number of cfg's series.
func (s *Service) Next(ctx context.Context, cfg Config) (string, error) {
	if cfg.Prefix == "" {
		return "", errNoPrefix
	}
	take := s.strict
	if cfg.Strategy == StrategyCached {
		take = s.cached
	}
	n, err := take(ctx, cfg)
	if err != nil {
		return "", err
	}
	return Format(cfg, n), nil
}

func (s *Service) strict(ctx context.Context, cfg Config) (int64, error) {
	return s.bump(ctx, cfg.Prefix, 1)
}

func (s *Service) cached(ctx context.Context, cfg Config) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.blocks[cfg.Prefix]
	if b == nil || b.next > b.last {
		size := cfg.RangeSize
		if size <= 0 {
			size = defaultRangeSize
		}
		last, err := s.bump(ctx, cfg.Prefix, size)
		if err != nil {
			return 0, err
		}
		b = &block{next: last - size + 1, last: last}
		s.blocks[cfg.Prefix] = b
	}
	n := b.next
	b.next++
	return n, nil
}

// bump adds n to the series and returns its new value.
func (s *Service) bump(ctx context.Context, key string, n int64) (int64, error) {
	v, err := s.upsert(ctx, key, n, "sys_sequences.current_val + EXCLUDED.current_val")
	if err != nil {
		return 0, fmt.Errorf("reserve %d from %s: %w", n, key, err)
	}
	return v, nil
}

// SetNext makes cfg's series continue after value, if it is not already
// past it. Used after importing items with codes of the series.
func (s *Service) SetNext(ctx context.Context, cfg Config, value int64) error {
	if cfg.Prefix == "" {
		return errNoPrefix
	}
	if _, err := s.upsert(ctx, cfg.Prefix, value, "GREATEST(sys_sequences.current_val, EXCLUDED.current_val)"); err != nil {
		return fmt.Errorf("set next %s: %w", cfg.Prefix, err)
	}
	s.mu.Lock()
	delete(s.blocks, cfg.Prefix)
	s.mu.Unlock()
	return nil
}

func (s *Service) upsert(ctx context.Context, key string, value int64, onConflict string) (int64, error) {
	sql, args, err := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar).
		Insert("sys_sequences").
		Columns("key", "current_val").
		Values(key, value).
		Suffix("ON CONFLICT (key) DO UPDATE SET current_val = " + onConflict + " RETURNING current_val").
		ToSql()
	if err != nil {
		return 0, err
	}
	var v int64
	err = s.q.QueryRow(ctx, sql, args...).Scan(&v)
	return v, err
}

// Format renders num in cfg's series, e.g. ITM-00042.
func Format(cfg Config, num int64) string {
	pad := cfg.PadWidth
	if pad <= 0 {
		pad = defaultPad
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, pad, num)
}

// Parse returns the number of a code in cfg's series, or false for codes
// outside it (SKU-1, ITM-12x, ITM-0).
func Parse(cfg Config, code string) (int64, bool) {
	digits, ok := strings.CutPrefix(code, cfg.Prefix+"-")
	if !ok || digits == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
