package session

import (
	"math"
	"time"
)

const (
	// ExpiresKey is the reserved map key holding the expiry as unix seconds.
	ExpiresKey = "__expires"

	// MaxIDLength matches the CHAR(40) id column.
	MaxIDLength = 40
)

// Data is the key/value payload of one session.
type Data map[string]any

// Expires reports the expiry stored under ExpiresKey.
func (d Data) Expires() (int64, bool) {
	v, ok := d[ExpiresKey]
	if !ok {
		return 0, false
	}
	n, err := toUnix(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// SetExpires stores t under ExpiresKey as unix seconds.
func (d Data) SetExpires(t time.Time) {
	d[ExpiresKey] = t.Unix()
}

// Store is the contract shared by the SQL, Mongo and Redis backends.
//
// Load returns found=false with a nil error when no record exists for id.
// Delete of an unknown id is not an error.
type Store interface {
	Load(id string) (Data, bool, error)
	Save(id string, data Data) error
	Delete(id string) error
	DeleteExpired(now int64) error
}

var (
	_ Store = (*SQLStore)(nil)
	_ Store = (*MongoStore)(nil)
	_ Store = (*RedisStore)(nil)
)

func validateID(id string) error {
	if id == "" || len(id) > MaxIDLength {
		return ErrInvalidID
	}
	return nil
}

// expiresOf extracts the expiry for the expires column. A map without
// ExpiresKey has no expiry and is never matched by DeleteExpired.
func expiresOf(d Data) (int64, bool, error) {
	v, ok := d[ExpiresKey]
	if !ok || v == nil {
		return 0, false, nil
	}
	n, err := toUnix(v)
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func toUnix(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, ErrInvalidExpiry
		}
		return int64(n), nil
	case float32:
		return floatToUnix(float64(n))
	case float64:
		return floatToUnix(n)
	case time.Time:
		return n.Unix(), nil
	default:
		return 0, ErrInvalidExpiry
	}
}

func floatToUnix(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, ErrInvalidExpiry
	}
	if f > math.MaxInt64 || f < math.MinInt64 {
		return 0, ErrInvalidExpiry
	}
	return int64(f), nil
}
