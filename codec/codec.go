// Package codec provides ready-made objmap codecs for common wire shapes that
// differ from the built-in defaults. Register them per property, per type or
// module-wide:
//
//	b.RegisterCodec(objmap.Exact[time.Time](), objmap.DirectionBoth, codec.UnixMillis())
//	objmap.Type[Event](b).Property("At").Codec(codec.TimeLayout(time.DateOnly))
package codec

import (
	"strconv"
	"time"

	"github.com/reoring/objmap"
)

// TimeRFC3339 writes time.Time as canonical RFC3339 text in UTC.
func TimeRFC3339() objmap.CodecPair {
	return objmap.Codec(
		func(e *objmap.Encoder, t time.Time) error {
			return e.WriteString(formatRFC3339Canonical(t))
		},
		func(d *objmap.Decoder) (time.Time, error) {
			s, err := d.ReadString()
			if err != nil {
				return time.Time{}, err
			}
			return objmap.ParseRFC3339(s)
		},
	)
}

// TimeLayout writes time.Time with a time.Format layout.
func TimeLayout(layout string) objmap.CodecPair {
	return objmap.Codec(
		func(e *objmap.Encoder, t time.Time) error { return e.WriteString(t.Format(layout)) },
		func(d *objmap.Decoder) (time.Time, error) {
			s, err := d.ReadString()
			if err != nil {
				return time.Time{}, err
			}
			return time.Parse(layout, s)
		},
	)
}

// UnixMillis writes time.Time as integral milliseconds since the epoch.
func UnixMillis() objmap.CodecPair {
	return objmap.Codec(
		func(e *objmap.Encoder, t time.Time) error { return e.WriteInt(t.UnixMilli()) },
		func(d *objmap.Decoder) (time.Time, error) {
			ms, err := d.ReadInt()
			if err != nil {
				return time.Time{}, err
			}
			return time.UnixMilli(ms).UTC(), nil
		},
	)
}

// DurationSeconds writes time.Duration as a number of seconds.
func DurationSeconds() objmap.CodecPair {
	return objmap.Codec(
		func(e *objmap.Encoder, v time.Duration) error { return e.WriteFloat(v.Seconds()) },
		func(d *objmap.Decoder) (time.Duration, error) {
			s, err := d.ReadFloat()
			if err != nil {
				return 0, err
			}
			return time.Duration(s * float64(time.Second)), nil
		},
	)
}

// BoolAsInt writes bool as 1 or 0. Any non-zero integer reads as true.
func BoolAsInt() objmap.CodecPair {
	return objmap.Codec(
		func(e *objmap.Encoder, b bool) error {
			if b {
				return e.WriteInt(1)
			}
			return e.WriteInt(0)
		},
		func(d *objmap.Decoder) (bool, error) {
			n, err := d.ReadInt()
			return n != 0, err
		},
	)
}

// StringifiedInt writes int64 as decimal text, for consumers that lose
// precision on large numbers. Plain numbers are accepted on read.
func StringifiedInt() objmap.CodecPair {
	return objmap.Codec(
		func(e *objmap.Encoder, n int64) error { return e.WriteString(strconv.FormatInt(n, 10)) },
		func(d *objmap.Decoder) (int64, error) {
			tok, err := d.NextToken()
			if err != nil {
				return 0, err
			}
			return strconv.ParseInt(tok.Text(), 10, 64)
		},
	)
}

func formatRFC3339Canonical(t time.Time) string {
	// Normalize to UTC and format using RFC3339Nano (Go trims trailing zeros)
	return t.UTC().Format(time.RFC3339Nano)
}
