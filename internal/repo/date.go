package repo

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// Date stores timestamps as RFC3339 text and reads both RFC3339 and the
// sqlite CURRENT_TIMESTAMP format.
type Date time.Time

func now() Date {
	return Date(time.Now().UTC())
}

func (d Date) Value() (driver.Value, error) {
	return time.Time(d).UTC().Format(time.RFC3339), nil
}

func (d *Date) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*d = Date(time.Time{})
		return nil
	case time.Time:
		*d = Date(v)
		return nil
	case []byte:
		return d.parse(string(v))
	case string:
		return d.parse(v)
	}
	return fmt.Errorf("cannot scan type %T into Date", value)
}

func (d *Date) parse(s string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			*d = Date(t)
			return nil
		}
	}
	return fmt.Errorf("cannot parse %q as Date", s)
}

func (d Date) String() string {
	return time.Time(d).Format(time.RFC3339)
}

func (d Date) Time() time.Time {
	return time.Time(d)
}
