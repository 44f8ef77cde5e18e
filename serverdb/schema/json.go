package schema

import (
	"strconv"
	"time"

	"github.com/teranos/serveradmin/errors"
)

// JSONValue converts a value to its JSON representation: sets become
// arrays, addresses strings, networks [first, last] address pairs, dates
// and datetimes unix seconds.
func JSONValue(v Value) any {
	switch x := v.(type) {
	case nil:
		return nil
	case String:
		return string(x)
	case Integer:
		return int64(x)
	case Boolean:
		return bool(x)
	case IP:
		return x.Addr.String()
	case Network:
		r, _ := Range(x)
		return []string{r.From().String(), r.To().String()}
	case Date:
		return x.Time.Unix()
	case DateTime:
		return x.Time.Unix()
	case Hostname:
		return string(x)
	case Raw:
		return string(x)
	case Set:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = JSONValue(e)
		}
		return out
	}
	return v.String()
}

// FromAny converts a decoded JSON or YAML scalar or list into an uncoerced
// value: nil stays unset, scalars become Raw text, lists become sets of Raw.
func FromAny(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return nil, nil
	case string:
		return Raw(v), nil
	case bool:
		return Raw(strconv.FormatBool(v)), nil
	case int:
		return Raw(strconv.Itoa(v)), nil
	case int64:
		return Raw(strconv.FormatInt(v, 10)), nil
	case uint64:
		return Raw(strconv.FormatUint(v, 10)), nil
	case float64:
		return Raw(strconv.FormatFloat(v, 'f', -1, 64)), nil
	case time.Time:
		// YAML decodes unquoted timestamps itself
		if v.Equal(v.Truncate(24 * time.Hour)) {
			return Raw(v.UTC().Format(dateLayout)), nil
		}
		return Raw(v.UTC().Format(dateTimeLayout)), nil
	case []any:
		elems := make([]Value, 0, len(v))
		for _, e := range v {
			ev, err := FromAny(e)
			if err != nil {
				return nil, err
			}
			if _, nested := ev.(Set); nested {
				return nil, errors.New("nested lists are not values")
			}
			if ev != nil {
				elems = append(elems, ev)
			}
		}
		return Set(elems), nil
	}
	return nil, errors.Newf("unsupported value %T", x)
}
