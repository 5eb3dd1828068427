package harness

import (
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/roach88/datoms/internal/datom"
)

// Converter rewrites one value during a map step.
type Converter func(datom.Value) (datom.Value, error)

// conversions are the named conversions a map step can use. A conversion
// that fails leaves a problem value in place of the original.
var conversions = map[string]Converter{
	"upper": stringConversion(func(s string) string {
		return cases.Upper(language.Und).String(s)
	}),
	"lower": stringConversion(func(s string) string {
		return cases.Lower(language.Und).String(s)
	}),
	"title": stringConversion(func(s string) string {
		return cases.Title(language.English).String(s)
	}),
	"to_string": func(v datom.Value) (datom.Value, error) {
		switch val := v.(type) {
		case datom.String:
			return val, nil
		case datom.Int:
			return datom.String(strconv.FormatInt(int64(val), 10)), nil
		case datom.Bool:
			return datom.String(strconv.FormatBool(bool(val))), nil
		default:
			return nil, fmt.Errorf("cannot convert %s to a string", datom.FormatValue(v))
		}
	},
	"to_int": func(v datom.Value) (datom.Value, error) {
		switch val := v.(type) {
		case datom.Int:
			return val, nil
		case datom.String:
			n, err := strconv.ParseInt(string(val), 10, 64)
			if err != nil {
				return nil, err
			}
			return datom.Int(n), nil
		default:
			return nil, fmt.Errorf("cannot convert %s to an int", datom.FormatValue(v))
		}
	},
	"drop": func(datom.Value) (datom.Value, error) {
		return nil, nil
	},
}

func stringConversion(f func(string) string) Converter {
	return func(v datom.Value) (datom.Value, error) {
		s, ok := v.(datom.String)
		if !ok {
			return nil, fmt.Errorf("expected a string, got %s", datom.FormatValue(v))
		}
		return datom.String(f(string(s))), nil
	}
}

// Conversion returns the named conversion.
func Conversion(name string) (func(datom.Value) (datom.Value, error), bool) {
	c, ok := conversions[name]
	return c, ok
}

// Conversions lists the conversion names in order.
func Conversions() []string {
	names := make([]string, 0, len(conversions))
	for name := range conversions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
