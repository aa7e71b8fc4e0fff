package orm

import (
	"strings"
	"unicode"

	"github.com/km-arc/go-persistence/framework/factory"
)

// NamingStrategy derives table and column names for mappings that leave
// them unset.
type NamingStrategy interface {
	ClassToTableName(class string) string
	PropertyToColumnName(property string) string
}

// NamingStrategyFactory creates the strategy named by "namingStrategy".
type NamingStrategyFactory func() NamingStrategy

// NewNamingStrategies returns an empty naming strategy table.
func NewNamingStrategies() *factory.Registry[NamingStrategyFactory] {
	return factory.New[NamingStrategyFactory]("naming strategy")
}

// RegisterBuiltinStrategies adds "default", "underscore" and
// "underscore_upper".
func RegisterBuiltinStrategies(r *factory.Registry[NamingStrategyFactory]) {
	r.Register("default", func() NamingStrategy { return DefaultNamingStrategy{} })
	r.Register("underscore", func() NamingStrategy { return UnderscoreNamingStrategy{} })
	r.Register("underscore_upper", func() NamingStrategy { return UnderscoreNamingStrategy{Upper: true} })
}

// DefaultNamingStrategy uses the short class name as the table name and
// property names as column names.
type DefaultNamingStrategy struct{}

func (DefaultNamingStrategy) ClassToTableName(class string) string { return shortName(class) }

func (DefaultNamingStrategy) PropertyToColumnName(property string) string { return property }

// UnderscoreNamingStrategy converts CamelCase to snake_case, optionally
// upper-cased.
type UnderscoreNamingStrategy struct {
	Upper bool
}

func (s UnderscoreNamingStrategy) ClassToTableName(class string) string {
	return s.convert(shortName(class))
}

func (s UnderscoreNamingStrategy) PropertyToColumnName(property string) string {
	return s.convert(property)
}

func (s UnderscoreNamingStrategy) convert(name string) string {
	var b strings.Builder
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		b.WriteRune(r)
	}
	if s.Upper {
		return strings.ToUpper(b.String())
	}
	return strings.ToLower(b.String())
}

func shortName(class string) string {
	if i := strings.LastIndexByte(class, '.'); i >= 0 {
		return class[i+1:]
	}
	return class
}
