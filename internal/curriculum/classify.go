package curriculum

import (
	"strings"

	"go.uber.org/zap"
)

// Method records how a section's category was decided.
type Method string

const (
	MethodExact    Method = "exact"
	MethodFallback Method = "fallback"
	MethodDefault  Method = "default"
)

// Classification is the outcome of Classify.
type Classification struct {
	Category Category
	Method   Method
}

// exactSections maps lower-cased section names to their category.
var exactSections = map[string]Category{
	"mathematics":                    CategoryQuantitative,
	"maths":                          CategoryQuantitative,
	"mathematical reasoning":         CategoryQuantitative,
	"numerical reasoning":            CategoryQuantitative,
	"quantitative reasoning":         CategoryQuantitative,
	"general ability - quantitative": CategoryQuantitative,
	"numeracy":                       CategoryQuantitative,

	"verbal reasoning":         CategoryVerbal,
	"general ability - verbal": CategoryVerbal,
	"thinking skills":          CategoryVerbal,

	"reading":               CategoryReading,
	"reading comprehension": CategoryReading,
	"reading reasoning":     CategoryReading,

	"writing":              CategoryWriting,
	"written expression":   CategoryWriting,
	"language conventions": CategoryWriting,
}

// keywordRules are tried in order when no exact match exists.
var keywordRules = []struct {
	category Category
	keywords []string
}{
	{CategoryQuantitative, []string{"math", "numer", "quant", "arithmetic"}},
	{CategoryReading, []string{"reading", "comprehension", "passage"}},
	{CategoryWriting, []string{"writ", "essay", "spelling", "grammar", "convention"}},
	{CategoryVerbal, []string{"verbal", "vocab", "word", "language", "logic", "thinking"}},
}

// Classify maps a section name to its category: exact table first, keyword
// fallback second, verbal as the default. Non-exact outcomes are logged so
// misclassifications can be audited.
func Classify(section string) Classification {
	name := strings.ToLower(strings.Join(strings.Fields(section), " "))

	if cat, ok := exactSections[name]; ok {
		return Classification{Category: cat, Method: MethodExact}
	}

	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(name, kw) {
				zap.L().Warn("Section classified by keyword fallback",
					zap.String("section", section),
					zap.String("category", string(rule.category)),
					zap.String("keyword", kw),
				)
				return Classification{Category: rule.category, Method: MethodFallback}
			}
		}
	}

	zap.L().Warn("Section matched no classification rule, using default",
		zap.String("section", section),
		zap.String("category", string(CategoryVerbal)),
	)
	return Classification{Category: CategoryVerbal, Method: MethodDefault}
}
