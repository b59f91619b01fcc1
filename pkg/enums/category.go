package enums

import "fmt"

// CategoryLevel is the depth of a node in the category tree.
type CategoryLevel string

const (
	CategoryLevelCategory       CategoryLevel = "category"
	CategoryLevelSubCategory    CategoryLevel = "subcategory"
	CategoryLevelSubSubCategory CategoryLevel = "sub_subcategory"
)

var validCategoryLevels = []CategoryLevel{
	CategoryLevelCategory,
	CategoryLevelSubCategory,
	CategoryLevelSubSubCategory,
}

// IsValid reports whether the value is a known CategoryLevel.
func (c CategoryLevel) IsValid() bool {
	for _, candidate := range validCategoryLevels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCategoryLevel converts raw input into a CategoryLevel.
func ParseCategoryLevel(value string) (CategoryLevel, error) {
	for _, candidate := range validCategoryLevels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid category level %q", value)
}
