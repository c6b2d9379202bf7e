package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sun/internal/models"
)

const (
	maxTitleLength       = 120
	maxDescriptionLength = 2000
	maxCategoryLength    = 64
)

// ValidateTitle requires a non-blank title.
func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("title is required")
	}
	if utf8.RuneCountInString(title) > maxTitleLength {
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	return nil
}

// ValidateDescription bounds the free-text description.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > maxDescriptionLength {
		return fmt.Errorf("description must be at most %d characters", maxDescriptionLength)
	}
	return nil
}

// ValidateCategory requires a non-blank category. Values outside the known list are allowed.
func ValidateCategory(category string) error {
	category = strings.TrimSpace(category)
	if category == "" {
		return fmt.Errorf("category is required")
	}
	if len(category) > maxCategoryLength {
		return fmt.Errorf("category must be at most %d characters", maxCategoryLength)
	}
	return nil
}

// ValidateCondition accepts an empty condition (defaulted later) or a known one.
func ValidateCondition(condition models.Condition) error {
	if condition == "" || condition.Valid() {
		return nil
	}
	return fmt.Errorf("condition must be one of new, good, fair")
}

// ValidateQuantity rejects negative quantities. Zero means "use the default".
func ValidateQuantity(quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("quantity must not be negative")
	}
	return nil
}

// ValidatePeopleHelped rejects negative counts.
func ValidatePeopleHelped(n int) error {
	if n < 0 {
		return fmt.Errorf("peopleHelped must not be negative")
	}
	return nil
}
