package validation

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"chanlinks-go/internal/common/models"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	register := map[string]validator.Func{
		"channelusername": validateChannelUsername,
		"url":             validateURL,
		"shortcode":       validateShortCode,
		"utmkey":          validateUTMKey,
		"weights":         validateWeights,
	}
	for tag, fn := range register {
		if err := validate.RegisterValidation(tag, fn); err != nil {
			panic(fmt.Sprintf("failed to register %s validation: %v", tag, err))
		}
	}
}

// Validate validates a struct using tags
func Validate(s interface{}) error {
	return validate.Struct(s)
}

// ValidateShortCode validates a short code taken from a request path
func ValidateShortCode(code string) error {
	return validate.Var(code, "required,shortcode")
}

// ValidateURL validates a URL separately
func ValidateURL(urlStr string) error {
	return validate.Var(urlStr, "required,url")
}

// ValidateChannelUsername validates a public Telegram channel handle
func ValidateChannelUsername(username string) error {
	return validate.Var(username, "required,channelusername")
}

// ValidateWeights validates an experiment's group split
func ValidateWeights(groups models.GroupWeights) error {
	return validate.Var(groups, "min=1,weights,dive")
}

// Telegram handles: 5-32 characters, letters, digits and underscores, starting with a letter
func validateChannelUsername(fl validator.FieldLevel) bool {
	username := strings.TrimPrefix(fl.Field().String(), "@")

	if len(username) < 5 || len(username) > 32 {
		return false
	}
	if !isASCIILetter(rune(username[0])) {
		return false
	}
	for _, char := range username {
		if !isASCIILetter(char) && !unicode.IsDigit(char) && char != '_' {
			return false
		}
	}
	return true
}

func validateURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	if err != nil {
		return false
	}
	// http or https with a host and no fragment
	return (u.Scheme == "http" || u.Scheme == "https") &&
		u.Host != "" &&
		u.Fragment == ""
}

// Short codes are 4-30 URL-safe characters
func validateShortCode(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	if len(code) < 4 || len(code) > 30 {
		return false
	}
	for _, char := range code {
		if !isASCIILetter(char) && !unicode.IsDigit(char) && char != '_' && char != '-' {
			return false
		}
	}
	return true
}

func validateUTMKey(fl validator.FieldLevel) bool {
	key := fl.Field().String()
	if !strings.HasPrefix(key, "utm_") || len(key) <= len("utm_") || len(key) > 64 {
		return false
	}
	for _, char := range key {
		if !unicode.IsLower(char) && !unicode.IsDigit(char) && char != '_' {
			return false
		}
	}
	return true
}

// Weights must be unique per group and add up to at most 100. A total below 100
// leaves the remainder on the link's fixed group.
func validateWeights(fl validator.FieldLevel) bool {
	groups, ok := fl.Field().Interface().(models.GroupWeights)
	if !ok {
		return false
	}
	seen := make(map[string]struct{}, len(groups))
	for _, g := range groups {
		if g.Weight < 0 {
			return false
		}
		if _, dup := seen[g.Group]; dup {
			return false
		}
		seen[g.Group] = struct{}{}
	}
	return groups.Total() <= 100
}

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// ValidationError represents a validation error
type ValidationError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// FormatError formats a validation error into a human-readable message
func FormatError(err error) []ValidationError {
	var validationErrors []ValidationError

	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return validationErrors
	}

	for _, e := range errs {
		var message string

		switch e.Tag() {
		case "required", "required_if":
			message = fmt.Sprintf("%s is required", e.Field())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", e.Field(), e.Param())
		case "url":
			message = "Invalid URL format. Must be a valid http or https URL"
		case "channelusername":
			message = "Channel username must be 5-32 characters long, start with a letter, and contain only letters, numbers, or underscores"
		case "shortcode":
			message = "Short code must be 4-30 characters long and contain only letters, numbers, underscores, or hyphens"
		case "utmkey":
			message = "UTM parameter names must start with utm_ and contain only lowercase letters, numbers, or underscores"
		case "weights":
			message = "Experiment groups must be unique and their weights must add up to at most 100"
		case "min":
			message = fmt.Sprintf("%s must be at least %s", e.Field(), e.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", e.Field(), e.Param())
		default:
			message = fmt.Sprintf("Invalid value for %s", e.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field: strings.ToLower(e.Field()),
			Error: message,
		})
	}

	return validationErrors
}
