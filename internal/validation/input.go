package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinDisplayNameLength  = 2
	MaxDisplayNameLength  = 100
	MaxEmailLength        = 254
	MaxLicensePlateLength = 15
	VINLength             = 17
)

var (
	emailLocalRegex   = regexp.MustCompile(`^[a-z0-9._+-]+$`)
	emailDomainRegex  = regexp.MustCompile(`^[a-z0-9.-]+\.[a-z]{2,}$`)
	displayNameRegex  = regexp.MustCompile(`^[a-zA-Zа-яА-ЯёЁ0-9\s\-_.,'!?()]+$`)
	licensePlateRegex = regexp.MustCompile(`^[A-ZА-Я0-9\- ]+$`)
	// VIN не содержит I, O и Q.
	vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)
)

// ValidateLength проверяет длину строки.
func ValidateLength(fieldName, value string, min, max int) error {
	length := utf8.RuneCountInString(value)
	if min > 0 && length < min {
		return fmt.Errorf("%s должен быть не менее %d символов", fieldName, min)
	}
	if max > 0 && length > max {
		return fmt.Errorf("%s должен быть не более %d символов", fieldName, max)
	}
	return nil
}

// ValidateEmail проверяет формат email.
func ValidateEmail(email string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return fmt.Errorf("email обязателен")
	}
	if len(email) > MaxEmailLength {
		return fmt.Errorf("email слишком длинный")
	}

	localPart, domainPart, ok := strings.Cut(email, "@")
	if !ok || strings.Contains(domainPart, "@") {
		return fmt.Errorf("некорректный формат email")
	}
	if len(localPart) == 0 || len(localPart) > 64 {
		return fmt.Errorf("локальная часть email должна быть от 1 до 64 символов")
	}
	if !emailLocalRegex.MatchString(localPart) {
		return fmt.Errorf("локальная часть email содержит недопустимые символы")
	}
	if !emailDomainRegex.MatchString(domainPart) {
		return fmt.Errorf("доменная часть email имеет некорректный формат")
	}
	return nil
}

// ValidateDisplayName проверяет отображаемое имя.
func ValidateDisplayName(displayName string) error {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return fmt.Errorf("отображаемое имя обязательно")
	}
	if err := ValidateLength("отображаемое имя", displayName, MinDisplayNameLength, MaxDisplayNameLength); err != nil {
		return err
	}
	if !displayNameRegex.MatchString(displayName) {
		return fmt.Errorf("отображаемое имя содержит недопустимые символы")
	}
	return nil
}

// ValidateVIN проверяет необязательный VIN; пустое значение допустимо.
func ValidateVIN(vin string) error {
	vin = strings.ToUpper(strings.TrimSpace(vin))
	if vin == "" {
		return nil
	}
	if len(vin) != VINLength {
		return fmt.Errorf("VIN должен содержать %d символов", VINLength)
	}
	if !vinRegex.MatchString(vin) {
		return fmt.Errorf("VIN содержит недопустимые символы")
	}
	return nil
}

// ValidateLicensePlate проверяет необязательный госномер.
func ValidateLicensePlate(plate string) error {
	plate = strings.ToUpper(strings.TrimSpace(plate))
	if plate == "" {
		return nil
	}
	if err := ValidateLength("госномер", plate, 0, MaxLicensePlateLength); err != nil {
		return err
	}
	if !licensePlateRegex.MatchString(plate) {
		return fmt.Errorf("госномер содержит недопустимые символы")
	}
	return nil
}
