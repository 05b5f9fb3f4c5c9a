package utils

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var numberPrinter = message.NewPrinter(language.English)

// FormatNumber groups thousands, e.g. 12345 -> "12,345"
func FormatNumber(num int64) string {
	return numberPrinter.Sprintf("%d", num)
}
