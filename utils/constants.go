package utils

const (
	ColorInfo    = 0x3498db
	ColorWarning = 0xf39c12
	ColorSuccess = 0x2ecc71
	ColorDanger  = 0xe74c3c
	ColorError   = 0xFF0000
)

const BrandName = "Slots Panel"

// APIErrorMessage is the single notification shown for any failed gateway call
const APIErrorMessage = "Error running API call"
