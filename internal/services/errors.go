package services

// Check results reported to CheckRecorder.
const (
	CheckGranted = "granted"
	CheckDenied  = "denied"
	CheckInvalid = "invalid"
)
