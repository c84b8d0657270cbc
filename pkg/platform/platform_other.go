//go:build !darwin

package platform

// SetActivationPolicy is a no-op outside macOS
func SetActivationPolicy() {}

// ActivateApp is a no-op outside macOS; RequestFocus is enough there
func ActivateApp() {}

// SetFloating is a no-op outside macOS
func SetFloating(floating bool) {}
