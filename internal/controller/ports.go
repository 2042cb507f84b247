package controller

// Alerter shows blocking dialogs. Confirm invokes onConfirm only if the user
// accepts; a dismissed dialog does nothing.
type Alerter interface {
	Alert(title, message string)
	Confirm(title, message string, onConfirm func())
}

// IntentLauncher hands a URL to the OS (dialer, navigation app, browser).
type IntentLauncher interface {
	CanOpenURL(url string) bool
	OpenURL(url string) error
}
