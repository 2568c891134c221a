package subscription

// Lifecycle delivers process lifecycle signals to the registry: "about to
// terminate" triggers full teardown, "backgrounded" pauses network
// subscriptions, "foregrounded" hands control back to the caller for explicit
// re-subscription. Each registration returns its own unregister function so
// the registry can detach cleanly at Destroy.
type Lifecycle interface {
	OnTerminate(fn func()) (unregister func())
	OnBackground(fn func()) (unregister func())
	OnForeground(fn func()) (unregister func())
}
