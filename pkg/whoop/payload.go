package whoop

import "github.com/Sternrassler/whoop-cli/pkg/client"

// OverviewPayload is the result of Service.Overview.
type OverviewPayload struct {
	Profile client.Object `json:"profile"`
	Cycles  []CycleEntry  `json:"cycles"`
}

// CycleEntry pairs a cycle with its recovery and sleep. A nil detail is absent.
type CycleEntry struct {
	Cycle    client.Object `json:"cycle"`
	Recovery client.Object `json:"recovery"`
	Sleep    client.Object `json:"sleep"`
}

// RecoveryPayload is the result of Service.Recovery.
type RecoveryPayload struct {
	Recoveries []client.Object `json:"recoveries"`
}

// SleepPayload is the result of Service.Sleep.
type SleepPayload struct {
	Sleeps []client.Object `json:"sleeps"`
}

// UserPayload is the result of Service.User.
type UserPayload struct {
	Profile         client.Object `json:"profile"`
	BodyMeasurement client.Object `json:"bodyMeasurement"`
}
