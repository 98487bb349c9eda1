// Package whoop implements the data commands of the CLI on top of the WHOOP
// developer API v2: the cycle overview (cycles enriched with their recovery and
// sleep), recent recoveries, recent sleeps, and the user profile.
//
// Results are generic JSON objects (client.Object) so that fields WHOOP adds
// later are passed through to --json output and the renderer unchanged.
//
// Example usage:
//
//	svc := whoop.NewService(apiClient, whoop.DefaultConfig())
//	overview, err := svc.Overview(ctx, 3)
package whoop
