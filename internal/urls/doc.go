// Package urls holds the support links shown by the wizard and the CLI, so
// they can be changed in one place before release.
//
// Usage:
//
//	import "github.com/clmpro/clmsetup/internal/urls"
//
//	fmt.Printf("Installation guide: %s\n", urls.InstallationGuide)
package urls
