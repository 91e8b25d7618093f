package urls

// Support links for the CLM PRO. All pages live under Support.

// Support is the landing page of the CLM PRO support site.
const Support = "https://clmpro.example.com/support"

// InstallationGuide is the printable installation guide (PDF) covering room
// clearances, ceiling mounting and wiring.
const InstallationGuide = "https://clmpro.example.com/support/installation-guide.pdf"

// NetworkSetup explains wired and Wi-Fi connection of the unit.
const NetworkSetup = "https://clmpro.example.com/support/network"

// Alignment covers azimuth, pitch and roll adjustment of the mount.
const Alignment = "https://clmpro.example.com/support/alignment"

// Calibration covers hitting-zone lighting and camera obstructions.
const Calibration = "https://clmpro.example.com/support/calibration"

// ServerSetup describes running clm-setup-server on the local network.
const ServerSetup = "https://clmpro.example.com/support/setup-server"

// ForKind returns the most specific guide for a simulated device
// interaction kind, falling back to Support.
func ForKind(kind string) string {
	switch kind {
	case "network-check", "device-scan", "device-bind":
		return NetworkSetup
	case "azimuth-check":
		return Alignment
	case "test-shots", "calibration":
		return Calibration
	case "power-on":
		return InstallationGuide
	default:
		return Support
	}
}
