package version

// Version is the current version of the dashboard, set at link time for
// release builds.
var Version = "0.1.0-dev"
