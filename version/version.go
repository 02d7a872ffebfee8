package version

// Version is overridden at build time via -ldflags "-X filetally/version.Version=...".
var Version = "dev"
