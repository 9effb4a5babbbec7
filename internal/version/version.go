package version

// Version is set at build time via -ldflags "-X github.com/illumination-k/pathmirror/internal/version.Version=..."
var Version = "dev"
