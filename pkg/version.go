package nursery

// Version is the current nursery release.
const Version = "0.1.0"
