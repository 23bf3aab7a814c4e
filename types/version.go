package types

// Version is the canonical project version.
// All components (CLI, stream engine, on-disk metadata writers) share this
// version per the lockstep versioning policy.
const Version = "0.1.0"
