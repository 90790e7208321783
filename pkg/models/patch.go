package models

// PatchSide tells whether a declared path comes from the old ("---") or
// new ("+++") header of a unified diff.
type PatchSide string

const (
	SideOld PatchSide = "old"
	SideNew PatchSide = "new"
)

// NullDevice is the path a unified diff declares for a file that does not
// exist on one side, e.g. when a patch creates a new file.
const NullDevice = "/dev/null"

// PatchTarget is a single path declared by a patch header line.
type PatchTarget struct {
	Path string    `json:"path"`
	Side PatchSide `json:"side"`
}

// PatchDocument is a generated patch before and after sanitization,
// together with the paths its headers declare.
type PatchDocument struct {
	Raw       string        `json:"raw"`
	Sanitized string        `json:"sanitized"`
	Targets   []PatchTarget `json:"targets"`
}

// PatchStats summarises a parseable patch.
type PatchStats struct {
	Files        int `json:"files"`
	Hunks        int `json:"hunks"`
	LinesAdded   int `json:"lines_added"`
	LinesRemoved int `json:"lines_removed"`
}

// ApplicationResult is the outcome of a single patch application attempt.
// Rejected is set when the allow-list refused the patch, in which case the
// external patch tool was never invoked.
type ApplicationResult struct {
	Succeeded    bool        `json:"succeeded"`
	Rejected     bool        `json:"rejected"`
	Log          string      `json:"log"`
	ArtifactPath string      `json:"artifact_path"`
	Violations   []string    `json:"violations,omitempty"`
	Stats        *PatchStats `json:"stats,omitempty"`
	Sanitized    string      `json:"-"`
}
