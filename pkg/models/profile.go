package models

// Profile describes one kind of child agent: a named capability set plus
// the instructions injected into the child when it is launched.
// Profiles are produced by an external loader and are read-only here.
type Profile struct {
	// Name is the role name used to address this profile in a dispatch.
	Name string `json:"name" yaml:"name"`
	// Description is a one-line summary shown in role catalogs.
	Description string `json:"description" yaml:"description"`
	// Tools is the ordered list of tool ids the child is permitted to use.
	Tools []string `json:"tools" yaml:"tools"`
	// Instructions is the role-specific instruction text.
	Instructions string `json:"instructions" yaml:"instructions"`
	// ReplaceIdentity controls how Instructions is applied: when true it
	// fully replaces the child's default instruction set instead of being
	// appended to it.
	ReplaceIdentity bool `json:"replace_identity" yaml:"replace_identity"`
}

// Valid returns true if the profile carries the minimum required fields.
func (p Profile) Valid() bool {
	return p.Name != "" && len(p.Tools) > 0
}
